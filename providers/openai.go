package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/sjson"

	"github.com/kaushaltekade/chatbot/consts"
)

// OpenAI speaks the chat-completions wire format shared by OpenAI, DeepSeek,
// Groq, Mistral, OpenRouter and Perplexity: SSE `data:` events terminated by
// a literal `data: [DONE]` sentinel.
type OpenAI struct {
	id      string
	name    string
	baseURL string
	model   string
	headers map[string]string
}

func NewOpenAI(id, name, baseURL, model string, overrides map[string]Endpoint) *OpenAI {
	p := &OpenAI{id: id, name: name, baseURL: baseURL, model: model}
	if ep, ok := overrides[id]; ok {
		if ep.BaseURL != "" {
			p.baseURL = ep.BaseURL
		}
		if ep.Model != "" {
			p.model = ep.Model
		}
		p.headers = ep.Headers
	}
	return p
}

func (o *OpenAI) ID() string   { return o.id }
func (o *OpenAI) Name() string { return o.name }

// pruneContext keeps the system message plus the most recent window of the
// history, so long conversations stay inside vendor context limits.
const pruneWindow = 10

func pruneContext(messages []Message) []Message {
	system, rest := splitSystem(messages)
	if len(rest) > pruneWindow {
		rest = rest[len(rest)-pruneWindow:]
	}
	out := make([]Message, 0, len(rest)+1)
	if system != "" {
		out = append(out, Message{Role: consts.RoleSystem, Content: system})
	}
	return append(out, rest...)
}

func (o *OpenAI) buildBody(messages []Message) ([]byte, error) {
	raw, err := json.Marshal(map[string]any{
		"messages": pruneContext(messages),
	})
	if err != nil {
		return nil, err
	}
	if raw, err = sjson.SetBytes(raw, "model", o.model); err != nil {
		return nil, err
	}
	return sjson.SetBytes(raw, "stream", true)
}

func (o *OpenAI) StreamChat(ctx context.Context, messages []Message, apiKey string, onDelta func(string)) error {
	body, err := o.buildBody(messages)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}

	res, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return newAPIError(o.id, res)
	}

	reader := newNotifyReader(ctx, res.Body)
	parser := &sseParser{}
	buf := make([]byte, 4096)
	emitted := false

	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			for _, data := range parser.Feed(buf[:n]) {
				if bytes.Equal(data, []byte("[DONE]")) {
					if !emitted {
						return ErrEmptyStream
					}
					return nil
				}
				var chunk struct {
					Choices []struct {
						Delta struct {
							Content string `json:"content"`
						} `json:"delta"`
					} `json:"choices"`
				}
				// Malformed events are skipped; the stream goes on.
				if err := json.Unmarshal(data, &chunk); err != nil {
					continue
				}
				if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
					emitted = true
					onDelta(chunk.Choices[0].Delta.Content)
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return readErr
		}
	}

	if !emitted {
		return ErrEmptyStream
	}
	return nil
}
