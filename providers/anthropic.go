package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/kaushaltekade/chatbot/consts"
)

// Anthropic streams SSE `data:` events discriminated by an explicit type
// field, terminated by a `message_stop` event. The system message must be
// lifted out of the message array into a top-level field.
type Anthropic struct {
	baseURL string
	model   string
	version string
}

func NewAnthropic(overrides map[string]Endpoint) *Anthropic {
	p := &Anthropic{
		baseURL: "https://api.anthropic.com/v1/messages",
		model:   "claude-3-5-sonnet-20240620",
		version: "2023-06-01",
	}
	if ep, ok := overrides[consts.ProviderAnthropic]; ok {
		if ep.BaseURL != "" {
			p.baseURL = ep.BaseURL
		}
		if ep.Model != "" {
			p.model = ep.Model
		}
	}
	return p
}

func (a *Anthropic) ID() string   { return consts.ProviderAnthropic }
func (a *Anthropic) Name() string { return "Anthropic" }

func (a *Anthropic) StreamChat(ctx context.Context, messages []Message, apiKey string, onDelta func(string)) error {
	system, rest := splitSystem(messages)

	payload := map[string]any{
		"model":      a.model,
		"messages":   rest,
		"stream":     true,
		"max_tokens": 4096,
	}
	if system != "" {
		payload["system"] = system
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", a.version)

	res, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return newAPIError(consts.ProviderAnthropic, res)
	}

	reader := newNotifyReader(ctx, res.Body)
	parser := &sseParser{}
	buf := make([]byte, 4096)
	emitted := false

	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			for _, data := range parser.Feed(buf[:n]) {
				var event struct {
					Type  string `json:"type"`
					Delta struct {
						Type string `json:"type"`
						Text string `json:"text"`
					} `json:"delta"`
				}
				if err := json.Unmarshal(data, &event); err != nil {
					continue
				}
				switch event.Type {
				case "content_block_delta":
					if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
						emitted = true
						onDelta(event.Delta.Text)
					}
				case "message_stop":
					if !emitted {
						return ErrEmptyStream
					}
					return nil
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
