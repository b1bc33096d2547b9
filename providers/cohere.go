package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kaushaltekade/chatbot/consts"
)

// Cohere streams raw newline-delimited JSON objects (no `data:` framing) with
// an event_type discriminator and a `stream-end` terminal event. The latest
// user message travels separately from the rest of the history, and the
// system message becomes the preamble.
type Cohere struct {
	baseURL string
	model   string
}

func NewCohere(overrides map[string]Endpoint) *Cohere {
	p := &Cohere{
		baseURL: "https://api.cohere.ai/v1/chat",
		model:   "command-r-08-2024",
	}
	if ep, ok := overrides[consts.ProviderCohere]; ok {
		if ep.BaseURL != "" {
			p.baseURL = ep.BaseURL
		}
		if ep.Model != "" {
			p.model = ep.Model
		}
	}
	return p
}

func (c *Cohere) ID() string   { return consts.ProviderCohere }
func (c *Cohere) Name() string { return "Cohere" }

type cohereTurn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

func (c *Cohere) StreamChat(ctx context.Context, messages []Message, apiKey string, onDelta func(string)) error {
	system, rest := splitSystem(messages)

	if len(rest) == 0 || rest[len(rest)-1].Role != consts.RoleUser {
		return fmt.Errorf("cohere: last message must be from user")
	}
	last := rest[len(rest)-1]

	history := make([]cohereTurn, 0, len(rest)-1)
	for _, m := range rest[:len(rest)-1] {
		role := "CHATBOT"
		if m.Role == consts.RoleUser {
			role = "USER"
		}
		if m.Content == "" {
			continue
		}
		history = append(history, cohereTurn{Role: role, Message: m.Content})
	}

	payload := map[string]any{
		"message":      last.Content,
		"chat_history": history,
		"model":        c.model,
		"stream":       true,
	}
	if system != "" {
		payload["preamble"] = system
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))

	res, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return newAPIError(consts.ProviderCohere, res)
	}

	reader := newNotifyReader(ctx, res.Body)
	parser := &lineParser{}
	buf := make([]byte, 4096)
	emitted := false

	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			for _, line := range parser.Feed(buf[:n]) {
				var event struct {
					EventType    string `json:"event_type"`
					Text         string `json:"text"`
					IsFinished   bool   `json:"is_finished"`
					FinishReason string `json:"finish_reason"`
				}
				if err := json.Unmarshal(line, &event); err != nil {
					continue
				}
				if event.IsFinished && event.FinishReason == "ERROR" {
					return fmt.Errorf("cohere: stream error: %s", event.Text)
				}
				switch event.EventType {
				case "text-generation":
					if event.Text != "" {
						emitted = true
						onDelta(event.Text)
					}
				case "stream-end":
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
