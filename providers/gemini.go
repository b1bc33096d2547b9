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

// Gemini streams an incrementally-delivered JSON array of objects with no
// line-delimiter guarantee, so decoding relies on the brace-depth parser.
// Roles map user/model, and the system message becomes system_instruction.
type Gemini struct {
	baseURL string
	model   string
}

func NewGemini(overrides map[string]Endpoint) *Gemini {
	p := &Gemini{
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
		model:   "gemini-1.5-flash-latest",
	}
	if ep, ok := overrides[consts.ProviderGemini]; ok {
		if ep.BaseURL != "" {
			p.baseURL = ep.BaseURL
		}
		if ep.Model != "" {
			p.model = ep.Model
		}
	}
	return p
}

func (g *Gemini) ID() string   { return consts.ProviderGemini }
func (g *Gemini) Name() string { return "Google Gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

func (g *Gemini) StreamChat(ctx context.Context, messages []Message, apiKey string, onDelta func(string)) error {
	system, rest := splitSystem(messages)

	contents := make([]geminiContent, 0, len(rest))
	for _, m := range rest {
		role := "user"
		if m.Role == consts.RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}

	payload := map[string]any{
		"contents": contents,
		"generationConfig": map[string]any{
			"temperature":     0.7,
			"maxOutputTokens": 2048,
		},
	}
	if system != "" {
		payload["system_instruction"] = geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?key=%s", g.baseURL, g.model, apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return newAPIError(consts.ProviderGemini, res)
	}

	reader := newNotifyReader(ctx, res.Body)
	parser := &braceParser{}
	buf := make([]byte, 4096)
	emitted := false

	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			for _, obj := range parser.Feed(buf[:n]) {
				var chunk struct {
					Candidates []struct {
						Content struct {
							Parts []geminiPart `json:"parts"`
						} `json:"content"`
					} `json:"candidates"`
				}
				if err := json.Unmarshal(obj, &chunk); err != nil {
					continue
				}
				if len(chunk.Candidates) == 0 {
					continue
				}
				for _, part := range chunk.Candidates[0].Content.Parts {
					if part.Text != "" {
						emitted = true
						onDelta(part.Text)
					}
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

	// The gemini stream has no terminal sentinel; EOF is the legitimate end.
	if !emitted {
		return ErrEmptyStream
	}
	return nil
}
