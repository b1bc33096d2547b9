package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is the provider-agnostic error for non-2xx vendor responses.
type APIError struct {
	Provider   string
	StatusCode int

	// Code is the vendor-specific error code, when the body exposed one.
	Code string

	// Message is human-readable, preferring the vendor's own message.
	Message string

	// Raw is the (truncated) response body for logs.
	Raw []byte
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, "http %d", e.StatusCode)
	} else {
		b.WriteString("http error")
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.StatusCode != 0 {
		msg = http.StatusText(e.StatusCode)
	}
	if msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if code := strings.TrimSpace(e.Code); code != "" {
		b.WriteString(" (")
		b.WriteString(code)
		b.WriteString(")")
	}
	return b.String()
}

func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func IsAuth(err error) bool {
	ae, ok := AsAPIError(err)
	if !ok {
		return false
	}
	return ae.StatusCode == http.StatusUnauthorized || ae.StatusCode == http.StatusForbidden
}

func IsRateLimit(err error) bool {
	ae, ok := AsAPIError(err)
	if !ok {
		return false
	}
	if ae.StatusCode == http.StatusTooManyRequests {
		return true
	}
	code := strings.ToLower(strings.TrimSpace(ae.Code))
	return code == "rate_limit" || code == "rate_limit_exceeded" || code == "insufficient_quota"
}

const maxErrorBody = 4 << 10

// errorBody drains up to maxErrorBody bytes of a failed response.
func errorBody(r io.Reader) []byte {
	body, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return body
}

// vendorMessage digs a message out of the common vendor error envelopes:
// {"error":{"message","code"}} (openai/anthropic/gemini) and {"message"}
// (cohere). Falls back to a body snippet.
func vendorMessage(body []byte) (msg, code string) {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Code    any    `json:"code"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error.Message != "" {
			if envelope.Error.Code != nil {
				code = fmt.Sprint(envelope.Error.Code)
			}
			return envelope.Error.Message, code
		}
		if envelope.Message != "" {
			return envelope.Message, ""
		}
	}
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return snippet, ""
}

// newAPIError builds the APIError for a non-2xx response, special-casing the
// quota shape openai uses.
func newAPIError(provider string, res *http.Response) *APIError {
	body := errorBody(res.Body)
	msg, code := vendorMessage(body)
	if code == "insufficient_quota" {
		msg = "quota exceeded"
	}
	if msg == "" {
		msg = res.Status
	}
	return &APIError{
		Provider:   provider,
		StatusCode: res.StatusCode,
		Code:       code,
		Message:    msg,
		Raw:        body,
	}
}
