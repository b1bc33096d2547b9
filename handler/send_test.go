package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/kaushaltekade/chatbot/consts"
	"github.com/kaushaltekade/chatbot/providers"
)

// frames decodes every data: payload in an SSE body.
func frames(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(line[len("data: "):]), &ev); err != nil {
			t.Fatalf("bad frame %q: %v", line, err)
		}
		out = append(out, ev)
	}
	return out
}

func echoProvider(id, reply string) providers.Provider {
	return &stubProvider{id: id, stream: func(ctx context.Context, msgs []providers.Message, apiKey string, onDelta func(string)) error {
		onDelta(reply)
		return nil
	}}
}

func TestSendCreatesConversation(t *testing.T) {
	f := newSendFixture(t, "", echoProvider(consts.ProviderOpenAI, "Hello!"))
	f.seedKey(t, consts.ProviderOpenAI)

	w := f.do(http.MethodPost, "/api/conversations/new/send", `{"content":"what is the capital of france"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}

	evs := frames(t, w.Body.String())
	if len(evs) < 2 {
		t.Fatalf("frames=%v", evs)
	}
	if evs[0]["type"] != "delta" || evs[0]["content"] != "Hello!" {
		t.Fatalf("first frame=%v", evs[0])
	}
	last := evs[len(evs)-1]
	if last["type"] != "done" || last["served_by"] != consts.ProviderOpenAI {
		t.Fatalf("last frame=%v", last)
	}

	convs, err := f.convs.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("conversations=%d", len(convs))
	}
	if convs[0].Title != "what is the capital of france" {
		t.Fatalf("title=%q", convs[0].Title)
	}

	msgs, _ := f.convs.Messages(context.Background(), convs[0].ID)
	if len(msgs) != 2 {
		t.Fatalf("messages=%d", len(msgs))
	}
	if msgs[0].Role != consts.RoleUser || msgs[1].Role != consts.RoleAssistant {
		t.Fatalf("roles=%q,%q", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].Content != "Hello!" || msgs[1].ServedBy != consts.ProviderOpenAI {
		t.Fatalf("assistant=%+v", msgs[1])
	}
}

func TestSendPrependsSystemPrompt(t *testing.T) {
	var gotFirst providers.Message
	p := &stubProvider{id: consts.ProviderOpenAI, stream: func(ctx context.Context, msgs []providers.Message, apiKey string, onDelta func(string)) error {
		gotFirst = msgs[0]
		onDelta("ok")
		return nil
	}}
	f := newSendFixture(t, "always answer in haiku", p)
	f.seedKey(t, consts.ProviderOpenAI)

	w := f.do(http.MethodPost, "/api/conversations/new/send", `{"content":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	if gotFirst.Role != consts.RoleSystem || gotFirst.Content != "always answer in haiku" {
		t.Fatalf("first outbound=%+v", gotFirst)
	}
}

func TestSendNoKeys(t *testing.T) {
	f := newSendFixture(t, "", echoProvider(consts.ProviderOpenAI, "x"))

	w := f.do(http.MethodPost, "/api/conversations/new/send", `{"content":"hi"}`)
	evs := frames(t, w.Body.String())
	if len(evs) == 0 {
		t.Fatalf("body=%q", w.Body.String())
	}
	last := evs[len(evs)-1]
	if last["type"] != "error" {
		t.Fatalf("frames=%v", evs)
	}
}

func TestRegenerate(t *testing.T) {
	f := newSendFixture(t, "", echoProvider(consts.ProviderOpenAI, "take two"))
	f.seedKey(t, consts.ProviderOpenAI)
	ctx := context.Background()

	conv, _ := f.convs.CreateConversation(ctx)
	f.convs.AppendMessage(ctx, conv.ID, consts.RoleUser, "tell me a joke", 4)
	first, _ := f.convs.AppendMessage(ctx, conv.ID, consts.RoleAssistant, "take one", 2)

	w := f.do(http.MethodPost, "/api/conversations/"+conv.ID+"/regenerate", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}

	msgs, _ := f.convs.Messages(ctx, conv.ID)
	if len(msgs) != 2 {
		t.Fatalf("messages=%d", len(msgs))
	}
	if msgs[1].ID == first.ID {
		t.Fatal("old assistant message kept")
	}
	if msgs[1].Content != "take two" {
		t.Fatalf("regenerated=%q", msgs[1].Content)
	}
}

func TestRegenerateNothingToRedo(t *testing.T) {
	f := newSendFixture(t, "", echoProvider(consts.ProviderOpenAI, "x"))
	ctx := context.Background()

	conv, _ := f.convs.CreateConversation(ctx)
	f.convs.AppendMessage(ctx, conv.ID, consts.RoleUser, "unanswered", 1)

	w := f.do(http.MethodPost, "/api/conversations/"+conv.ID+"/regenerate", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
}

func TestEditForksConversation(t *testing.T) {
	var got []providers.Message
	p := &stubProvider{id: consts.ProviderOpenAI, stream: func(ctx context.Context, msgs []providers.Message, apiKey string, onDelta func(string)) error {
		got = msgs
		onDelta("fresh answer")
		return nil
	}}
	f := newSendFixture(t, "", p)
	f.seedKey(t, consts.ProviderOpenAI)
	ctx := context.Background()

	conv, _ := f.convs.CreateConversation(ctx)
	f.convs.AppendMessage(ctx, conv.ID, consts.RoleUser, "q1", 1)
	f.convs.AppendMessage(ctx, conv.ID, consts.RoleAssistant, "a1", 1)
	u2, _ := f.convs.AppendMessage(ctx, conv.ID, consts.RoleUser, "q2 original", 3)
	f.convs.AppendMessage(ctx, conv.ID, consts.RoleAssistant, "a2", 1)

	w := f.do(http.MethodPost, "/api/conversations/"+conv.ID+"/messages/"+u2.ID+"/edit", `{"content":"q2 edited"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}

	// Outbound history ends with the edited message; a2 is gone.
	if len(got) != 3 || got[2].Content != "q2 edited" {
		t.Fatalf("outbound=%v", got)
	}

	msgs, _ := f.convs.Messages(ctx, conv.ID)
	if len(msgs) != 4 {
		t.Fatalf("messages=%d", len(msgs))
	}
	if msgs[2].Content != "q2 edited" || msgs[3].Content != "fresh answer" {
		t.Fatalf("history=%q,%q", msgs[2].Content, msgs[3].Content)
	}
}

func TestEditRejectsAssistantMessage(t *testing.T) {
	f := newSendFixture(t, "", echoProvider(consts.ProviderOpenAI, "x"))
	ctx := context.Background()
	conv, _ := f.convs.CreateConversation(ctx)
	f.convs.AppendMessage(ctx, conv.ID, consts.RoleUser, "q1", 1)
	a, _ := f.convs.AppendMessage(ctx, conv.ID, consts.RoleAssistant, "a1", 1)

	w := f.do(http.MethodPost, "/api/conversations/"+conv.ID+"/messages/"+a.ID+"/edit", `{"content":"rewrite"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
}

func TestEditUnknownMessage(t *testing.T) {
	f := newSendFixture(t, "", echoProvider(consts.ProviderOpenAI, "x"))
	ctx := context.Background()
	conv, _ := f.convs.CreateConversation(ctx)

	w := f.do(http.MethodPost, "/api/conversations/"+conv.ID+"/messages/missing/edit", `{"content":"x"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
}

func TestStopWithNothingInFlight(t *testing.T) {
	f := newSendFixture(t, "", echoProvider(consts.ProviderOpenAI, "x"))
	w := f.do(http.MethodPost, "/api/conversations/whatever/stop", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"stopped":false`) {
		t.Fatalf("body=%s", w.Body.String())
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	f := newSendFixture(t, "", echoProvider(consts.ProviderOpenAI, "x"))

	w := f.do(http.MethodGet, "/api/preferences", "")
	if !strings.Contains(w.Body.String(), `"smart_routing":false`) {
		t.Fatalf("body=%s", w.Body.String())
	}

	w = f.do(http.MethodPut, "/api/preferences", `{"smart_routing":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	w = f.do(http.MethodGet, "/api/preferences", "")
	if !strings.Contains(w.Body.String(), `"smart_routing":true`) {
		t.Fatalf("body=%s", w.Body.String())
	}
}
