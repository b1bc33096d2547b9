package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/kaushaltekade/chatbot/models"
	"github.com/kaushaltekade/chatbot/providers"
	"github.com/kaushaltekade/chatbot/service"
	"github.com/kaushaltekade/chatbot/service/convstore"
	"github.com/kaushaltekade/chatbot/service/keystore"
	"github.com/kaushaltekade/chatbot/service/promptstore"
)

// sendFixture wires a full handler over an in-memory database with a stub
// provider registry.
type sendFixture struct {
	router  *gin.Engine
	keys    *keystore.Store
	convs   *convstore.Store
	prompts *promptstore.Store
}

func newSendFixture(t *testing.T, systemPrompt string, ps ...providers.Provider) *sendFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	keys := keystore.New(db, nil)
	convs := convstore.New(db, nil)
	prompts := promptstore.New(db, nil)
	registry := providers.NewRegistry(ps...)
	orch := service.NewOrchestrator(keys, convs, registry, nil, nil)
	h := New(registry, orch, keys, convs, prompts, systemPrompt, nil)

	r := gin.New()
	r.GET("/api/providers", h.ListProviders)
	r.GET("/api/keys", h.ListAPIKeys)
	r.POST("/api/keys", h.CreateAPIKey)
	r.PUT("/api/keys/:id", h.UpdateAPIKey)
	r.DELETE("/api/keys/:id", h.DeleteAPIKey)
	r.POST("/api/keys/:id/lock", h.LockAPIKey)
	r.POST("/api/keys/:id/unlock", h.UnlockAPIKey)
	r.PUT("/api/keys/reorder", h.ReorderAPIKeys)
	r.GET("/api/folders", h.ListFolders)
	r.POST("/api/folders", h.CreateFolder)
	r.PUT("/api/folders/:id", h.RenameFolder)
	r.DELETE("/api/folders/:id", h.DeleteFolder)
	r.GET("/api/conversations", h.ListConversations)
	r.POST("/api/conversations", h.CreateConversation)
	r.GET("/api/conversations/:id", h.GetConversation)
	r.PUT("/api/conversations/:id", h.UpdateConversation)
	r.DELETE("/api/conversations/:id", h.DeleteConversation)
	r.GET("/api/conversations/:id/export", h.ExportConversation)
	r.POST("/api/conversations/:id/send", h.Send)
	r.POST("/api/conversations/:id/regenerate", h.Regenerate)
	r.POST("/api/conversations/:id/messages/:messageId/edit", h.Edit)
	r.POST("/api/conversations/:id/stop", h.Stop)
	r.GET("/api/prompts", h.ListPrompts)
	r.POST("/api/prompts", h.CreatePrompt)
	r.PUT("/api/prompts/:id", h.UpdatePrompt)
	r.DELETE("/api/prompts/:id", h.DeletePrompt)
	r.POST("/api/prompts/:id/use", h.UsePrompt)
	r.POST("/api/prompts/reset", h.ResetPrompts)
	r.GET("/api/preferences", h.GetPreferences)
	r.PUT("/api/preferences", h.UpdatePreferences)
	return &sendFixture{router: r, keys: keys, convs: convs, prompts: prompts}
}

func (f *sendFixture) seedKey(t *testing.T, provider string) models.APIKey {
	t.Helper()
	key := models.APIKey{Provider: provider, Secret: "sk-" + provider + "-1234", IsActive: true}
	if err := f.keys.Create(context.Background(), &key); err != nil {
		t.Fatalf("seed key: %v", err)
	}
	return key
}

func (f *sendFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}
