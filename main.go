package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	_ "time/tzdata"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/kaushaltekade/chatbot/config"
	"github.com/kaushaltekade/chatbot/handler"
	"github.com/kaushaltekade/chatbot/middleware"
	"github.com/kaushaltekade/chatbot/models"
	"github.com/kaushaltekade/chatbot/providers"
	"github.com/kaushaltekade/chatbot/service"
	"github.com/kaushaltekade/chatbot/service/convstore"
	"github.com/kaushaltekade/chatbot/service/keystore"
	"github.com/kaushaltekade/chatbot/service/outbox"
	"github.com/kaushaltekade/chatbot/service/promptstore"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	log := slog.Default()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	db, err := models.Init(ctx, cfg.DB.Path)
	if err != nil {
		log.Error("open database", "path", cfg.DB.Path, "error", err)
		os.Exit(1)
	}

	ob := outbox.New(outbox.NopSink{}, log)
	go ob.Run(ctx)

	keys := keystore.New(db, ob)
	convs := convstore.New(db, ob)
	prompts := promptstore.New(db, ob)

	if err := keys.SyncFromConfig(ctx, cfg.Keys); err != nil {
		log.Error("sync credentials from config", "error", err)
	}
	if err := prompts.Seed(ctx); err != nil {
		log.Error("seed prompt library", "error", err)
	}

	overrides := make(map[string]providers.Endpoint, len(cfg.Providers))
	for id, pc := range cfg.Providers {
		overrides[id] = providers.Endpoint{BaseURL: pc.BaseURL, Model: pc.Model, Headers: pc.Headers}
	}
	registry := providers.DefaultRegistry(overrides)

	orch := service.NewOrchestrator(keys, convs, registry, service.NopNotifier{}, log)
	orch.SetSmartRouting(cfg.Routing.Smart)

	h := handler.New(registry, orch, keys, convs, prompts, cfg.System.Prompt, log)

	router := gin.Default()
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/v1"})))

	auth := middleware.Auth(cfg.Server.Token)

	v1 := router.Group("/v1", auth)
	{
		v1.POST("/chat", h.Chat)
	}

	api := router.Group("/api", auth)
	{
		api.GET("/providers", h.ListProviders)

		api.GET("/keys", h.ListAPIKeys)
		api.POST("/keys", h.CreateAPIKey)
		api.PUT("/keys/:id", h.UpdateAPIKey)
		api.DELETE("/keys/:id", h.DeleteAPIKey)
		api.POST("/keys/:id/lock", h.LockAPIKey)
		api.POST("/keys/:id/unlock", h.UnlockAPIKey)
		api.PUT("/keys/reorder", h.ReorderAPIKeys)

		api.GET("/folders", h.ListFolders)
		api.POST("/folders", h.CreateFolder)
		api.PUT("/folders/:id", h.RenameFolder)
		api.DELETE("/folders/:id", h.DeleteFolder)

		api.GET("/conversations", h.ListConversations)
		api.POST("/conversations", h.CreateConversation)
		api.GET("/conversations/:id", h.GetConversation)
		api.PUT("/conversations/:id", h.UpdateConversation)
		api.DELETE("/conversations/:id", h.DeleteConversation)
		api.GET("/conversations/:id/export", h.ExportConversation)

		api.POST("/conversations/:id/send", h.Send)
		api.POST("/conversations/:id/regenerate", h.Regenerate)
		api.POST("/conversations/:id/messages/:messageId/edit", h.Edit)
		api.POST("/conversations/:id/stop", h.Stop)

		api.GET("/prompts", h.ListPrompts)
		api.POST("/prompts", h.CreatePrompt)
		api.PUT("/prompts/:id", h.UpdatePrompt)
		api.DELETE("/prompts/:id", h.DeletePrompt)
		api.POST("/prompts/:id/use", h.UsePrompt)
		api.POST("/prompts/reset", h.ResetPrompts)

		api.GET("/preferences", h.GetPreferences)
		api.PUT("/preferences", h.UpdatePreferences)
	}

	log.Info("listening", "addr", cfg.Server.Addr)
	if err := router.Run(cfg.Server.Addr); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
