// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	discoveryengine "cloud.google.com/go/discoveryengine/apiv1"
	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/curioswitch/go-curiostack/server"
	"github.com/curioswitch/go-usegcp/middleware/firebaseauth"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	"github.com/curioswitch/aichat/server/internal/auth"
	"github.com/curioswitch/aichat/server/internal/chatdb"
	"github.com/curioswitch/aichat/server/internal/config"
	"github.com/curioswitch/aichat/server/internal/handler/chat"
	"github.com/curioswitch/aichat/server/internal/handler/deletechat"
	"github.com/curioswitch/aichat/server/internal/handler/getmessages"
	"github.com/curioswitch/aichat/server/internal/handler/history"
	"github.com/curioswitch/aichat/server/internal/handler/upload"
	"github.com/curioswitch/aichat/server/internal/i18n"
	"github.com/curioswitch/aichat/server/internal/llm"
	"github.com/curioswitch/aichat/server/internal/search"
	"github.com/curioswitch/aichat/server/internal/tools"
)

//go:embed conf/*.yaml
var confFiles embed.FS

func main() {
	conf, _ := fs.Sub(confFiles, "conf")
	os.Exit(server.Main(&config.Config{}, conf, setupServer))
}

func setupServer(ctx context.Context, conf *config.Config, s *server.Server) error {
	mux := server.Mux(s)

	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: conf.Google.Project})
	if err != nil {
		return fmt.Errorf("main: create firebase app: %w", err)
	}

	fbAuth, err := fbApp.Auth(ctx)
	if err != nil {
		return fmt.Errorf("main: create firebase auth client: %w", err)
	}

	firestore, err := fbApp.Firestore(ctx)
	if err != nil {
		return fmt.Errorf("main: create firestore client: %w", err)
	}
	defer func() {
		if err := firestore.Close(); err != nil {
			slog.ErrorContext(ctx, "main: close firestore client", "error", err)
		}
	}()

	gcs, err := storage.NewGRPCClient(ctx)
	if err != nil {
		return fmt.Errorf("main: create storage client: %w", err)
	}
	defer func() {
		if err := gcs.Close(); err != nil {
			slog.ErrorContext(ctx, "main: close storage client", "error", err)
		}
	}()
	publicBucket := conf.Google.Project + "-public"

	searchClient, err := discoveryengine.NewSearchClient(ctx)
	if err != nil {
		return fmt.Errorf("main: create discovery engine search client: %w", err)
	}
	defer func() {
		if err := searchClient.Close(); err != nil {
			slog.ErrorContext(ctx, "main: close discovery engine search client", "error", err)
		}
	}()

	genAI, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		Project: conf.Google.Project,
	})
	if err != nil {
		return fmt.Errorf("main: creating genai client: %w", err)
	}

	oai := openai.NewClient()

	store := chatdb.NewStore(firestore)

	registry := tools.NewRegistry(
		tools.NewWeather(nil, ""),
		tools.NewCreateDocument(genAI, store),
		tools.NewUpdateDocument(genAI, store),
		tools.NewRequestSuggestions(genAI, store),
	)
	provider := llm.NewOpenAI(&oai, registry)
	titler := llm.NewTitler(genAI)
	searcher := search.NewClient(searchClient, conf.Search.Engine)

	fbMW := firebaseauth.NewMiddleware(fbAuth)
	mux.Use(middleware.Maybe(fbMW, func(r *http.Request) bool {
		return !strings.HasPrefix(r.URL.Path, "/internal/")
	}))

	mux.Use(auth.Middleware())
	mux.Use(i18n.Middleware())

	chatH := chat.NewHandler(store, provider, titler, searcher,
		conf.Chat.MaxToolSteps, time.Duration(conf.Chat.TimeoutSeconds)*time.Second)
	mux.Method(http.MethodPost, "/api/chat", chatH)
	mux.Method(http.MethodDelete, "/api/chat", deletechat.NewHandler(store))
	mux.Method(http.MethodGet, "/api/chat/messages", getmessages.NewHandler(store))
	mux.Method(http.MethodGet, "/api/history", history.NewHandler(store))
	mux.Method(http.MethodPost, "/api/files/upload", upload.NewHandler(gcs, publicBucket))

	if err := server.Start(ctx, s); err != nil {
		return fmt.Errorf("main: starting server: %w", err)
	}
	return nil
}
