package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pixedit/pixedit/internal/asset"
	"github.com/pixedit/pixedit/internal/auth"
	"github.com/pixedit/pixedit/internal/config"
	"github.com/pixedit/pixedit/internal/db"
	"github.com/pixedit/pixedit/internal/export"
	mw "github.com/pixedit/pixedit/internal/middleware"
	"github.com/pixedit/pixedit/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The database is optional. Without it sessions are not persisted and
	// exports are not listed.
	var (
		sessionStore auth.SessionStore
		recorder     export.Recorder
		lister       export.Lister
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := db.EnsureSchema(ctx, pool); err != nil {
			slog.Error("ensure schema", "error", err)
			os.Exit(1)
		}

		queries := db.New(pool)
		sessionStore, recorder, lister = queries, queries, queries
	} else {
		slog.Warn("DATABASE_URL not set, running without persistence")
	}

	assetStore, err := asset.NewStore(cfg.AssetDir)
	if err != nil {
		slog.Error("open asset store", "error", err)
		os.Exit(1)
	}
	saver, err := export.NewFileSaver(cfg.ExportDir, cfg.JPEGQuality, recorder)
	if err != nil {
		slog.Error("open export dir", "error", err)
		os.Exit(1)
	}

	authService := auth.NewService(sessionStore, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)
	assetHandler := asset.NewHandler(assetStore, cfg.MaxImagePixels)
	exportHandler := export.NewHandler(saver.Dir(), lister)

	hub := session.NewHub(assetStore, saver)
	go hub.Run()

	r := mux.NewRouter()

	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.HandleFunc("/sessions", authHandler.CreateSession).Methods("POST", "OPTIONS")

	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST", "OPTIONS")
	r.PathPrefix("/assets/").Handler(assetHandler.Serve()).Methods("GET")

	r.Handle("/exports", authService.AuthMiddleware(http.HandlerFunc(exportHandler.List))).Methods("GET")
	r.PathPrefix("/exports/").Handler(exportHandler.Serve()).Methods("GET")

	originPatterns := cfg.OriginPatterns()
	r.HandleFunc("/ws/session/{sessionId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, originPatterns)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop sessions first so in-flight exports finish.
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *session.Hub, authSvc *auth.Service, originPatterns []string) {
	sessionID := mux.Vars(r)["sessionId"]

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	tokenSession, err := authSvc.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if tokenSession != sessionID {
		http.Error(w, "token not valid for this session", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := session.NewClient(hub, conn, sessionID, uuid.New().String())
	if !hub.Register(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
