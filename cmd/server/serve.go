package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/remote-agent-terminal/engine-relay/api/handlers"
	"github.com/remote-agent-terminal/engine-relay/internal/config"
	"github.com/remote-agent-terminal/engine-relay/internal/db"
	"github.com/remote-agent-terminal/engine-relay/internal/repository"
	"github.com/remote-agent-terminal/engine-relay/internal/supervisor"
	"github.com/remote-agent-terminal/engine-relay/internal/ws"
)

const shutdownTimeout = 10 * time.Second

// serve runs the relay until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	// Ensure data directories exist
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Storage.TranscriptDir, 0755); err != nil {
		return err
	}

	database, err := db.InitDB(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.CloseDB()

	runRepo := repository.NewRunRepository(database)
	if n, err := runRepo.MarkOrphaned(ctx); err != nil {
		log.Printf("Failed to mark orphaned runs: %v", err)
	} else if n > 0 {
		log.Printf("Marked %d run(s) from a previous server as failed", n)
	}

	wsService := ws.NewService(ws.HubConfig{
		QueueSize:   cfg.Relay.QueueSize,
		HistorySize: cfg.Relay.HistoryLines,
	})
	defer wsService.Close()

	sup := supervisor.New(supervisor.Config{
		EngineName:        cfg.Engine.Name,
		TranscriptDir:     cfg.Storage.TranscriptDir,
		HeartbeatInterval: cfg.Relay.HeartbeatInterval,
		ReaderGrace:       cfg.Relay.ReaderGrace,
		DedupePeek:        cfg.Relay.DedupePeek,
		EchoOutput:        cfg.Relay.EchoOutput,
	}, wsService, runRepo)

	r := newRouter(
		handlers.NewControlHandler(sup, cfg.Engine.Binary, cfg.Engine.Args()),
		handlers.NewRunHandler(runRepo),
		handlers.NewWebSocketHandler(wsService.Handler()),
	)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		sup.Shutdown(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	sup.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	return nil
}

// newRouter wires every route onto a gin engine.
func newRouter(control *handlers.ControlHandler, runs *handlers.RunHandler, live *handlers.WebSocketHandler) *gin.Engine {
	r := gin.Default()

	// Enable CORS for development
	r.Use(corsMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	live.RegisterRoutes(r)

	api := r.Group("/api")
	{
		control.RegisterRoutes(api)
		runs.RegisterRoutes(api)
	}

	return r
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
