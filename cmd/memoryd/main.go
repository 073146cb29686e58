// memoryd is the memory service: a per-user durable memory store with
// vector similarity search, consumed by agentd over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voxhall/voxhall/pkg/config"
	"github.com/voxhall/voxhall/pkg/handler"
	"github.com/voxhall/voxhall/pkg/logging"
	"github.com/voxhall/voxhall/pkg/memstore"
)

const (
	rateLimitMax   = 30
	rateLimitEvery = 60 * time.Second
)

func main() {
	cfg, configFile, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogLevel)
	logger := logging.Get()
	logger.Info("Starting memoryd", "config", configFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := memstore.Open(ctx, cfg.Memory)
	if err != nil {
		logger.Error("Failed to open memory store", "error", err)
		os.Exit(1)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.CORS())
	router.Use(handler.NewRateLimiter(rateLimitMax, rateLimitEvery).Middleware("/api/v1/health"))

	memHandler := handler.NewMemoryHandler(store, cfg.Debug)
	memHandler.RegisterRoutes(router.Group("/api/v1"))
	router.GET("/", memHandler.Root)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MemorydPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("Failed to listen", "addr", addr, "error", err)
		os.Exit(1)
	}
	srv := &http.Server{Handler: router}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()
	logger.Info("memoryd listening", "addr", addr)

	select {
	case <-ctx.Done():
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Shutdown did not complete cleanly", "error", err)
	}
}
