// agentd is the orchestration service: it manages rooms on the realtime
// provider, issues access tokens, and runs conversational agents.
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

	"github.com/voxhall/voxhall/pkg/agent"
	"github.com/voxhall/voxhall/pkg/config"
	"github.com/voxhall/voxhall/pkg/handler"
	"github.com/voxhall/voxhall/pkg/llm"
	"github.com/voxhall/voxhall/pkg/logging"
	"github.com/voxhall/voxhall/pkg/memory"
	"github.com/voxhall/voxhall/pkg/rooms"
)

const (
	maxBodyBytes   = 10 << 10 // 10 KiB
	rateLimitMax   = 100
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
	logger.Info("Starting agentd", "config", configFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	roomClient := rooms.NewClient(cfg.Provider.URL, cfg.Provider.APIKey, cfg.Provider.APISecret)
	memClient := memory.NewClient(cfg.MemoryServiceURL)

	llmClient, err := llm.New(ctx, cfg.LLM, cfg.Agent.Name)
	if err != nil {
		logger.Error("Failed to initialize language model", "error", err)
		os.Exit(1)
	}

	registry := agent.NewRegistry(cfg.Agent.Name, memClient, llmClient,
		roomClient.Issuer(), rooms.NewWSDialer(cfg.Provider.URL))

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.CORS())
	router.Use(handler.BodyLimit(maxBodyBytes))
	router.Use(handler.NewRateLimiter(rateLimitMax, rateLimitEvery).Middleware("/health"))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "agentd"})
	})

	api := router.Group("/api/v1")
	handler.NewRoomHandler(roomClient).RegisterRoutes(api)
	handler.NewAgentHandler(registry, roomClient).RegisterRoutes(api)
	handler.NewTokenHandler(roomClient).RegisterRoutes(api)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.AgentdPort)
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
	logger.Info("agentd listening", "addr", addr)

	select {
	case <-ctx.Done():
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("Shutting down")
	registry.StopAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Shutdown did not complete cleanly", "error", err)
	}
}
