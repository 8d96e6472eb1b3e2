package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stagelab/chatroom/internal/config"
	"github.com/stagelab/chatroom/internal/hub"
	"github.com/stagelab/chatroom/internal/policy"
	"github.com/stagelab/chatroom/internal/session"
	"github.com/stagelab/chatroom/internal/tokens"
	transport "github.com/stagelab/chatroom/internal/transport/http"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting chatroom backend...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Experiments: %s", cfg.ExperimentsPath)
	log.Printf("Session log dir: %s", cfg.LogDir)

	// Load experiment definitions
	exp, err := config.LoadExperiments(cfg.ExperimentsPath)
	if err != nil {
		log.Fatalf("Failed to load experiments: %v", err)
	}

	// Initialize token store
	tokenStore, err := tokens.NewStore(cfg.TokensPath, cfg.TokenLedgerDSN)
	if err != nil {
		log.Fatalf("Failed to initialize token store: %v", err)
	}
	defer tokenStore.Close()

	defined := make(map[string]struct{}, len(exp.Groups))
	for name := range exp.Groups {
		defined[name] = struct{}{}
	}
	if err := tokenStore.ValidateGroups(defined); err != nil {
		log.Fatalf("Token/experiment mismatch: %v", err)
	}

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize connection hub
	h := hub.NewHub()
	go h.Run()

	// Initialize session registry
	registry := session.NewRegistry(cfg, exp, policyEngine, h)

	// Create HTTP server
	server := transport.NewServer(cfg, registry, tokenStore, h)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	registry.Shutdown("server_shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}
