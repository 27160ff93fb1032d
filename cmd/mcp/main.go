package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/avolkov/grounding/internal/adapters/mcp"
	"github.com/avolkov/grounding/internal/bootstrap"
	"github.com/avolkov/grounding/internal/config"
	"github.com/avolkov/grounding/internal/observability/logging"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Stdout belongs to the MCP stdio transport.
	logger := logging.NewStderrLogger("grounding-mcp", cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	srv := mcpadapter.NewServer(app.Searcher, cfg, logger)
	if err := srv.Serve(ctx); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
