// Verifyd runs the retrieval-augmented verification agents behind a
// single HTTP surface: document ingestion, grounded retrieval and
// claim verification.
//
// Configuration is loaded from a YAML file plus environment overrides.
// See internal/config for details.
//
// Usage:
//
//	# Start with defaults (in-memory stores, deterministic providers)
//	verifyd
//
//	# Configure via environment
//	SERVER_HTTP_PORT=9400 BRIDGE_PROVIDER=openai verifyd
//
//	# Load a config file
//	verifyd -config /etc/verifyd/config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/verifyd/internal/agent"
	"github.com/fyrsmithlabs/verifyd/internal/bridge"
	"github.com/fyrsmithlabs/verifyd/internal/chunker"
	"github.com/fyrsmithlabs/verifyd/internal/config"
	"github.com/fyrsmithlabs/verifyd/internal/embeddings"
	"github.com/fyrsmithlabs/verifyd/internal/events"
	"github.com/fyrsmithlabs/verifyd/internal/httpapi"
	"github.com/fyrsmithlabs/verifyd/internal/ingest"
	"github.com/fyrsmithlabs/verifyd/internal/lexical"
	"github.com/fyrsmithlabs/verifyd/internal/logging"
	"github.com/fyrsmithlabs/verifyd/internal/reranker"
	"github.com/fyrsmithlabs/verifyd/internal/retrieval"
	"github.com/fyrsmithlabs/verifyd/internal/telemetry"
	"github.com/fyrsmithlabs/verifyd/internal/vectorstore"
	"github.com/fyrsmithlabs/verifyd/internal/verify"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			fmt.Printf("verifyd\nVersion:    %s\nCommit:     %s\nBuild Date: %s\n", version, gitCommit, buildDate)
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  verifyd            Start the verification pipeline daemon\n")
			fmt.Fprintf(os.Stderr, "  verifyd version    Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

// run wires everything together and blocks until the context is
// cancelled: config, logger, embedder, stores, services, agent, HTTP.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("starting verifyd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Strings("task_types", cfg.Agent.TaskTypes))

	tel, err := telemetry.New(ctx, &cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embedder.Provider,
		Model:     cfg.Embedder.Model,
		BaseURL:   cfg.Embedder.BaseURL,
		Dimension: cfg.Embedder.Dimension,
	})
	if err != nil {
		return fmt.Errorf("initialize embedder: %w", err)
	}
	defer embedder.Close()

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:              cfg.Store.Path,
		DefaultCollection: cfg.Agent.DefaultCollection,
		VectorSize:        embedder.Dimension(),
	}, embedder, logger)
	if err != nil {
		return fmt.Errorf("initialize vector store: %w", err)
	}
	defer store.Close()

	lex, err := lexical.NewIndex(lexical.Config{Path: cfg.Lexical.Path}, logger)
	if err != nil {
		return fmt.Errorf("initialize lexical index: %w", err)
	}
	defer lex.Close()

	// Only a model-backed provider becomes the live judge; the default
	// stub stays out so LIVE requests remain fail-closed.
	judge, err := bridge.NewLive(bridge.Config{
		Provider: cfg.Bridge.Provider,
		BaseURL:  cfg.Bridge.BaseURL,
		Model:    cfg.Bridge.Model,
	})
	if err != nil {
		return fmt.Errorf("initialize language bridge: %w", err)
	}
	if judge != nil {
		defer judge.Close()
	}

	ingestSvc, err := ingest.NewService(ingest.Config{
		DefaultCollection: cfg.Agent.DefaultCollection,
		Chunker: chunker.Config{
			ChunkSize:    cfg.Chunker.ChunkSize,
			ChunkOverlap: cfg.Chunker.ChunkOverlap,
		},
	}, store, lex, embedder, logger)
	if err != nil {
		return fmt.Errorf("initialize ingest service: %w", err)
	}

	var rr reranker.Reranker
	if cfg.Retrieval.EnableRerank {
		rr = reranker.NewSimpleReranker()
	}
	retrievalSvc, err := retrieval.NewService(retrieval.Config{
		TopK:              cfg.Retrieval.TopK,
		SemanticK:         cfg.Retrieval.SemanticK,
		BM25K:             cfg.Retrieval.BM25K,
		SemanticWeight:    cfg.Retrieval.SemanticWeight,
		EnableBM25:        cfg.Retrieval.EnableBM25,
		EnableRerank:      cfg.Retrieval.EnableRerank,
		DefaultCollection: cfg.Agent.DefaultCollection,
	}, store, lex, rr, logger)
	if err != nil {
		return fmt.Errorf("initialize retrieval service: %w", err)
	}

	verifySvc := verify.NewService(judge, logger)

	ag, err := agent.New(agent.Config{TaskTypes: cfg.Agent.TaskTypes},
		ingestSvc, retrievalSvc, verifySvc, logger)
	if err != nil {
		return fmt.Errorf("initialize agent: %w", err)
	}

	var mirror events.Sink
	if cfg.Events.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.Events.NATSURL, logger)
		if err != nil {
			return fmt.Errorf("connect event mirror: %w", err)
		}
		defer pub.Close()
		mirror = pub
		logger.Info("event mirror enabled", zap.String("nats_url", cfg.Events.NATSURL))
	}

	srv, err := httpapi.NewServer(httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, ag, mirror, logger)
	if err != nil {
		return fmt.Errorf("initialize http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
