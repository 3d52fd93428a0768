package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/docchat/docchat/internal/api"
	"github.com/docchat/docchat/internal/booking"
	"github.com/docchat/docchat/internal/chunker"
	"github.com/docchat/docchat/internal/config"
	"github.com/docchat/docchat/internal/embedding"
	"github.com/docchat/docchat/internal/history"
	"github.com/docchat/docchat/internal/ingest"
	"github.com/docchat/docchat/internal/llm"
	"github.com/docchat/docchat/internal/parser"
	"github.com/docchat/docchat/internal/pipeline"
	"github.com/docchat/docchat/internal/retrieval"
	"github.com/docchat/docchat/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docchat server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "docchat version %s\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	embedder := embedding.NewEmbedder(embedding.NewClient(cfg.Embedding.BaseURL, cfg.Embedding.Model))

	var vectorStore retrieval.VectorStore
	switch cfg.Retrieval.Backend {
	case "", "sqlite":
		vectorStore = retrieval.NewSQLiteStore(store.DB())
	case "qdrant":
		qs := retrieval.NewQdrantStore(retrieval.QdrantConfig{
			URL:        cfg.Retrieval.Qdrant.URL,
			APIKey:     cfg.Retrieval.Qdrant.APIKey,
			Collection: cfg.Retrieval.Qdrant.Collection,
		})
		if err := qs.EnsureCollection(ctx, cfg.Embedding.Dimension); err != nil {
			return fmt.Errorf("preparing qdrant collection: %w", err)
		}
		vectorStore = qs
	default:
		return fmt.Errorf("unknown vector backend %q", cfg.Retrieval.Backend)
	}

	ch := chunker.New(embedder, cfg.Chunking.ChunkSize, cfg.Chunking.Threshold)
	indexer := ingest.NewIndexer(vectorStore, nil)
	ingestPipe := ingest.NewPipeline(ch, embedder, indexer)

	llmClient := llm.NewClientWithBaseURL(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
	extractor := booking.NewExtractor(llmClient)
	hist := history.New(store.DB(), cfg.History.Limit, time.Duration(cfg.History.TTLHours)*time.Hour)
	retriever := retrieval.NewRetriever(embedder, vectorStore)
	comp := pipeline.NewComposer(hist, extractor, store, retriever, llmClient, cfg.Retrieval.TopK)

	handler := api.NewAppHandler(api.AppDeps{
		Store:           store,
		Extractor:       parser.New(),
		Pipeline:        ingestPipe,
		Composer:        comp,
		Vectors:         vectorStore,
		UploadsDir:      cfg.Storage.UploadsDir,
		Token:           cfg.Server.Token,
		DefaultStrategy: chunker.Strategy(cfg.Chunking.Strategy),
		TopK:            cfg.Retrieval.TopK,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Background ingest worker drains queued uploads.
	worker := ingest.NewWorker(store, parser.New(), ingestPipe, 500*time.Millisecond)
	go worker.Run(ctx)

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:     store,
		Retriever: retriever,
		Composer:  comp,
		TopK:      cfg.Retrieval.TopK,
	})
	mcpAddr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.MCPPort)
	sseSrv := server.NewSSEServer(mcpSrv)
	go func() {
		slog.Info("MCP server listening", "addr", mcpAddr)
		if err := sseSrv.Start(mcpAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("MCP server error", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "docchat listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sseSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("MCP server shutdown", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
}
