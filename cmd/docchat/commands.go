package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docchat/docchat/internal/chunker"
	"github.com/docchat/docchat/internal/config"
	"github.com/docchat/docchat/internal/embedding"
	"github.com/docchat/docchat/internal/ingest"
	"github.com/docchat/docchat/internal/parser"
	"github.com/docchat/docchat/internal/retrieval"
	"github.com/docchat/docchat/internal/storage"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Chunk, embed and index a document without going through the server",
	Long: `Chunk, embed and index a document without going through the server.

Examples:
  docchat ingest ./handbook.pdf
  docchat ingest --strategy semantic ./notes.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		strategyFlag, _ := cmd.Flags().GetString("strategy")

		if !parser.Supported(path) {
			return fmt.Errorf("unsupported file type: %s", filepath.Base(path))
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		strategy := chunker.Strategy(cfg.Chunking.Strategy)
		if strategyFlag != "" {
			strategy = chunker.Strategy(strategyFlag)
		}
		if strategy != chunker.FixedSize && strategy != chunker.Semantic {
			return fmt.Errorf("unknown chunking strategy %q", strategy)
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		ctx := context.Background()
		embedder := embedding.NewEmbedder(embedding.NewClient(cfg.Embedding.BaseURL, cfg.Embedding.Model))

		var vectorStore retrieval.VectorStore
		if cfg.Retrieval.Backend == "qdrant" {
			qs := retrieval.NewQdrantStore(retrieval.QdrantConfig{
				URL:        cfg.Retrieval.Qdrant.URL,
				APIKey:     cfg.Retrieval.Qdrant.APIKey,
				Collection: cfg.Retrieval.Qdrant.Collection,
			})
			if err := qs.EnsureCollection(ctx, cfg.Embedding.Dimension); err != nil {
				return fmt.Errorf("preparing qdrant collection: %w", err)
			}
			vectorStore = qs
		} else {
			vectorStore = retrieval.NewSQLiteStore(store.DB())
		}

		ch := chunker.New(embedder, cfg.Chunking.ChunkSize, cfg.Chunking.Threshold)
		indexer := ingest.NewIndexer(vectorStore, ingest.NewDocumentRecorder(store))
		pipe := ingest.NewPipeline(ch, embedder, indexer)

		text, err := parser.New().ExtractFile(path)
		if err != nil {
			return fmt.Errorf("extracting text: %w", err)
		}

		out, err := pipe.Ingest(ctx, text, filepath.Base(path), strategy)
		if err != nil {
			return fmt.Errorf("ingesting: %w", err)
		}

		for _, warn := range out.Warnings {
			printWarning("%s", warn)
		}
		printSuccess("Indexed %s: %d chunks (%s)", filepath.Base(path), out.Stored, strategy)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("strategy", "", "chunking strategy (fixed_size or semantic)")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question over the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		userID, _ := cmd.Flags().GetString("user")
		topK, _ := cmd.Flags().GetInt("top-k")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{"query": query}
		if userID != "" {
			body["user_id"] = userID
		}
		if topK > 0 {
			body["top_k"] = topK
		}

		resp, err := client.post(cmd.Context(), "/chat", body)
		if err != nil {
			return err
		}

		var result struct {
			UserID string `json:"user_id"`
			Answer string `json:"answer"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Answer)
		if userID == "" {
			printStatus("Conversation", "%s", result.UserID)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("user", "", "conversation id (keeps chat history between calls)")
	askCmd.Flags().Int("top-k", 0, "number of chunks to retrieve")
}

// --- documents ---

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List uploaded documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/documents?limit=%d", limit))
		if err != nil {
			return err
		}

		var docs []struct {
			ID          string `json:"id"`
			Filename    string `json:"filename"`
			UploadTime  string `json:"upload_time"`
			ChunksCount int    `json:"chunks_count"`
			Status      string `json:"status"`
		}
		if err := decodeJSON(resp, &docs); err != nil {
			return err
		}

		if len(docs) == 0 {
			fmt.Println("No documents found.")
			return nil
		}

		for _, d := range docs {
			fmt.Printf("%s  %-10s %4d chunks  %s  %s\n",
				colorize(colorCyan, d.ID[:8]),
				d.Status,
				d.ChunksCount,
				d.UploadTime,
				d.Filename,
			)
		}
		return nil
	},
}

func init() {
	documentsCmd.Flags().Int("limit", 20, "maximum number of documents to list")
}
