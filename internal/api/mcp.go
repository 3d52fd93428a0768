package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/docchat/docchat/internal/retrieval"
	"github.com/docchat/docchat/internal/storage"
)

// MCPSearcher abstracts semantic search for the MCP layer.
type MCPSearcher interface {
	Search(ctx context.Context, query string, topK int) (retrieval.SearchResult, error)
}

// MCPResponder abstracts the chat pipeline for the MCP layer.
type MCPResponder interface {
	Respond(ctx context.Context, userID, query string, topK int) string
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store     *storage.Store
	Retriever MCPSearcher
	Composer  MCPResponder
	TopK      int
}

// NewMCPServer creates an MCP server exposing the document QA tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"docchat",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("docchat — question answering over uploaded documents with conversational memory."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask a question over the indexed documents. Uses conversation history for the given user id."),
			mcp.WithString("query", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("user_id", mcp.Description("Conversation id for history tracking (a fresh one is generated when omitted)")),
			mcp.WithNumber("top_k", mcp.Description("Number of chunks to retrieve (default from server config)")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("search_documents",
			mcp.WithDescription("Semantically search indexed document chunks and return scored matches without calling the LLM."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchDocuments(deps),
	)

	s.AddTool(
		mcp.NewTool("list_documents",
			mcp.WithDescription("List uploaded documents with their ingestion status and chunk counts."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of documents (default 20)")),
		),
		mcpListDocuments(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"docchat://documents",
			"Indexed Documents",
			mcp.WithResourceDescription("Recently uploaded documents as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceDocuments(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		userID := req.GetString("user_id", "")
		if userID == "" {
			userID = uuid.New().String()
		}

		topK := req.GetInt("top_k", deps.TopK)
		if topK <= 0 {
			topK = deps.TopK
		}

		answer := deps.Composer.Respond(ctx, userID, query, topK)

		b, err := json.Marshal(map[string]string{
			"user_id": userID,
			"answer":  answer,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal answer: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		result, err := deps.Retriever.Search(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		if len(result.Hits) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(result.Hits)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		docs, err := deps.Store.ListDocuments(limit, 0)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list documents: %v", err)), nil
		}

		out := make([]documentResponse, 0, len(docs))
		for _, d := range docs {
			out = append(out, toDocumentResponse(d))
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal documents: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceDocuments(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		docs, err := deps.Store.ListDocuments(10, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}

		type docSummary struct {
			ID          string `json:"id"`
			Filename    string `json:"filename"`
			UploadTime  string `json:"upload_time"`
			ChunksCount int    `json:"chunks_count"`
			Status      string `json:"status"`
		}

		summaries := make([]docSummary, len(docs))
		for i, d := range docs {
			summaries[i] = docSummary{
				ID:          d.ID,
				Filename:    d.Filename,
				UploadTime:  d.UploadTime.Format(time.RFC3339),
				ChunksCount: d.ChunksCount,
				Status:      d.Status,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal documents: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
