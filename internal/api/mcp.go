package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer exposes the engine over the Model Context Protocol so
// assistants can ask for verses directly instead of going through HTTP.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"solace",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("solace — mood-aware verse recommendation over a sacred-text corpus."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("find_verse",
			mcp.WithDescription("Classify the mood of a message and return a matching verse with a composed reply."),
			mcp.WithString("message", mcp.Description("The user's message"), mcp.Required()),
			mcp.WithString("user_id", mcp.Description("User identifier for history tracking (default \"local\")")),
		),
		mcpFindVerse(deps),
	)

	s.AddTool(
		mcp.NewTool("daily_verse",
			mcp.WithDescription("Return the verse of the day. The draw is deterministic per user and day."),
			mcp.WithString("user_id", mcp.Description("User identifier (default \"local\")")),
		),
		mcpDailyVerse(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"corpus://stats",
			"Corpus Stats",
			mcp.WithResourceDescription("Verse count, pending embedding jobs, and index state"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpFindVerse(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		userID := req.GetString("user_id", defaultUserID)

		result, err := deps.Engine.ForChat(ctx, userID, message)
		if err != nil {
			return mcpError(fmt.Sprintf("find_verse failed: %v", err)), nil
		}

		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpDailyVerse(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID := req.GetString("user_id", defaultUserID)

		result, err := deps.Engine.Daily(ctx, userID)
		if err != nil {
			return mcpError(fmt.Sprintf("daily_verse failed: %v", err)), nil
		}

		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceStats(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		verseCount, err := deps.Store.CountVerses()
		if err != nil {
			return nil, fmt.Errorf("counting verses: %w", err)
		}
		pending, err := deps.Store.PendingJobCount()
		if err != nil {
			return nil, fmt.Errorf("counting jobs: %w", err)
		}

		b, err := json.Marshal(map[string]any{
			"verses":       verseCount,
			"pending_jobs": pending,
			"index_ready":  deps.Index.Ready(),
			"index_size":   deps.Index.Size(),
		})
		if err != nil {
			return nil, fmt.Errorf("marshaling stats: %w", err)
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
