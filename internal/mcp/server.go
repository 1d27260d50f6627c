// Package mcp exposes read-only catalog tools over the Model Context
// Protocol so assistants can browse and quiz from the catalog without going
// through the HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/cautiouskurns/FinalRound/internal/db"
)

// NewServer creates an MCPServer with the catalog tools registered.
func NewServer(database *db.DB, version string) *mcpserver.MCPServer {
	srv := mcpserver.NewMCPServer(
		"finalround",
		version,
		mcpserver.WithToolCapabilities(true),
	)

	h := &handlers{db: database}

	srv.AddTool(mcp.Tool{
		Name:        "catalog_outline",
		Description: "List the interview-prep catalog as subjects with their topics and concepts (no questions).",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, h.catalogOutline)

	srv.AddTool(mcp.Tool{
		Name:        "get_subject",
		Description: "Get one subject with its full topic/concept/question tree.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"subject_id": map[string]interface{}{
					"type":        "number",
					"description": "Subject id from catalog_outline",
				},
			},
			Required: []string{"subject_id"},
		},
	}, h.getSubject)

	srv.AddTool(mcp.Tool{
		Name:        "search_questions",
		Description: "Full-text search over interview questions and answers.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of hits (default 10)",
					"default":     10,
				},
			},
			Required: []string{"query"},
		},
	}, h.searchQuestions)

	srv.AddTool(mcp.Tool{
		Name:        "catalog_stats",
		Description: "Row counts per catalog level: subjects, topics, concepts, questions.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, h.catalogStats)

	return srv
}

type handlers struct {
	db *db.DB
}

func (h *handlers) catalogOutline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	outline, err := h.db.LoadOutline()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading outline: %v", err)), nil
	}
	return jsonResult(outline)
}

func (h *handlers) getSubject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subjectID, err := request.RequireInt("subject_id")
	if err != nil {
		return mcp.NewToolResultError("subject_id argument is required and must be a number"), nil
	}

	catalog, err := h.db.LoadCatalog(true)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading catalog: %v", err)), nil
	}
	for _, s := range catalog {
		if s.ID == int64(subjectID) {
			return jsonResult(s)
		}
	}
	return mcp.NewToolResultError(fmt.Sprintf("subject %d not found", int64(subjectID))), nil
}

func (h *handlers) searchQuestions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	limit := request.GetInt("limit", 10)

	hits, err := h.db.SearchQuestions(query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("searching: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{"hits": hits})
}

func (h *handlers) catalogStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subjects, topics, concepts, questions, err := h.db.Counts()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reading counts: %v", err)), nil
	}
	return jsonResult(map[string]int{
		"subjects":  subjects,
		"topics":    topics,
		"concepts":  concepts,
		"questions": questions,
	})
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
