// Package server exposes the consultation tools over MCP, plus an optional
// HTTP status surface.
package server

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/geminiassist/geminiassist/internal/consult"
	"github.com/geminiassist/geminiassist/internal/session"
)

// ServerName identifies this MCP server to clients.
const ServerName = "gemini-coding-assistant"

// ServerVersion is reported during the MCP handshake.
const ServerVersion = "3.0.0"

type handler struct {
	orc   *consult.Orchestrator
	store *session.Store
}

// NewMCPServer builds the MCP server with the consultation tools registered.
func NewMCPServer(orc *consult.Orchestrator, store *session.Store) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
	)

	h := &handler{orc: orc, store: store}

	consultTool := mcp.NewTool("consult_gemini",
		mcp.WithDescription("Start or continue a conversation with Gemini about complex coding problems. Supports follow-up questions in the same context."),
		mcp.WithString("specific_question",
			mcp.Required(),
			mcp.Description("The specific question you want answered"),
		),
		mcp.WithString("session_id",
			mcp.Description("Optional session ID to continue a previous conversation"),
		),
		mcp.WithString("problem_description",
			mcp.Description("Detailed description of the coding problem (required for new sessions)"),
		),
		mcp.WithString("code_context",
			mcp.Description("All relevant code - will be cached for the session (required for new sessions)"),
		),
		mcp.WithArray("attached_files",
			mcp.Description("Array of file paths to upload and attach to the conversation"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithObject("file_descriptions",
			mcp.Description("Optional object mapping file paths to descriptions"),
		),
		mcp.WithString("additional_context",
			mcp.Description("Additional context, updates, or what changed since last question"),
		),
		mcp.WithString("preferred_approach",
			mcp.Description("Type of assistance needed (solution, review, debug, optimize, explain, follow-up)"),
			mcp.DefaultString(consult.DefaultApproach),
		),
	)
	s.AddTool(consultTool, h.consultGemini)

	listTool := mcp.NewTool("list_sessions",
		mcp.WithDescription("List all active Gemini consultation sessions"),
	)
	s.AddTool(listTool, h.listSessions)

	endTool := mcp.NewTool("end_session",
		mcp.WithDescription("End a specific Gemini consultation session to free up memory"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session ID to end"),
		),
	)
	s.AddTool(endTool, h.endSession)

	return s
}

// consultGemini handles the consult_gemini tool call.
func (h *handler) consultGemini(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	question := stringArg(args, "specific_question")
	if question == "" {
		return mcp.NewToolResultError("specific_question argument is required"), nil
	}

	req := consult.Request{
		Question:           question,
		SessionID:          stringArg(args, "session_id"),
		ProblemDescription: stringArg(args, "problem_description"),
		CodeContext:        stringArg(args, "code_context"),
		AttachedFiles:      stringSliceArg(args, "attached_files"),
		FileDescriptions:   stringMapArg(args, "file_descriptions"),
		AdditionalContext:  stringArg(args, "additional_context"),
		PreferredApproach:  stringArg(args, "preferred_approach"),
	}

	return mcp.NewToolResultText(h.orc.Consult(ctx, req)), nil
}

// listSessions handles the list_sessions tool call.
func (h *handler) listSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries := h.store.List()
	if len(summaries) == 0 {
		return mcp.NewToolResultText("No active sessions"), nil
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Created.Before(summaries[j].Created)
	})

	entries := make([]string, 0, len(summaries))
	for _, s := range summaries {
		codeContext := "No"
		if s.HasCodeContext {
			codeContext = "Yes"
		}
		entries = append(entries, fmt.Sprintf(
			"- **%s**\n  Messages: %d\n  Created: %s\n  Last used: %s\n  Files attached: %d\n  Code context: %s\n  Problem: %s",
			s.ID,
			s.MessageCount,
			s.Created.Format(time.RFC3339),
			s.LastUsed.Format(time.RFC3339),
			s.FileCount,
			codeContext,
			s.ProblemSummary,
		))
	}

	return mcp.NewToolResultText("Active sessions:\n" + strings.Join(entries, "\n\n")), nil
}

// endSession handles the end_session tool call. Ending an unknown session is
// reported, not errored.
func (h *handler) endSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(request.GetArguments(), "session_id")
	if id == "" {
		return mcp.NewToolResultError("session_id argument is required"), nil
	}

	if h.store.Terminate(ctx, id) {
		return mcp.NewToolResultText(fmt.Sprintf("Session %s has been ended", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s not found or already expired", id)), nil
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, elem := range raw {
		if s, ok := elem.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringMapArg(args map[string]any, key string) map[string]string {
	raw, ok := args[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
