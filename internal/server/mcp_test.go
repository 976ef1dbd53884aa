package server

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geminiassist/geminiassist/internal/attach"
	"github.com/geminiassist/geminiassist/internal/consult"
	"github.com/geminiassist/geminiassist/internal/gateway/gatewaytest"
	"github.com/geminiassist/geminiassist/internal/ratelimit"
	"github.com/geminiassist/geminiassist/internal/session"
)

func newTestServer(fake *gatewaytest.Fake) (*handler, *session.Store) {
	store := session.NewStore(fake)
	limiter := ratelimit.New(0)
	attacher := attach.NewProcessor(fake, limiter, time.Millisecond, 50*time.Millisecond)
	orc := consult.New(store, attacher, limiter)
	return &handler{orc: orc, store: store}, store
}

func callTool(t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args
	result, err := fn(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "content should be text")
	return text.Text
}

func TestServerRegistersTools(t *testing.T) {
	fake := &gatewaytest.Fake{}
	store := session.NewStore(fake)
	limiter := ratelimit.New(0)
	orc := consult.New(store, attach.NewProcessor(fake, limiter, time.Millisecond, time.Second), limiter)

	s := NewMCPServer(orc, store)
	for _, name := range []string{"consult_gemini", "list_sessions", "end_session"} {
		require.NotNil(t, s.GetTool(name), "%s tool should exist", name)
	}
}

func TestConsultGeminiToolRequiresQuestion(t *testing.T) {
	h, _ := newTestServer(&gatewaytest.Fake{})

	result := callTool(t, h.consultGemini, map[string]any{})
	assert.True(t, result.IsError)
}

func TestConsultGeminiTool(t *testing.T) {
	fake := &gatewaytest.Fake{Reply: "split the lock"}
	h, _ := newTestServer(fake)

	result := callTool(t, h.consultGemini, map[string]any{
		"specific_question":   "how do I reduce contention?",
		"session_id":          "tool-session",
		"problem_description": "lock contention in the hot path",
		"code_context":        "var mu sync.Mutex",
		"preferred_approach":  "optimize",
	})

	assert.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "**Session ID:** tool-session")
	assert.Contains(t, text, "split the lock")

	require.Len(t, fake.Sent(), 2)
	assert.Contains(t, fake.Sent()[1][0].Text, "**Type of Help Needed:** optimize")
}

func TestConsultGeminiToolValidationSurfacesAsText(t *testing.T) {
	h, _ := newTestServer(&gatewaytest.Fake{})

	result := callTool(t, h.consultGemini, map[string]any{
		"specific_question": "anyone there?",
	})

	// Orchestrator failures come back as formatted text, not MCP errors.
	assert.False(t, result.IsError)
	assert.Equal(t, "Error: problem_description is required for new sessions", resultText(t, result))
}

func TestListSessionsEmpty(t *testing.T) {
	h, _ := newTestServer(&gatewaytest.Fake{})

	result := callTool(t, h.listSessions, map[string]any{})
	assert.Equal(t, "No active sessions", resultText(t, result))
}

func TestListSessionsTruncatesProblem(t *testing.T) {
	h, store := newTestServer(&gatewaytest.Fake{})

	sess, err := store.Resolve(context.Background(), "verbose")
	require.NoError(t, err)
	sess.SetContext(strings.Repeat("p", 150), "code")

	text := resultText(t, callTool(t, h.listSessions, map[string]any{}))
	assert.Contains(t, text, "Active sessions:")
	assert.Contains(t, text, "- **verbose**")
	assert.Contains(t, text, "Problem: "+strings.Repeat("p", 100)+"...")
	assert.Contains(t, text, "Code context: Yes")
}

func TestEndSessionReleasesFiles(t *testing.T) {
	fake := &gatewaytest.Fake{}
	h, store := newTestServer(fake)

	sess, err := store.Resolve(context.Background(), "done")
	require.NoError(t, err)
	sess.AddFile(&session.ProcessedFile{LocalPath: "/tmp/a.py", FileName: "a.py", RemoteName: "files/a"})

	text := resultText(t, callTool(t, h.endSession, map[string]any{"session_id": "done"}))
	assert.Equal(t, "Session done has been ended", text)
	assert.Equal(t, []string{"files/a"}, fake.Deleted())
	assert.Zero(t, store.Len())
}

func TestEndSessionUnknownID(t *testing.T) {
	h, _ := newTestServer(&gatewaytest.Fake{})

	text := resultText(t, callTool(t, h.endSession, map[string]any{"session_id": "ghost"}))
	assert.Equal(t, "Session ghost not found or already expired", text)
}

func TestEndSessionRequiresID(t *testing.T) {
	h, _ := newTestServer(&gatewaytest.Fake{})

	result := callTool(t, h.endSession, map[string]any{})
	assert.True(t, result.IsError)
}
