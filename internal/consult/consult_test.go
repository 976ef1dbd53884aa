package consult

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geminiassist/geminiassist/internal/attach"
	"github.com/geminiassist/geminiassist/internal/gateway"
	"github.com/geminiassist/geminiassist/internal/gateway/gatewaytest"
	"github.com/geminiassist/geminiassist/internal/ratelimit"
	"github.com/geminiassist/geminiassist/internal/session"
)

func newTestOrchestrator(fake *gatewaytest.Fake) (*Orchestrator, *session.Store) {
	store := session.NewStore(fake)
	limiter := ratelimit.New(0)
	attacher := attach.NewProcessor(fake, limiter, time.Millisecond, 50*time.Millisecond)
	return New(store, attacher, limiter), store
}

func firstText(parts []gateway.Part) string {
	if len(parts) == 0 {
		return ""
	}
	return parts[0].Text
}

func TestConsultNewSessionRequiresProblemDescription(t *testing.T) {
	fake := &gatewaytest.Fake{}
	orc, _ := newTestOrchestrator(fake)

	out := orc.Consult(context.Background(), Request{
		Question:    "why does this panic?",
		CodeContext: "package main",
	})

	assert.Equal(t, "Error: problem_description is required for new sessions", out)
	assert.Empty(t, fake.Sent())
	assert.Empty(t, fake.Uploads())
}

func TestConsultNewSessionRequiresCodeOrFiles(t *testing.T) {
	fake := &gatewaytest.Fake{}
	orc, _ := newTestOrchestrator(fake)

	out := orc.Consult(context.Background(), Request{
		Question:           "help",
		ProblemDescription: "my service deadlocks",
	})

	assert.Equal(t, "Error: either code_context or attached_files are required for new sessions", out)
	assert.Empty(t, fake.Sent())
}

func TestConsultFirstExchange(t *testing.T) {
	fake := &gatewaytest.Fake{Reply: "use a mutex"}
	orc, store := newTestOrchestrator(fake)

	out := orc.Consult(context.Background(), Request{
		Question:           "how do I fix the race?",
		SessionID:          "sess-1",
		ProblemDescription: "data race in the cache",
		CodeContext:        "type Cache struct { m map[string]string }",
		PreferredApproach:  "debug",
	})

	sent := fake.Sent()
	require.Len(t, sent, 2, "intro plus question")

	intro := firstText(sent[0])
	assert.Contains(t, intro, "I'm Claude, an AI assistant")
	assert.Contains(t, intro, "**Problem Description:**\ndata race in the cache")
	assert.Contains(t, intro, "**Code Context:**\ntype Cache struct")
	assert.Contains(t, intro, "maintain context throughout our conversation")

	question := firstText(sent[1])
	assert.Contains(t, question, "**Question:** how do I fix the race?")
	assert.Contains(t, question, "**Type of Help Needed:** debug")

	assert.Contains(t, out, "**Session ID:** sess-1")
	assert.Contains(t, out, "**Message #2**")
	assert.Contains(t, out, "use a mutex")
	assert.Contains(t, out, `Use session_id: "sess-1" for follow-up questions`)

	summaries := store.List()
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].MessageCount)
}

func TestConsultContinuationSkipsIntro(t *testing.T) {
	fake := &gatewaytest.Fake{}
	orc, _ := newTestOrchestrator(fake)

	orc.Consult(context.Background(), Request{
		Question:           "first",
		SessionID:          "s",
		ProblemDescription: "p",
		CodeContext:        "c",
	})
	require.Len(t, fake.Sent(), 2)

	out := orc.Consult(context.Background(), Request{
		Question:          "and another thing",
		SessionID:         "s",
		AdditionalContext: "I tried your suggestion, still broken",
		PreferredApproach: "follow-up",
	})

	sent := fake.Sent()
	require.Len(t, sent, 3)
	q := firstText(sent[2])
	assert.Contains(t, q, "**Question:** and another thing")
	assert.Contains(t, q, "**Additional Context/Updates:**\nI tried your suggestion, still broken")
	assert.NotContains(t, q, "Type of Help Needed")
	assert.Contains(t, out, "**Message #3**")
}

func TestConsultDefaultApproachLabel(t *testing.T) {
	fake := &gatewaytest.Fake{}
	orc, _ := newTestOrchestrator(fake)

	orc.Consult(context.Background(), Request{
		Question:           "q",
		SessionID:          "s",
		ProblemDescription: "p",
		CodeContext:        "c",
	})

	sent := fake.Sent()
	require.Len(t, sent, 2)
	assert.Contains(t, firstText(sent[1]), "**Type of Help Needed:** solution")
}

func TestConsultAttachesFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "handler.py")
	require.NoError(t, os.WriteFile(good, []byte("def handler(): pass\n"), 0644))
	missing := filepath.Join(dir, "gone.py")

	fake := &gatewaytest.Fake{}
	orc, _ := newTestOrchestrator(fake)

	out := orc.Consult(context.Background(), Request{
		Question:           "review these",
		SessionID:          "s",
		ProblemDescription: "handler misbehaves",
		AttachedFiles:      []string{good, missing},
		FileDescriptions:   map[string]string{good: "the entrypoint"},
	})

	// One upload attempted, one failed inline; the call still succeeds.
	assert.Equal(t, []string{good}, fake.Uploads())
	assert.NotContains(t, out, "Error:")

	sent := fake.Sent()
	require.Len(t, sent, 2)
	intro := firstText(sent[0])
	assert.Contains(t, intro, "**Attached Files:**")
	assert.Contains(t, intro, "- handler.py - the entrypoint")
	assert.Contains(t, intro, fmt.Sprintf("- %s (failed to upload:", missing))

	// The successful file's remote reference rides along with the text.
	require.Len(t, sent[0], 2)
	require.NotNil(t, sent[0][1].FileData)
	assert.Equal(t, "https://files.fake/handler.py", sent[0][1].FileData.FileURI)
}

func TestConsultSameFileTwiceUploadsOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0644))

	fake := &gatewaytest.Fake{}
	orc, store := newTestOrchestrator(fake)

	sess, err := store.Resolve(context.Background(), "s")
	require.NoError(t, err)

	attacher := attach.NewProcessor(fake, ratelimit.New(0), time.Millisecond, 50*time.Millisecond)
	first, err := attacher.Attach(context.Background(), path, sess)
	require.NoError(t, err)

	orc.Consult(context.Background(), Request{
		Question:           "q",
		SessionID:          "s",
		ProblemDescription: "p",
		AttachedFiles:      []string{path},
	})

	assert.Len(t, fake.Uploads(), 1)
	cached, ok := sess.FileFor(path)
	require.True(t, ok)
	assert.Same(t, first, cached)
}

func TestConsultClassifiesQuotaFault(t *testing.T) {
	fake := &gatewaytest.Fake{
		SendErr: &gateway.APIError{
			HTTPStatus: http.StatusTooManyRequests,
			Status:     "RESOURCE_EXHAUSTED",
			Message:    "quota exceeded for model",
		},
	}
	orc, _ := newTestOrchestrator(fake)

	out := orc.Consult(context.Background(), Request{
		Question:           "q",
		SessionID:          "s",
		ProblemDescription: "p",
		CodeContext:        "c",
	})

	assert.Equal(t, "Error: Gemini API quota exceeded. Please try again later.", out)
}

func TestConsultClassifiesOversizedFault(t *testing.T) {
	fake := &gatewaytest.Fake{
		SendErr: &gateway.APIError{
			HTTPStatus: http.StatusBadRequest,
			Status:     "INVALID_ARGUMENT",
			Message:    "request payload too large",
		},
	}
	orc, _ := newTestOrchestrator(fake)

	out := orc.Consult(context.Background(), Request{
		Question:           "q",
		SessionID:          "s",
		ProblemDescription: "p",
		CodeContext:        "c",
	})

	assert.Equal(t, "Error: Request too large. Try reducing code context size.", out)
}

func TestConsultPassesThroughUnknownFault(t *testing.T) {
	fake := &gatewaytest.Fake{SendErr: errors.New("connection reset by peer")}
	orc, _ := newTestOrchestrator(fake)

	out := orc.Consult(context.Background(), Request{
		Question:           "q",
		SessionID:          "s",
		ProblemDescription: "p",
		CodeContext:        "c",
	})

	assert.Equal(t, "Error: connection reset by peer", out)
}
