// Package consult orchestrates a consultation call: session resolution, file
// attachment, message composition, and reply formatting.
package consult

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/geminiassist/geminiassist/internal/attach"
	"github.com/geminiassist/geminiassist/internal/gateway"
	"github.com/geminiassist/geminiassist/internal/logging"
	"github.com/geminiassist/geminiassist/internal/ratelimit"
	"github.com/geminiassist/geminiassist/internal/session"
)

// DefaultApproach is used when the caller does not name the kind of help
// wanted.
const DefaultApproach = "solution"

// ValidationError reports missing required fields on a session's first
// exchange. It is raised before any message or upload reaches the gateway.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Request carries the arguments of one consultation call.
type Request struct {
	Question           string
	SessionID          string
	ProblemDescription string
	CodeContext        string
	AttachedFiles      []string
	FileDescriptions   map[string]string
	AdditionalContext  string
	PreferredApproach  string
}

// Orchestrator composes the store, the attachment processor and the rate
// limiter into the per-call entry point.
type Orchestrator struct {
	store    *session.Store
	attacher *attach.Processor
	limiter  *ratelimit.Limiter
	log      zerolog.Logger
}

// New creates an orchestrator.
func New(store *session.Store, attacher *attach.Processor, limiter *ratelimit.Limiter) *Orchestrator {
	return &Orchestrator{
		store:    store,
		attacher: attacher,
		limiter:  limiter,
		log:      logging.Component("consult"),
	}
}

// Consult answers one question, creating or continuing a session. The result
// is always display-ready text: failures come back as formatted error
// strings, never as raised faults.
func (o *Orchestrator) Consult(ctx context.Context, req Request) string {
	text, err := o.consult(ctx, req)
	if err != nil {
		o.log.Error().Err(err).Str("session_id", req.SessionID).Msg("consultation failed")
		return "Error: " + classifyFault(err)
	}
	return text
}

func (o *Orchestrator) consult(ctx context.Context, req Request) (string, error) {
	approach := req.PreferredApproach
	if approach == "" {
		approach = DefaultApproach
	}

	// Coarse global throttle, ahead of any gateway-touching work.
	if err := o.limiter.Wait(ctx); err != nil {
		return "", err
	}

	sess, err := o.store.Resolve(ctx, req.SessionID)
	if err != nil {
		return "", err
	}
	log := logging.Session(sess.ID)

	if sess.MessageCount() == 0 {
		if err := o.establishContext(ctx, sess, req, log); err != nil {
			return "", err
		}
	}

	var q strings.Builder
	q.WriteString("**Question:** ")
	q.WriteString(req.Question)
	if req.AdditionalContext != "" {
		q.WriteString("\n\n**Additional Context/Updates:**\n")
		q.WriteString(req.AdditionalContext)
	}
	if approach != "follow-up" {
		q.WriteString("\n\n**Type of Help Needed:** ")
		q.WriteString(approach)
	}

	log.Info().
		Int("question", sess.MessageCount()+1).
		Str("approach", approach).
		Msg("sending question")

	reply, err := sess.Conversation.SendMessage(ctx, []gateway.Part{gateway.TextPart(q.String())})
	if err != nil {
		return "", err
	}
	count := sess.RecordExchange()

	return formatReply(sess.ID, count, reply), nil
}

// establishContext validates and sends the introductory message of a new
// session: the problem description, the optional code context, and every
// attached file. A single file's failure is noted inline and never aborts
// the call.
func (o *Orchestrator) establishContext(ctx context.Context, sess *session.Session, req Request, log zerolog.Logger) error {
	if strings.TrimSpace(req.ProblemDescription) == "" {
		return &ValidationError{"problem_description is required for new sessions"}
	}
	if strings.TrimSpace(req.CodeContext) == "" && len(req.AttachedFiles) == 0 {
		return &ValidationError{"either code_context or attached_files are required for new sessions"}
	}

	sess.SetContext(req.ProblemDescription, req.CodeContext)

	var b strings.Builder
	b.WriteString("I'm Claude, an AI assistant, and I need your help with a complex coding problem. Here's the context:\n\n**Problem Description:**\n")
	b.WriteString(req.ProblemDescription)

	if req.CodeContext != "" {
		b.WriteString("\n**Code Context:**\n")
		b.WriteString(req.CodeContext)
	}

	var fileParts []gateway.Part
	if len(req.AttachedFiles) > 0 {
		b.WriteString("\n**Attached Files:**")
		for _, path := range req.AttachedFiles {
			pf, err := o.attacher.Attach(ctx, path, sess)
			if err != nil {
				log.Warn().Str("path", path).Err(err).Msg("failed to process file")
				fmt.Fprintf(&b, "\n- %s (failed to upload: %s)", path, err)
				continue
			}
			b.WriteString("\n- ")
			b.WriteString(pf.FileName)
			if desc := req.FileDescriptions[path]; desc != "" {
				b.WriteString(" - ")
				b.WriteString(desc)
			}
			fileParts = append(fileParts, gateway.FilePart(pf.MIMEType, pf.RemoteURI))
		}
	}

	b.WriteString("\n\nPlease help me solve this problem. I may have follow-up questions, so please maintain context throughout our conversation.")

	parts := append([]gateway.Part{gateway.TextPart(b.String())}, fileParts...)
	if _, err := sess.Conversation.SendMessage(ctx, parts); err != nil {
		return err
	}
	sess.RecordExchange()

	log.Info().
		Int("code_chars", len(req.CodeContext)).
		Int("files", sess.FileCount()).
		Msg("initial context sent")
	return nil
}

// formatReply renders the reply for direct display, including the
// continuation hint.
func formatReply(sessionID string, messageCount int, reply string) string {
	return fmt.Sprintf(
		"**Session ID:** %s\n**Message #%d**\n\n%s\n\n---\n*Use session_id: %q for follow-up questions*",
		sessionID, messageCount, reply, sessionID,
	)
}

// faultMessages maps known upstream fault signatures to friendlier text.
// Matching is by substring: the service does not expose structured fault
// codes through every failure path.
var faultMessages = []struct {
	signature string
	message   string
}{
	{"RESOURCE_EXHAUSTED", "Gemini API quota exceeded. Please try again later."},
	{"INVALID_ARGUMENT", "Request too large. Try reducing code context size."},
}

func classifyFault(err error) string {
	msg := err.Error()
	for _, f := range faultMessages {
		if strings.Contains(msg, f.signature) {
			return f.message
		}
	}
	return msg
}
