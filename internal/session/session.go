// Package session provides the in-memory registry of consultation sessions
// and their background expiry.
package session

import (
	"sync"
	"time"

	"github.com/geminiassist/geminiassist/internal/gateway"
)

// problemSummaryLimit is the truncation length used in listings.
const problemSummaryLimit = 100

// ProcessedFile records a local file uploaded to the gateway within a
// session. RemoteName is the remote handle owned by the session; it must be
// released exactly once when the session is destroyed.
type ProcessedFile struct {
	LocalPath  string
	FileName   string
	MIMEType   string
	RemoteName string
	RemoteURI  string
}

// Session binds a caller-chosen identifier to an ongoing remote conversation
// and the files attached to it.
//
// ID, Conversation and Created are immutable after creation. The remaining
// fields are guarded by the session's own mutex; callers are still expected
// not to issue concurrent consultations against the same session id, in
// which case message ordering at the remote conversation is unspecified.
type Session struct {
	ID           string
	Conversation gateway.Conversation
	Created      time.Time

	mu                 sync.Mutex
	lastUsed           time.Time
	messageCount       int
	problemDescription string
	codeContext        string
	processedFiles     map[string]*ProcessedFile
}

func newSession(id string, conv gateway.Conversation, now time.Time) *Session {
	return &Session{
		ID:             id,
		Conversation:   conv,
		Created:        now,
		lastUsed:       now,
		processedFiles: make(map[string]*ProcessedFile),
	}
}

// Touch refreshes the last-used timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// LastUsed returns the last-used timestamp.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// MessageCount returns the number of exchanges sent so far.
func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageCount
}

// RecordExchange increments the exchange counter and returns the new value.
func (s *Session) RecordExchange() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageCount++
	return s.messageCount
}

// SetContext captures the initial problem description and code context.
// First write wins; later calls are ignored.
func (s *Session) SetContext(problemDescription, codeContext string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.problemDescription == "" && s.codeContext == "" {
		s.problemDescription = problemDescription
		s.codeContext = codeContext
	}
}

// Context returns the captured problem description and code context.
func (s *Session) Context() (problemDescription, codeContext string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.problemDescription, s.codeContext
}

// FileFor returns the cached upload record for a local path, if present.
func (s *Session) FileFor(path string) (*ProcessedFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pf, ok := s.processedFiles[path]
	return pf, ok
}

// AddFile caches an upload record, keyed by its local path.
func (s *Session) AddFile(pf *ProcessedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processedFiles[pf.LocalPath] = pf
}

// Files returns a snapshot of the session's upload records.
func (s *Session) Files() []*ProcessedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := make([]*ProcessedFile, 0, len(s.processedFiles))
	for _, pf := range s.processedFiles {
		files = append(files, pf)
	}
	return files
}

// FileCount returns the number of files attached to the session.
func (s *Session) FileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processedFiles)
}

// Summary is the listing view of a session.
type Summary struct {
	ID             string
	Created        time.Time
	LastUsed       time.Time
	MessageCount   int
	FileCount      int
	HasCodeContext bool
	ProblemSummary string
}

func (s *Session) summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		ID:             s.ID,
		Created:        s.Created,
		LastUsed:       s.lastUsed,
		MessageCount:   s.messageCount,
		FileCount:      len(s.processedFiles),
		HasCodeContext: s.codeContext != "",
		ProblemSummary: summarize(s.problemDescription),
	}
}

// summarize truncates a problem description for listings.
func summarize(description string) string {
	if description == "" {
		return "No description"
	}
	runes := []rune(description)
	if len(runes) <= problemSummaryLimit {
		return description
	}
	return string(runes[:problemSummaryLimit]) + "..."
}
