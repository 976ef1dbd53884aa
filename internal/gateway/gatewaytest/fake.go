// Package gatewaytest provides an in-memory Gateway fake for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/geminiassist/geminiassist/internal/gateway"
)

// Fake implements gateway.Gateway in memory, recording every call.
// The zero value is usable: uploads come back ACTIVE and every send returns
// Reply (or a canned string if Reply is empty).
type Fake struct {
	mu sync.Mutex

	// Reply is returned by every SendMessage.
	Reply string
	// SendErr, when set, fails every SendMessage.
	SendErr error
	// UploadErr, when set, fails every UploadFile.
	UploadErr error
	// DeleteErr, when set, fails DeleteFile for the named remote files.
	DeleteErr map[string]error
	// UploadState is the state of freshly uploaded files. Defaults to ACTIVE.
	UploadState gateway.FileState
	// StateSequence is consumed by successive GetFile calls; once drained,
	// GetFile reports ACTIVE.
	StateSequence []gateway.FileState

	uploads       []string
	deleted       []string
	sent          [][]gateway.Part
	conversations int
}

// CreateConversation implements gateway.Gateway.
func (f *Fake) CreateConversation(ctx context.Context) (gateway.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations++
	return &fakeConversation{fake: f}, nil
}

// UploadFile implements gateway.Gateway.
func (f *Fake) UploadFile(ctx context.Context, path, mimeType string) (*gateway.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UploadErr != nil {
		return nil, f.UploadErr
	}
	f.uploads = append(f.uploads, path)

	state := f.UploadState
	if state == "" {
		state = gateway.FileStateActive
	}
	base := filepath.Base(path)
	return &gateway.File{
		Name:     "files/" + base,
		URI:      "https://files.fake/" + base,
		MIMEType: mimeType,
		State:    state,
	}, nil
}

// GetFile implements gateway.Gateway.
func (f *Fake) GetFile(ctx context.Context, name string) (*gateway.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state := gateway.FileStateActive
	if len(f.StateSequence) > 0 {
		state = f.StateSequence[0]
		f.StateSequence = f.StateSequence[1:]
	}

	file := &gateway.File{Name: name, URI: "https://files.fake/" + filepath.Base(name), State: state}
	if state == gateway.FileStateFailed {
		file.Error = &gateway.FileStatus{Message: "processing failed"}
	}
	return file, nil
}

// DeleteFile implements gateway.Gateway.
func (f *Fake) DeleteFile(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.DeleteErr[name]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, name)
	return nil
}

// Uploads returns the local paths uploaded so far.
func (f *Fake) Uploads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

// Deleted returns the remote names released so far.
func (f *Fake) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// Sent returns every message sent across all conversations, in order.
func (f *Fake) Sent() [][]gateway.Part {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]gateway.Part(nil), f.sent...)
}

// Conversations returns how many conversations were created.
func (f *Fake) Conversations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conversations
}

type fakeConversation struct {
	fake *Fake
}

func (c *fakeConversation) SendMessage(ctx context.Context, parts []gateway.Part) (string, error) {
	c.fake.mu.Lock()
	defer c.fake.mu.Unlock()
	if c.fake.SendErr != nil {
		return "", c.fake.SendErr
	}
	c.fake.sent = append(c.fake.sent, parts)
	if c.fake.Reply != "" {
		return c.fake.Reply, nil
	}
	return fmt.Sprintf("fake reply %d", len(c.fake.sent)), nil
}
