// Package gateway provides the client for the remote Gemini service.
//
// The service is consumed through two small interfaces so the rest of the
// server never depends on HTTP details: Gateway covers conversation creation
// and the file-resource lifecycle, Conversation covers message exchange
// within one remote context.
package gateway

import "context"

// Gateway is the remote model service.
type Gateway interface {
	// CreateConversation opens a new conversational context.
	CreateConversation(ctx context.Context) (Conversation, error)

	// UploadFile uploads a local file and returns its remote record.
	// The returned file may still be in the processing state.
	UploadFile(ctx context.Context, path, mimeType string) (*File, error)

	// GetFile fetches the current state of an uploaded file by its
	// remote name.
	GetFile(ctx context.Context, name string) (*File, error)

	// DeleteFile releases an uploaded file.
	DeleteFile(ctx context.Context, name string) error
}

// Conversation is one ongoing exchange with the model. Each send carries the
// full prior history, so messages within a conversation must not be issued
// concurrently.
type Conversation interface {
	// SendMessage sends the given parts as one user turn and returns the
	// model's reply text.
	SendMessage(ctx context.Context, parts []Part) (string, error)
}
