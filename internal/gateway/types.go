package gateway

import "fmt"

// Part is one segment of a message: text, or a reference to an uploaded file.
type Part struct {
	Text     string    `json:"text,omitempty"`
	FileData *FileData `json:"fileData,omitempty"`
}

// TextPart builds a text-only part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// FilePart builds a part referencing an uploaded file.
func FilePart(mimeType, uri string) Part {
	return Part{FileData: &FileData{MIMEType: mimeType, FileURI: uri}}
}

// FileData references an uploaded file inside a message.
type FileData struct {
	MIMEType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

// Content is one turn of a conversation.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// GenerationConfig holds sampling settings sent with every generation call.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
}

// FileState is the processing state of an uploaded file.
type FileState string

// File states reported by the service.
const (
	FileStateProcessing FileState = "PROCESSING"
	FileStateActive     FileState = "ACTIVE"
	FileStateFailed     FileState = "FAILED"
)

// File is the remote record of an uploaded file. Name is the remote handle
// ("files/..."), URI is the reference used inside messages.
type File struct {
	Name     string      `json:"name"`
	URI      string      `json:"uri"`
	MIMEType string      `json:"mimeType"`
	State    FileState   `json:"state"`
	Error    *FileStatus `json:"error,omitempty"`
}

// FileStatus carries the failure detail of a FAILED file.
type FileStatus struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// APIError is a structured error response from the service. Status carries
// the upstream code string (for example RESOURCE_EXHAUSTED or
// INVALID_ARGUMENT) used for fault classification.
type APIError struct {
	HTTPStatus int    `json:"code"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("gemini api error %d %s: %s", e.HTTPStatus, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini api error %d: %s", e.HTTPStatus, e.Message)
}
