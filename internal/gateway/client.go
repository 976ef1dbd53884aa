package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"

	// maxRetries bounds retries of transient (5xx, network) failures.
	maxRetries = 3
	// retryInitialInterval is the initial interval for exponential backoff.
	retryInitialInterval = 500 * time.Millisecond
	// retryMaxInterval is the maximum interval for exponential backoff.
	retryMaxInterval = 5 * time.Second
)

// Client is the HTTP implementation of Gateway against the Generative
// Language API. It is safe for concurrent use.
type Client struct {
	apiKey       string
	model        string
	baseURL      string
	systemPrompt string
	genConfig    GenerationConfig
	httpClient   *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithModel sets the model identifier.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSystemPrompt sets the system instruction sent with every conversation.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) { c.systemPrompt = prompt }
}

// WithGenerationConfig sets the sampling parameters.
func WithGenerationConfig(gc GenerationConfig) Option {
	return func(c *Client) { c.genConfig = gc }
}

// NewClient creates a Gemini API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		model:      "gemini-2.5-pro",
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// generateRequest is the body of a generateContent call.
type generateRequest struct {
	SystemInstruction *Content          `json:"system_instruction,omitempty"`
	Contents          []Content         `json:"contents"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// generateResponse is the body of a generateContent reply.
type generateResponse struct {
	Candidates []struct {
		Content Content `json:"content"`
	} `json:"candidates"`
}

// chat implements Conversation by carrying the full turn history and
// replaying it on every send.
type chat struct {
	client *Client

	mu      sync.Mutex
	history []Content
}

// CreateConversation opens a new conversation. No remote call is made until
// the first message: the service itself is stateless per request, the
// conversational context lives in the replayed history.
func (c *Client) CreateConversation(ctx context.Context) (Conversation, error) {
	return &chat{client: c}, nil
}

// SendMessage sends one user turn and returns the model reply text. History
// is only extended after a successful exchange.
func (ch *chat) SendMessage(ctx context.Context, parts []Part) (string, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	userTurn := Content{Role: "user", Parts: parts}
	contents := append(append([]Content{}, ch.history...), userTurn)

	req := generateRequest{
		Contents:         contents,
		GenerationConfig: &ch.client.genConfig,
	}
	if ch.client.systemPrompt != "" {
		req.SystemInstruction = &Content{Parts: []Part{TextPart(ch.client.systemPrompt)}}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		ch.client.baseURL, ch.client.model, ch.client.apiKey)

	respBody, err := ch.client.post(ctx, url, "application/json", body)
	if err != nil {
		return "", err
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if len(result.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}

	var text strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	ch.history = append(ch.history, userTurn, result.Candidates[0].Content)
	return text.String(), nil
}

// UploadFile uploads a local file via the media-upload endpoint using a
// multipart/related body: a JSON metadata part followed by the file bytes.
func (c *Client) UploadFile(ctx context.Context, path, mimeType string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := w.CreatePart(metaHeader)
	if err != nil {
		return nil, err
	}
	meta := map[string]any{"file": map[string]any{"displayName": filepath.Base(path)}}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return nil, err
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", mimeType)
	mediaPart, err := w.CreatePart(mediaHeader)
	if err != nil {
		return nil, err
	}
	if _, err := mediaPart.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/upload/v1beta/files?key=%s&uploadType=multipart", c.baseURL, c.apiKey)
	contentType := "multipart/related; boundary=" + w.Boundary()

	respBody, err := c.post(ctx, url, contentType, buf.Bytes())
	if err != nil {
		return nil, err
	}

	var result struct {
		File File `json:"file"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &result.File, nil
}

// GetFile fetches the current record of an uploaded file.
func (c *Client) GetFile(ctx context.Context, name string) (*File, error) {
	url := fmt.Sprintf("%s/v1beta/%s?key=%s", c.baseURL, name, c.apiKey)

	respBody, err := c.doRetry(ctx, http.MethodGet, url, "", nil)
	if err != nil {
		return nil, err
	}

	var file File
	if err := json.Unmarshal(respBody, &file); err != nil {
		return nil, fmt.Errorf("decode file %s: %w", name, err)
	}
	return &file, nil
}

// DeleteFile releases an uploaded file.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	url := fmt.Sprintf("%s/v1beta/%s?key=%s", c.baseURL, name, c.apiKey)
	_, err := c.doRetry(ctx, http.MethodDelete, url, "", nil)
	return err
}

func (c *Client) post(ctx context.Context, url, contentType string, body []byte) ([]byte, error) {
	return c.doRetry(ctx, http.MethodPost, url, contentType, body)
}

// doRetry performs a request, retrying transient failures with exponential
// backoff and jitter. 4xx responses are never retried.
func (c *Client) doRetry(ctx context.Context, method, url, contentType string, body []byte) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.RandomizationFactor = 0.5

	var result []byte
	op := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err // network errors are retryable
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			result = data
			return nil
		}

		apiErr := parseAPIError(resp.StatusCode, data)
		if resp.StatusCode >= 500 {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// parseAPIError decodes a structured error body, falling back to the raw
// response text.
func parseAPIError(status int, body []byte) *APIError {
	var wrapper struct {
		Error APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error.Message != "" {
		wrapper.Error.HTTPStatus = status
		return &wrapper.Error
	}
	return &APIError{HTTPStatus: status, Message: strings.TrimSpace(string(body))}
}
