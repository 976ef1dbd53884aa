// Package attach uploads local files to the gateway on behalf of a session,
// at most once per path, waiting for remote processing with a bounded poll.
package attach

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/geminiassist/geminiassist/internal/gateway"
	"github.com/geminiassist/geminiassist/internal/logging"
	"github.com/geminiassist/geminiassist/internal/ratelimit"
	"github.com/geminiassist/geminiassist/internal/session"
)

// Attachment failures. Each is caught per file by the orchestrator and
// degraded into an inline note; it never aborts the enclosing consultation.
var (
	// ErrNotFound means the local path does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrUploadFailed means the gateway reported the upload as failed.
	ErrUploadFailed = errors.New("file upload failed")
	// ErrProcessingTimeout means the file never left the processing state
	// within the configured bound.
	ErrProcessingTimeout = errors.New("file processing timed out")
)

// Processor uploads files through the gateway, throttled by the shared rate
// limiter.
type Processor struct {
	gw           gateway.Gateway
	limiter      *ratelimit.Limiter
	pollInterval time.Duration
	timeout      time.Duration
	log          zerolog.Logger
}

// NewProcessor creates a processor that polls every pollInterval and gives
// up after timeout.
func NewProcessor(gw gateway.Gateway, limiter *ratelimit.Limiter, pollInterval, timeout time.Duration) *Processor {
	return &Processor{
		gw:           gw,
		limiter:      limiter,
		pollInterval: pollInterval,
		timeout:      timeout,
		log:          logging.Component("attach"),
	}
}

// Attach ensures path is uploaded within the session and returns its record.
// Repeated attachments of the same path return the cached record without
// touching the gateway.
func (p *Processor) Attach(ctx context.Context, path string, sess *session.Session) (*session.ProcessedFile, error) {
	if pf, ok := sess.FileFor(path); ok {
		return pf, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	fileName := filepath.Base(path)
	mimeType := DetectMIMEType(path)

	log := logging.Session(sess.ID)
	log.Info().Str("file", fileName).Str("mime_type", mimeType).Msg("uploading file")

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	file, err := p.gw.UploadFile(ctx, path, mimeType)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", fileName, err)
	}

	file, err = p.awaitProcessed(ctx, file, log)
	if err != nil {
		return nil, err
	}

	pf := &session.ProcessedFile{
		LocalPath:  path,
		FileName:   fileName,
		MIMEType:   file.MIMEType,
		RemoteName: file.Name,
		RemoteURI:  file.URI,
	}
	if pf.MIMEType == "" {
		pf.MIMEType = mimeType
	}
	sess.AddFile(pf)

	log.Info().Str("file", fileName).Str("uri", pf.RemoteURI).Msg("file uploaded")
	return pf, nil
}

// awaitProcessed polls until the file leaves the processing state or the
// bound elapses.
func (p *Processor) awaitProcessed(ctx context.Context, file *gateway.File, log zerolog.Logger) (*gateway.File, error) {
	deadline := time.Now().Add(p.timeout)

	for file.State == gateway.FileStateProcessing {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w after %s: %s", ErrProcessingTimeout, p.timeout, file.Name)
		}

		log.Debug().Str("file", file.Name).Msg("file still processing")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.pollInterval):
		}

		refreshed, err := p.gw.GetFile(ctx, file.Name)
		if err != nil {
			return nil, fmt.Errorf("poll %s: %w", file.Name, err)
		}
		file = refreshed
	}

	if file.State == gateway.FileStateFailed {
		detail := "unknown error"
		if file.Error != nil && file.Error.Message != "" {
			detail = file.Error.Message
		}
		return nil, fmt.Errorf("%w: %s", ErrUploadFailed, detail)
	}
	return file, nil
}
