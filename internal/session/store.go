package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/geminiassist/geminiassist/internal/gateway"
	"github.com/geminiassist/geminiassist/internal/logging"
)

// Store is the authoritative registry of active sessions. Map access is
// guarded by the store lock; remote file release always happens outside it,
// after the session has been unregistered, so a release can never be
// performed twice and a slow gateway never stalls the registry.
type Store struct {
	gw  gateway.Gateway
	log zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty store backed by the given gateway.
func NewStore(gw gateway.Gateway) *Store {
	return &Store{
		gw:       gw,
		log:      logging.Component("session"),
		sessions: make(map[string]*Session),
	}
}

// Resolve returns the session for id, creating it if unknown. An empty id
// gets a generated one. Unknown ids are valid new sessions, not errors. The
// remote conversation is created eagerly, before the session is registered.
func (st *Store) Resolve(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		st.mu.RLock()
		s, ok := st.sessions[id]
		st.mu.RUnlock()
		if ok {
			s.Touch()
			return s, nil
		}
	}

	// The gateway call may block; keep it outside the lock.
	conv, err := st.gw.CreateConversation(ctx)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if id == "" {
		id = ulid.Make().String()
		for _, taken := st.sessions[id]; taken; _, taken = st.sessions[id] {
			id = ulid.Make().String()
		}
	} else if existing, ok := st.sessions[id]; ok {
		// Another resolve registered this id first; ours is discarded.
		existing.Touch()
		return existing, nil
	}

	s := newSession(id, conv, time.Now())
	st.sessions[id] = s
	st.log.Info().Str("session_id", id).Msg("new session created")
	return s, nil
}

// Terminate removes a session and releases its remote files. It reports
// whether the session existed. Release failures are logged and never block
// removal.
func (st *Store) Terminate(ctx context.Context, id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
	}
	st.mu.Unlock()

	if !ok {
		return false
	}

	st.releaseFiles(ctx, s)
	st.log.Info().Str("session_id", id).Msg("session ended")
	return true
}

// List returns a snapshot summary of every active session.
func (st *Store) List() []Summary {
	st.mu.RLock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.RUnlock()

	summaries := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, s.summary())
	}
	return summaries
}

// Len returns the number of active sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// EvictExpired removes every session idle longer than ttl and releases its
// remote files. Staleness is re-checked under the write lock immediately
// before removal, so a session touched after the scan began survives.
func (st *Store) EvictExpired(ctx context.Context, ttl time.Duration) int {
	now := time.Now()

	st.mu.RLock()
	var stale []string
	for id, s := range st.sessions {
		if now.Sub(s.LastUsed()) > ttl {
			stale = append(stale, id)
		}
	}
	st.mu.RUnlock()

	evicted := 0
	for _, id := range stale {
		st.mu.Lock()
		s, ok := st.sessions[id]
		if !ok || time.Since(s.LastUsed()) <= ttl {
			st.mu.Unlock()
			continue
		}
		delete(st.sessions, id)
		st.mu.Unlock()

		st.releaseFiles(ctx, s)
		st.log.Info().
			Str("session_id", id).
			Dur("idle", time.Since(s.LastUsed())).
			Msg("session expired and removed")
		evicted++
	}
	return evicted
}

// releaseFiles deletes every remote file owned by the session, best effort.
func (st *Store) releaseFiles(ctx context.Context, s *Session) {
	for _, pf := range s.Files() {
		if err := st.gw.DeleteFile(ctx, pf.RemoteName); err != nil {
			st.log.Warn().
				Str("session_id", s.ID).
				Str("file", pf.FileName).
				Err(err).
				Msg("failed to delete remote file")
			continue
		}
		st.log.Debug().
			Str("session_id", s.ID).
			Str("file", pf.FileName).
			Msg("deleted remote file")
	}
}
