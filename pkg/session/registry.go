package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoActiveSession is returned by operations that require a session the
// user has not started. Callers turn it into guidance, not a stack trace.
var ErrNoActiveSession = errors.New("no active session; use /opencode to start one first")

// DefaultAgent is the assistant mode a fresh session starts in.
const DefaultAgent = "build"

// Session is one user's conversation with the assistant server. It lives
// only in process memory; a restart orphans it, which is acceptable loss.
type Session struct {
	UserID        int64
	SessionID     string // opaque id issued by the server
	ChatID        int64
	Agent         string
	LastMessageID int
	CreatedAt     time.Time
}

// Registry holds at most one Session per Telegram user id, plus the cancel
// handle of that user's event-stream loop. Enforcing "don't start twice" is
// the caller's job; the registry just stores.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	cancels  map[int64]context.CancelFunc
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		cancels:  make(map[int64]context.CancelFunc),
	}
}

// Put stores a freshly created session for the user.
func (r *Registry) Put(userID int64, sessionID string, chatID int64) *Session {
	s := &Session{
		UserID:    userID,
		SessionID: sessionID,
		ChatID:    chatID,
		Agent:     DefaultAgent,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.sessions[userID] = s
	r.mu.Unlock()
	return s
}

// Get returns the user's session or ErrNoActiveSession.
func (r *Registry) Get(userID int64) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	return s, nil
}

// Has reports whether the user currently owns a session.
func (r *Registry) Has(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

// Remove tears the user's session down: the event loop is cancelled before
// the record disappears so a late event can never see a half-removed entry.
func (r *Registry) Remove(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, ok := r.cancels[userID]; ok {
		cancel()
		delete(r.cancels, userID)
	}
	delete(r.sessions, userID)
}

// SetContext records where the session's output should render.
func (r *Registry) SetContext(userID, chatID int64, messageID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok {
		s.ChatID = chatID
		s.LastMessageID = messageID
	}
}

// SetAgent updates the session's current assistant mode.
func (r *Registry) SetAgent(userID int64, agent string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok {
		s.Agent = agent
	}
}

// BindStream registers the cancel handle of the user's event loop, stopping
// any previous loop first so two subscriptions never serve one user.
func (r *Registry) BindStream(userID int64, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.cancels[userID]; ok {
		prev()
	}
	r.cancels[userID] = cancel
}

// StopStream cancels the user's event loop if one is running.
func (r *Registry) StopStream(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, ok := r.cancels[userID]; ok {
		cancel()
		delete(r.cancels, userID)
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
