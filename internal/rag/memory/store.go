package memory

import "sync"

// defaultSession keys queries that arrive without a session id. They share
// one window, matching the single-assistant behaviour callers without
// sessions expect.
const defaultSession = "default"

// SessionStore partitions conversation windows by session id. Windows are
// created on first use and live until explicitly cleared or the process
// exits; callers that never reuse a session id should clear it when done.
type SessionStore struct {
	mu            sync.RWMutex
	sessions      map[string]*Window
	windowSize    int
	previewLength int
}

// NewSessionStore creates an empty store producing windows of the given
// exchange size.
func NewSessionStore(windowSize, previewLength int) *SessionStore {
	return &SessionStore{
		sessions:      make(map[string]*Window),
		windowSize:    windowSize,
		previewLength: previewLength,
	}
}

// Get returns the window for a session id, creating it on first use.
func (s *SessionStore) Get(sessionID string) *Window {
	if sessionID == "" {
		sessionID = defaultSession
	}

	s.mu.RLock()
	w, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return w
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.sessions[sessionID]; ok {
		return w
	}
	w = NewWindow(s.windowSize, s.previewLength)
	s.sessions[sessionID] = w
	return w
}

// Peek returns the window for a session id without creating one.
func (s *SessionStore) Peek(sessionID string) (*Window, bool) {
	if sessionID == "" {
		sessionID = defaultSession
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.sessions[sessionID]
	return w, ok
}

// Clear empties the window for a session id if it exists.
func (s *SessionStore) Clear(sessionID string) bool {
	w, ok := s.Peek(sessionID)
	if !ok {
		return false
	}
	w.Clear()
	return true
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
