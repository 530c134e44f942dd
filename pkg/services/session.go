package services

import (
	"context"
	"sync"
)

// Session tracks the workflow a single viewer is looking at. Switching
// releases the previous view before the new one is loaded, so nothing
// computed for the old workflow outlives the switch.
type Session struct {
	catalog *Catalog

	mu      sync.Mutex
	current string
}

func NewSession(catalog *Catalog) *Session {
	return &Session{catalog: catalog}
}

// Switch makes workflowID the active workflow and returns its view.
func (s *Session) Switch(ctx context.Context, workflowID string) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == workflowID {
		return s.catalog.Open(ctx, workflowID)
	}

	if s.current != "" {
		s.catalog.Release(ctx, s.current)
		s.current = ""
	}

	view, err := s.catalog.Acquire(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	s.current = workflowID

	return view, nil
}

// Current returns the active view.
func (s *Session) Current() (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == "" {
		return nil, ErrWorkflowNotLoaded
	}

	return s.catalog.Get(s.current)
}

func (s *Session) WorkflowID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// End releases the active view.
func (s *Session) End(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != "" {
		s.catalog.Release(ctx, s.current)
		s.current = ""
	}
}

// Sessions keeps one Session per viewer.
type Sessions struct {
	catalog *Catalog

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessions(catalog *Catalog) *Sessions {
	return &Sessions{catalog: catalog, sessions: make(map[string]*Session)}
}

// For returns the session of viewerID, creating it on first use.
func (s *Sessions) For(viewerID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[viewerID]
	if !ok {
		session = NewSession(s.catalog)
		s.sessions[viewerID] = session
	}

	return session
}

// End releases and forgets viewerID's session.
func (s *Sessions) End(ctx context.Context, viewerID string) {
	s.mu.Lock()
	session, ok := s.sessions[viewerID]
	delete(s.sessions, viewerID)
	s.mu.Unlock()

	if ok {
		session.End(ctx)
	}
}
