package viewer

import (
	"sync"

	"github.com/orgball2608/storycam/internal/domain"
)

// Catalog is the part of the story store a session needs.
type Catalog interface {
	HasActive(ownerID string) bool
	FirstUnviewed(ownerID, viewerID string) int
}

type ChangeFunc func(domain.ViewerSession)

// Session is the single story viewer. While it is open the display layer is
// expected to suppress background interaction.
type Session struct {
	catalog Catalog

	mu        sync.RWMutex
	state     domain.ViewerSession
	listeners []ChangeFunc
}

func New(catalog Catalog) *Session {
	return &Session{catalog: catalog}
}

func (s *Session) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Open focuses ownerID's reel starting at viewerID's first unseen item.
// Opening while already open re-targets the focus. An owner with nothing
// left to show is ignored and Open reports false.
func (s *Session) Open(ownerID, viewerID string) bool {
	if ownerID == "" {
		return false
	}
	start := 0
	if s.catalog != nil {
		if !s.catalog.HasActive(ownerID) {
			return false
		}
		start = s.catalog.FirstUnviewed(ownerID, viewerID)
	}
	return s.OpenAt(ownerID, start)
}

// OpenAt focuses ownerID's reel at a given item index.
func (s *Session) OpenAt(ownerID string, index int) bool {
	if ownerID == "" {
		return false
	}
	if index < 0 {
		index = 0
	}

	s.mu.Lock()
	s.state = domain.ViewerSession{IsOpen: true, FocusedOwnerID: ownerID, StartIndex: index}
	state, listeners := s.state, s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
	return true
}

// Close clears the focus. Closing a closed session does nothing.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.state.IsOpen {
		s.mu.Unlock()
		return
	}
	s.state = domain.ViewerSession{}
	state, listeners := s.state, s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

func (s *Session) State() domain.ViewerSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SuppressBackground is the cooperative flag the display layer consults.
func (s *Session) SuppressBackground() bool {
	return s.State().IsOpen
}

// Evicted closes the session when the focused owner has nothing left to show.
// It matches story.EvictFunc.
func (s *Session) Evicted(ownerID string, _ []domain.StoryItem) {
	if s.catalog == nil || s.State().FocusedOwnerID != ownerID {
		return
	}
	if !s.catalog.HasActive(ownerID) {
		s.Close()
	}
}
