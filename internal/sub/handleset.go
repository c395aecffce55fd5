package sub

import "sync"

// handleSet tracks the active handle per purpose. Replacing a purpose
// cancels the handle it displaces.
type handleSet struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

func (s *handleSet) replace(purpose string, h *Handle) {
	s.mu.Lock()
	if s.handles == nil {
		s.handles = make(map[string]*Handle)
	}
	prior := s.handles[purpose]
	s.handles[purpose] = h
	s.mu.Unlock()

	if prior != nil {
		prior.Cancel()
	}
}

func (s *handleSet) peek(purpose string) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[purpose]
}
