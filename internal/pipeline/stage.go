package pipeline

import "sync"

// stageTracker names the stage currently running, for the heartbeat log.
type stageTracker struct {
	mu   sync.Mutex
	name string
}

func newStageTracker() *stageTracker {
	return &stageTracker{name: "starting"}
}

func (s *stageTracker) set(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

func (s *stageTracker) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}
