package services

import "sync"

// SubmissionGuard allows one in-flight mutation per form session.
type SubmissionGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewSubmissionGuard creates an empty guard.
func NewSubmissionGuard() *SubmissionGuard {
	return &SubmissionGuard{inFlight: make(map[string]struct{})}
}

// Acquire marks key busy. The returned release must be called on every path,
// typically with defer; calling it more than once is harmless.
func (g *SubmissionGuard) Acquire(key string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[key]; busy {
		return func() {}, ErrSubmissionInFlight
	}
	g.inFlight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, key)
			g.mu.Unlock()
		})
	}, nil
}
