package apiclient

import "sync"

// Reason tells subscribers why the session ended
type Reason string

const (
	ReasonRefreshFailed Reason = "refresh_failed"
	ReasonLoggedOut     Reason = "logged_out"
)

// SessionSignal broadcasts session invalidation to its subscribers. It
// replaces a global event bus: whoever builds the client owns the signal.
type SessionSignal struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Reason)
}

func NewSessionSignal() *SessionSignal {
	return &SessionSignal{subs: make(map[int]func(Reason))}
}

// Subscribe registers fn and returns a function that removes it
func (s *SessionSignal) Subscribe(fn func(Reason)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Publish calls every subscriber synchronously
func (s *SessionSignal) Publish(reason Reason) {
	s.mu.Lock()
	fns := make([]func(Reason), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(reason)
	}
}
