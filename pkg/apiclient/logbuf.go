package apiclient

import (
	"sync"
	"time"
)

// LogEntry records one completed request
type LogEntry struct {
	Time     time.Time     `json:"time"`
	Method   string        `json:"method"`
	URL      string        `json:"url"`
	Status   int           `json:"status,omitempty"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// logRing keeps the most recent entries, evicting the oldest
type logRing struct {
	mu      sync.Mutex
	entries []LogEntry
	start   int
	size    int
}

func newLogRing(capacity int) *logRing {
	if capacity <= 0 {
		capacity = defaultMaxLogEntries
	}
	return &logRing{entries: make([]LogEntry, capacity)}
}

func (r *logRing) add(e LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size < len(r.entries) {
		r.entries[(r.start+r.size)%len(r.entries)] = e
		r.size++
		return
	}
	r.entries[r.start] = e
	r.start = (r.start + 1) % len(r.entries)
}

func (r *logRing) list() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogEntry, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.entries[(r.start+i)%len(r.entries)]
	}
	return out
}

func (r *logRing) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start, r.size = 0, 0
	clear(r.entries)
}
