package runlog

import "sync"

// Hub tracks the live log of each in-flight run by run id. Entries stay
// resident for a short window after the run ends so stream readers that
// attach around completion still see the full replay; terminal runs are
// otherwise served from the persisted log.
type Hub struct {
	mu   sync.Mutex
	logs map[int64]*Log
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{logs: make(map[int64]*Log)}
}

// Open creates and registers the log for a new run.
func (h *Hub) Open(runID int64) *Log {
	h.mu.Lock()
	defer h.mu.Unlock()
	l := NewLog()
	h.logs[runID] = l
	return l
}

// Get returns the live log for a run, or nil when the run is not tracked.
func (h *Hub) Get(runID int64) *Log {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.logs[runID]
}

// Finish closes the run's log and removes it from the hub. Readers already
// attached keep their reference and drain the closed log.
func (h *Hub) Finish(runID int64) {
	h.mu.Lock()
	l := h.logs[runID]
	delete(h.logs, runID)
	h.mu.Unlock()
	if l != nil {
		l.Close()
	}
}
