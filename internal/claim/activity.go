package claim

import (
	"sync"
	"time"

	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/ids"
)

// maxActivityEntries bounds the diagnostic log; older entries are dropped.
const maxActivityEntries = 50

// ActivityEntry records one claim workflow action. Diagnostic only, never
// authoritative.
type ActivityEntry struct {
	ID         string            `json:"id"`
	Action     string            `json:"action"`
	CustomerID string            `json:"customerId,omitempty"`
	At         time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type activityLog struct {
	mu      sync.Mutex
	entries []ActivityEntry
	max     int
}

func newActivityLog() *activityLog {
	return &activityLog{max: maxActivityEntries}
}

func (l *activityLog) append(action, customerID string, at time.Time, meta map[string]string) {
	entry := ActivityEntry{
		ID:         ids.New(),
		Action:     action,
		CustomerID: customerID,
		At:         at,
		Metadata:   meta,
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

func (l *activityLog) snapshot() []ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ActivityEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
