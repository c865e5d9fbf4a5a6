package aircraft

import (
	"strings"
	"sync"
)

// Tracked holds the callsign selected for broadcast.
type Tracked struct {
	mu       sync.RWMutex
	callsign string
}

func NewTracked(callsign string) *Tracked {
	return &Tracked{callsign: strings.TrimSpace(callsign)}
}

func (t *Tracked) Get() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.callsign
}

// Set replaces the tracked callsign. The callsign does not need to exist in
// the table yet.
func (t *Tracked) Set(callsign string) {
	t.mu.Lock()
	t.callsign = strings.TrimSpace(callsign)
	t.mu.Unlock()
}

// Matches reports whether callsign equals the tracked one, ignoring case.
func (t *Tracked) Matches(callsign string) bool {
	callsign = strings.TrimSpace(callsign)
	if callsign == "" {
		return false
	}
	return strings.EqualFold(callsign, t.Get())
}
