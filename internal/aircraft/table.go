package aircraft

import (
	"sort"
	"strings"
	"sync"
	"time"

	"adsb-xgps/internal/sbs"
)

// DefaultStaleAfter matches how long the broadcaster keeps forwarding a
// position after the last message for that aircraft.
const DefaultStaleAfter = 5 * time.Second

// State is the merged view of every message seen for one ICAO address.
// Nil fields have never been reported.
type State struct {
	Callsign *string
	Lat      *float64
	Lon      *float64
	AltFeet  *float64
	GroundKt *float64
	TrackDeg *float64

	LastUpdate time.Time
	Messages   uint64
}

// HasPosition reports whether both latitude and longitude are known.
func (s State) HasPosition() bool {
	return s.Lat != nil && s.Lon != nil
}

// CallsignOr returns the callsign or def when it has not been reported.
func (s State) CallsignOr(def string) string {
	if s.Callsign == nil {
		return def
	}
	return *s.Callsign
}

func (s State) clone() State {
	out := s
	out.Callsign = cloneString(s.Callsign)
	out.Lat = cloneFloat(s.Lat)
	out.Lon = cloneFloat(s.Lon)
	out.AltFeet = cloneFloat(s.AltFeet)
	out.GroundKt = cloneFloat(s.GroundKt)
	out.TrackDeg = cloneFloat(s.TrackDeg)
	return out
}

// Entry is a State together with its key and read-time age.
type Entry struct {
	ICAO  string
	State State
	Age   time.Duration
	Stale bool
}

type TableConfig struct {
	// StaleAfter is the age beyond which readers treat a record as stale.
	// Records are never removed.
	StaleAfter time.Duration
}

// Table holds the latest merged state for every aircraft seen on the feed.
// It is safe for concurrent use; each Apply is atomic with respect to readers.
type Table struct {
	mu sync.RWMutex

	cfg TableConfig

	records map[string]*State
}

func NewTable(cfg TableConfig) *Table {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	return &Table{
		cfg:     cfg,
		records: make(map[string]*State),
	}
}

// StaleAfter returns the configured staleness threshold.
func (t *Table) StaleAfter() time.Duration {
	return t.cfg.StaleAfter
}

// Apply merges u into the record for u.ICAO, creating it if needed. Only
// fields present in u are overwritten; LastUpdate is always refreshed.
func (t *Table) Apply(now time.Time, u sbs.Update) {
	if t == nil || u.ICAO == "" {
		return
	}
	if now.IsZero() {
		now = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[u.ICAO]
	if !ok {
		rec = &State{}
		t.records[u.ICAO] = rec
	}
	if u.Callsign != nil {
		rec.Callsign = cloneString(u.Callsign)
	}
	if u.Lat != nil {
		rec.Lat = cloneFloat(u.Lat)
	}
	if u.Lon != nil {
		rec.Lon = cloneFloat(u.Lon)
	}
	if u.AltFeet != nil {
		rec.AltFeet = cloneFloat(u.AltFeet)
	}
	if u.GroundKt != nil {
		rec.GroundKt = cloneFloat(u.GroundKt)
	}
	if u.TrackDeg != nil {
		rec.TrackDeg = cloneFloat(u.TrackDeg)
	}
	rec.LastUpdate = now
	rec.Messages++
}

// Get returns a copy of the record for icao.
func (t *Table) Get(icao string) (State, bool) {
	if t == nil {
		return State{}, false
	}
	key := strings.ToUpper(strings.TrimSpace(icao))

	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[key]
	if !ok {
		return State{}, false
	}
	return rec.clone(), true
}

// LookupByCallsign resolves a callsign (case-insensitive) to the most
// recently updated record carrying it.
func (t *Table) LookupByCallsign(now time.Time, callsign string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	callsign = strings.TrimSpace(callsign)
	if callsign == "" {
		return Entry{}, false
	}
	if now.IsZero() {
		now = time.Now()
	}

	t.mu.RLock()
	var (
		bestKey string
		best    *State
	)
	for k, rec := range t.records {
		if rec.Callsign == nil || !strings.EqualFold(*rec.Callsign, callsign) {
			continue
		}
		if best == nil || rec.LastUpdate.After(best.LastUpdate) ||
			(rec.LastUpdate.Equal(best.LastUpdate) && k < bestKey) {
			bestKey = k
			best = rec
		}
	}
	var st State
	if best != nil {
		st = best.clone()
	}
	t.mu.RUnlock()

	if best == nil {
		return Entry{}, false
	}
	return t.entry(now, bestKey, st), true
}

// Snapshot returns a consistent copy of every record, sorted by ICAO.
func (t *Table) Snapshot(now time.Time) []Entry {
	if t == nil {
		return nil
	}
	if now.IsZero() {
		now = time.Now()
	}

	t.mu.RLock()
	out := make([]Entry, 0, len(t.records))
	for k, rec := range t.records {
		out = append(out, Entry{ICAO: k, State: rec.clone()})
	}
	t.mu.RUnlock()

	for i := range out {
		out[i] = t.entry(now, out[i].ICAO, out[i].State)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ICAO < out[j].ICAO })
	return out
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

func (t *Table) entry(now time.Time, icao string, st State) Entry {
	age := now.Sub(st.LastUpdate)
	if age < 0 {
		age = 0
	}
	return Entry{ICAO: icao, State: st, Age: age, Stale: age > t.cfg.StaleAfter}
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
