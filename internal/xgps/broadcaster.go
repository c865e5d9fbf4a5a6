package xgps

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"adsb-xgps/internal/aircraft"
	"adsb-xgps/internal/metrics"
)

// Sender delivers one datagram. Implementations must not block for long.
type Sender interface {
	Send(payload []byte) error
}

type BroadcasterConfig struct {
	DeviceID string
	Interval time.Duration
}

// Broadcaster emits the tracked aircraft's position once per interval.
type Broadcaster struct {
	cfg     BroadcasterConfig
	table   *aircraft.Table
	tracked *aircraft.Tracked
	sender  Sender
	log     *slog.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	last     string
	lastAt   time.Time
	sent     uint64
	failures uint64
}

type BroadcasterStatus struct {
	DeviceID     string `json:"device_id"`
	Interval     string `json:"interval"`
	Tracked      string `json:"tracked"`
	LastSentence string `json:"last_sentence,omitempty"`
	LastSentUTC  string `json:"last_sent_utc,omitempty"`
	Sent         uint64 `json:"sent"`
	SendErrors   uint64 `json:"send_errors"`
}

func NewBroadcaster(cfg BroadcasterConfig, table *aircraft.Table, tracked *aircraft.Tracked, sender Sender, logger *slog.Logger, m *metrics.Metrics) *Broadcaster {
	if cfg.DeviceID == "" {
		cfg.DeviceID = DefaultDeviceID
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		cfg:     cfg,
		table:   table,
		tracked: tracked,
		sender:  sender,
		log:     logger.With("component", "xgps"),
		metrics: m,
	}
}

// Run ticks until ctx is cancelled. A tick with nothing to send is normal.
func (b *Broadcaster) Run(ctx context.Context) error {
	t := time.NewTicker(b.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			b.Tick(now)
		}
	}
}

// Tick performs one broadcast cycle and returns the sentence it sent, if any.
func (b *Broadcaster) Tick(now time.Time) (string, bool) {
	b.metrics.SetAircraft(b.table.Len())

	callsign := b.tracked.Get()
	if callsign == "" {
		return b.skip("no_callsign")
	}
	e, ok := b.table.LookupByCallsign(now, callsign)
	if !ok {
		return b.skip("no_record")
	}
	if !e.State.HasPosition() {
		return b.skip("no_position")
	}
	if e.Stale {
		return b.skip("stale")
	}
	b.metrics.SetTrackedVisible(true)

	st := e.State
	pos := FromFeetKnots(*st.Lat, *st.Lon, orZero(st.AltFeet), orZero(st.TrackDeg), orZero(st.GroundKt))
	sentence := Format(b.cfg.DeviceID, pos)

	if err := b.sender.Send([]byte(sentence)); err != nil {
		b.metrics.IncSendError()
		b.mu.Lock()
		b.failures++
		b.mu.Unlock()
		b.log.Warn("xgps send failed", "error", err)
		return "", false
	}

	b.metrics.IncSent()
	b.mu.Lock()
	b.last = sentence
	b.lastAt = now
	b.sent++
	b.mu.Unlock()
	b.log.Debug("xgps sent", "icao", e.ICAO, "sentence", sentence)
	return sentence, true
}

func (b *Broadcaster) Status() BroadcasterStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := BroadcasterStatus{
		DeviceID:     b.cfg.DeviceID,
		Interval:     b.cfg.Interval.String(),
		Tracked:      b.tracked.Get(),
		LastSentence: b.last,
		Sent:         b.sent,
		SendErrors:   b.failures,
	}
	if !b.lastAt.IsZero() {
		out.LastSentUTC = b.lastAt.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func (b *Broadcaster) skip(reason string) (string, bool) {
	b.metrics.IncSkipped(reason)
	b.metrics.SetTrackedVisible(false)
	return "", false
}

func orZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
