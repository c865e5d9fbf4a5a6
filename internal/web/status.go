package web

import (
	"sync/atomic"
	"time"

	"adsb-xgps/internal/feed"
	"adsb-xgps/internal/xgps"
)

// FeedSource reports the feed reader's connection state.
type FeedSource interface {
	Snapshot(now time.Time) feed.Status
}

// BroadcastSource reports what the position broadcaster last sent.
type BroadcastSource interface {
	Status() xgps.BroadcasterStatus
}

type Status struct {
	startUnixNano int64
	feedAddr      atomic.Value // string
	xgpsDest      atomic.Value // string
	feed          atomic.Value // FeedSource
	broadcast     atomic.Value // BroadcastSource
}

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.feedAddr.Store("")
	s.xgpsDest.Store("")
	return s
}

// SetStatic records the configured endpoints shown on the status page.
func (s *Status) SetStatic(feedAddr, xgpsDest string) {
	if feedAddr != "" {
		s.feedAddr.Store(feedAddr)
	}
	if xgpsDest != "" {
		s.xgpsDest.Store(xgpsDest)
	}
}

func (s *Status) SetSources(f FeedSource, b BroadcastSource) {
	if f != nil {
		s.feed.Store(f)
	}
	if b != nil {
		s.broadcast.Store(b)
	}
}

type StatusSnapshot struct {
	Service   string                  `json:"service"`
	NowUTC    string                  `json:"now_utc"`
	UptimeSec int64                   `json:"uptime_sec"`
	FeedAddr  string                  `json:"feed_addr"`
	XGPSDest  string                  `json:"xgps_dest"`
	Feed      *feed.Status            `json:"feed,omitempty"`
	XGPS      *xgps.BroadcasterStatus `json:"xgps,omitempty"`
	Network   []NetworkInterface      `json:"network,omitempty"`
	System    SystemSnapshot          `json:"system"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	snap := StatusSnapshot{
		Service:   "adsb-xgps",
		NowUTC:    nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(start).Seconds()),
		FeedAddr:  s.feedAddr.Load().(string),
		XGPSDest:  s.xgpsDest.Load().(string),
		Network:   localInterfaces(),
		System:    snapshotSystem(),
	}
	if f, ok := s.feed.Load().(FeedSource); ok && f != nil {
		fs := f.Snapshot(nowUTC)
		snap.Feed = &fs
	}
	if b, ok := s.broadcast.Load().(BroadcastSource); ok && b != nil {
		bs := b.Status()
		snap.XGPS = &bs
	}
	return snap
}
