package feed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"adsb-xgps/internal/aircraft"
	"adsb-xgps/internal/metrics"
	"adsb-xgps/internal/sbs"
)

// Connection states reported in Status.
const (
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	StateStreaming    = "streaming"
	StateReplaying    = "replaying"
	StateStopped      = "stopped"
)

type Config struct {
	// Addr is the SBS feed endpoint, host:port (dump1090 serves it on 30003).
	Addr string

	ReconnectDelay time.Duration
	ReconnectMax   time.Duration
	DialTimeout    time.Duration
	MaxLineBytes   int

	// OnLine, when set, sees every raw line before it is parsed.
	OnLine func(now time.Time, line string)
}

// Reader keeps a connection to the SBS feed and merges every parsed line
// into the aircraft table.
type Reader struct {
	cfg     Config
	table   *aircraft.Table
	log     *slog.Logger
	metrics *metrics.Metrics

	backoff  *Backoff
	logLimit *rate.Limiter

	started atomic.Bool

	mu          sync.RWMutex
	state       string
	lastErr     string
	lastSeen    time.Time
	lines       uint64
	rejected    uint64
	connects    uint64
	suppressed  uint64
	connectedAt time.Time
}

type Status struct {
	Addr         string `json:"addr"`
	State        string `json:"state"`
	LastError    string `json:"last_error,omitempty"`
	LastSeenUTC  string `json:"last_seen_utc,omitempty"`
	ConnectedUTC string `json:"connected_utc,omitempty"`
	Lines        uint64 `json:"lines"`
	Rejected     uint64 `json:"rejected"`
	Connects     uint64 `json:"connects"`
	Suppressed   uint64 `json:"log_suppressed"`
	Aircraft     int    `json:"aircraft"`
}

func New(cfg Config, table *aircraft.Table, logger *slog.Logger, m *metrics.Metrics) (*Reader, error) {
	if table == nil {
		return nil, fmt.Errorf("feed table is nil")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 1 * time.Second
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 10 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 64 * 1024
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Reader{
		cfg:      cfg,
		table:    table,
		log:      logger.With("component", "feed"),
		metrics:  m,
		backoff:  NewBackoff(cfg.ReconnectDelay, cfg.ReconnectMax),
		logLimit: rate.NewLimiter(rate.Every(time.Second), 5),
		state:    StateDisconnected,
	}, nil
}

// Run dials the feed and streams lines until ctx is cancelled. Transport
// errors never end the loop; it reconnects after a backoff delay.
func (r *Reader) Run(ctx context.Context) error {
	if r.cfg.Addr == "" {
		return fmt.Errorf("feed addr is required")
	}
	if r.started.Swap(true) {
		return fmt.Errorf("feed reader already started")
	}
	defer r.setState(StateStopped, "")

	dialer := &net.Dialer{Timeout: r.cfg.DialTimeout}
	attempt := 0

	for {
		if ctx.Err() != nil {
			return nil
		}
		if attempt > 0 {
			r.metrics.IncReconnect()
		}
		attempt++

		r.setState(StateConnecting, "")
		r.log.Info("connecting", "addr", r.cfg.Addr)
		conn, err := dialer.DialContext(ctx, "tcp", r.cfg.Addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.setState(StateDisconnected, err.Error())
			delay := r.backoff.Next()
			r.log.Warn("feed connect failed", "addr", r.cfg.Addr, "error", err, "retry_in", delay)
			if !sleepCtx(ctx, delay) {
				return nil
			}
			continue
		}

		r.backoff.Reset()
		r.markConnected()
		r.log.Info("connected", "addr", r.cfg.Addr)

		err = r.stream(ctx, conn)
		r.metrics.SetConnected(false)
		if ctx.Err() != nil {
			return nil
		}

		msg := ""
		if err != nil {
			msg = err.Error()
		}
		r.setState(StateDisconnected, msg)
		delay := r.backoff.Next()
		r.log.Warn("feed connection closed", "addr", r.cfg.Addr, "error", err, "retry_in", delay)
		if !sleepCtx(ctx, delay) {
			return nil
		}
	}
}

// stream reads lines from conn until it fails or ctx is cancelled.
func (r *Reader) stream(ctx context.Context, conn net.Conn) error {
	// Closing the conn is what interrupts a blocked read on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	reader := bufio.NewReaderSize(conn, 4096)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, net.ErrClosed) && ctx.Err() != nil {
				return nil
			}
			return err
		}
		if len(line) > r.cfg.MaxLineBytes {
			r.reject(fmt.Errorf("line too large (%d bytes)", len(line)), "too_large", "")
			continue
		}
		r.HandleLine(time.Now(), line)
	}
}

// HandleLine parses one raw feed line and applies it to the table. Parse
// failures are logged (rate limited) and counted; they never stop the caller.
func (r *Reader) HandleLine(now time.Time, raw string) bool {
	line := strings.TrimSpace(raw)
	if line == "" {
		return false
	}
	if r.cfg.OnLine != nil {
		r.cfg.OnLine(now, line)
	}
	r.metrics.IncLines()

	u, err := sbs.Parse(line)

	r.mu.Lock()
	r.lines++
	r.lastSeen = now
	r.mu.Unlock()

	if err != nil {
		r.reject(err, sbs.Reason(err), line)
		return false
	}
	for _, field := range u.Malformed {
		r.metrics.IncFieldError(field)
	}
	if len(u.Malformed) > 0 && r.logLimit.Allow() {
		r.log.Debug("dropped malformed fields", "icao", u.ICAO, "fields", u.Malformed, "line", line)
	}

	r.table.Apply(now, u)
	r.metrics.IncApplied()
	return true
}

func (r *Reader) reject(err error, reason, line string) {
	r.metrics.IncParseError(reason)

	r.mu.Lock()
	r.rejected++
	r.mu.Unlock()

	// Non-MSG records (STA, AIR, ID...) are normal on a BaseStation feed.
	if errors.Is(err, sbs.ErrNotTransmission) {
		return
	}
	if !r.logLimit.Allow() {
		r.mu.Lock()
		r.suppressed++
		r.mu.Unlock()
		return
	}
	r.log.Debug("discarded feed line", "reason", reason, "error", err, "line", line)
}

func (r *Reader) Snapshot(now time.Time) Status {
	r.mu.RLock()
	out := Status{
		Addr:      r.cfg.Addr,
		State:     r.state,
		LastError: r.lastErr,
		Lines:     r.lines,
		Rejected:  r.rejected,
		Connects:  r.connects,

		Suppressed: r.suppressed,
	}
	lastSeen := r.lastSeen
	connectedAt := r.connectedAt
	r.mu.RUnlock()

	if !lastSeen.IsZero() {
		out.LastSeenUTC = lastSeen.UTC().Format(time.RFC3339Nano)
	}
	if !connectedAt.IsZero() && (out.State == StateStreaming || out.State == StateReplaying) {
		out.ConnectedUTC = connectedAt.UTC().Format(time.RFC3339Nano)
	}
	out.Aircraft = r.table.Len()
	return out
}

func (r *Reader) markConnected() {
	r.mu.Lock()
	r.connects++
	r.connectedAt = time.Now()
	r.mu.Unlock()
	r.setState(StateStreaming, "")
	r.metrics.SetConnected(true)
}

func (r *Reader) setState(state string, lastErr string) {
	r.mu.Lock()
	r.state = state
	if lastErr != "" {
		r.lastErr = lastErr
	} else if state == StateStreaming || state == StateReplaying || state == StateStopped {
		// Clear stale errors once healthy again.
		r.lastErr = ""
	}
	r.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
