package xgps

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsb-xgps/internal/aircraft"
	"adsb-xgps/internal/metrics"
	"adsb-xgps/internal/sbs"
)

type fakeSender struct {
	mu     sync.Mutex
	writes []string
	err    error
}

func (s *fakeSender) Send(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, string(p))
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func apply(t *testing.T, tbl *aircraft.Table, now time.Time, line string) {
	t.Helper()
	u, err := sbs.Parse(line)
	require.NoError(t, err)
	tbl.Apply(now, u)
}

func newTestBroadcaster(tracked string) (*Broadcaster, *aircraft.Table, *fakeSender) {
	tbl := aircraft.NewTable(aircraft.TableConfig{})
	snd := &fakeSender{}
	b := NewBroadcaster(BroadcasterConfig{DeviceID: "dev"}, tbl, aircraft.NewTracked(tracked), snd, nil, metrics.New())
	return b, tbl, snd
}

func TestTick_EndToEnd(t *testing.T) {
	b, tbl, snd := newTestBroadcaster("N123AB")
	now := time.Now()

	apply(t, tbl, now, "MSG,1,1,1,ABC123,1,,,,,N123AB,,,,,,,,,,,")
	apply(t, tbl, now, "MSG,3,1,1,ABC123,1,,,,,,1000,,,37.5,-122.3,,,,,,")
	apply(t, tbl, now, "MSG,4,1,1,ABC123,1,,,,,,,100,90,,,,,,,,")

	got, ok := b.Tick(now.Add(500 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, "XGPSdev,-122.3,37.5,304.8,90.00,51.4", got)
	require.Equal(t, 1, snd.count())
	assert.Equal(t, got, snd.writes[0])

	st := b.Status()
	assert.Equal(t, got, st.LastSentence)
	assert.Equal(t, uint64(1), st.Sent)
	assert.Equal(t, "N123AB", st.Tracked)
}

func TestTick_UnknownCallsignSendsNothing(t *testing.T) {
	b, tbl, snd := newTestBroadcaster("NEVERSEEN")
	now := time.Now()
	apply(t, tbl, now, "MSG,1,1,1,ABC123,1,,,,,N123AB,,,,,,,,,,,")
	apply(t, tbl, now, "MSG,3,1,1,ABC123,1,,,,,,1000,,,37.5,-122.3,,,,,,")

	for i := 0; i < 5; i++ {
		_, ok := b.Tick(now.Add(time.Duration(i) * 100 * time.Millisecond))
		assert.False(t, ok)
	}
	assert.Equal(t, 0, snd.count())
}

func TestTick_NoPositionSkips(t *testing.T) {
	b, tbl, snd := newTestBroadcaster("N123AB")
	now := time.Now()
	apply(t, tbl, now, "MSG,1,1,1,ABC123,1,,,,,N123AB,,,,,,,,,,,")
	apply(t, tbl, now, "MSG,4,1,1,ABC123,1,,,,,,,100,90,,,,,,,,")

	_, ok := b.Tick(now)
	assert.False(t, ok)

	// Latitude alone is not enough.
	apply(t, tbl, now, "MSG,3,1,1,ABC123,1,,,,,,1000,,,37.5,,,,,,,")
	_, ok = b.Tick(now)
	assert.False(t, ok)
	assert.Equal(t, 0, snd.count())
}

func TestTick_StaleRecordSkips(t *testing.T) {
	b, tbl, snd := newTestBroadcaster("N123AB")
	now := time.Now()
	apply(t, tbl, now, "MSG,1,1,1,ABC123,1,,,,,N123AB,,,,,,,,,,,")
	apply(t, tbl, now, "MSG,3,1,1,ABC123,1,,,,,,1000,,,37.5,-122.3,,,,,,")

	_, ok := b.Tick(now.Add(aircraft.DefaultStaleAfter + time.Second))
	assert.False(t, ok)
	assert.Equal(t, 0, snd.count())
}

func TestTick_MissingOptionalsSendZero(t *testing.T) {
	b, tbl, _ := newTestBroadcaster("n123ab")
	now := time.Now()
	apply(t, tbl, now, "MSG,1,1,1,ABC123,1,,,,,N123AB,,,,,,,,,,,")
	apply(t, tbl, now, "MSG,3,1,1,ABC123,1,,,,,,,,,0,0,,,,,,")

	got, ok := b.Tick(now)
	require.True(t, ok)
	assert.Equal(t, "XGPSdev,0,0,0.0,0.00,0.0", got)
}

func TestTick_FollowsTrackedChange(t *testing.T) {
	tbl := aircraft.NewTable(aircraft.TableConfig{})
	tracked := aircraft.NewTracked("AAA1")
	snd := &fakeSender{}
	b := NewBroadcaster(BroadcasterConfig{DeviceID: "dev"}, tbl, tracked, snd, nil, nil)
	now := time.Now()
	apply(t, tbl, now, "MSG,1,1,1,BBBBBB,1,,,,,BBB2,,,,,,,,,,,")
	apply(t, tbl, now, "MSG,3,1,1,BBBBBB,1,,,,,,2000,,,1.5,2.5,,,,,,")

	_, ok := b.Tick(now)
	assert.False(t, ok)

	tracked.Set("bbb2")
	got, ok := b.Tick(now)
	require.True(t, ok)
	assert.Equal(t, "XGPSdev,2.5,1.5,609.6,0.00,0.0", got)
}

func TestTick_SendErrorIsNotFatal(t *testing.T) {
	b, tbl, snd := newTestBroadcaster("N123AB")
	now := time.Now()
	apply(t, tbl, now, "MSG,1,1,1,ABC123,1,,,,,N123AB,,,,,,,,,,,")
	apply(t, tbl, now, "MSG,3,1,1,ABC123,1,,,,,,1000,,,37.5,-122.3,,,,,,")

	snd.err = errors.New("network unreachable")
	_, ok := b.Tick(now)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), b.Status().SendErrors)

	snd.err = nil
	_, ok = b.Tick(now)
	assert.True(t, ok)
}

func TestRun_StopsOnCancel(t *testing.T) {
	tbl := aircraft.NewTable(aircraft.TableConfig{})
	snd := &fakeSender{}
	b := NewBroadcaster(BroadcasterConfig{Interval: 10 * time.Millisecond}, tbl, aircraft.NewTracked("N1"), snd, nil, nil)
	tbl.Apply(time.Time{}, sbs.Update{ICAO: "ABC123", Callsign: ptr("N1"), Lat: fptr(1), Lon: fptr(2)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool { return snd.count() > 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func ptr(s string) *string { return &s }
func fptr(v float64) *float64 { return &v }
