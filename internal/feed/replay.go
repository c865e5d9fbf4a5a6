package feed

import (
	"context"
	"fmt"
	"time"

	"adsb-xgps/internal/replay"
)

// RunReplay feeds a capture through the same parse/apply path as a live
// connection, honoring the recorded timing.
func (r *Reader) RunReplay(ctx context.Context, records []replay.Record, speed float64, loop bool) error {
	if r.started.Swap(true) {
		return fmt.Errorf("feed reader already started")
	}
	defer r.setState(StateStopped, "")

	r.mu.Lock()
	r.connects++
	r.connectedAt = time.Now()
	r.mu.Unlock()
	r.setState(StateReplaying, "")
	r.log.Info("replaying capture", "records", len(records), "speed", speed, "loop", loop)

	err := replay.Play(ctx, records, speed, loop, nil, func(line string) error {
		r.HandleLine(time.Now(), line)
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if ctx.Err() == nil {
		r.log.Info("replay finished")
	}
	return nil
}
