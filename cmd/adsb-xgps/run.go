package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"adsb-xgps/internal/aircraft"
	"adsb-xgps/internal/config"
	"adsb-xgps/internal/debugprint"
	"adsb-xgps/internal/feed"
	"adsb-xgps/internal/logging"
	"adsb-xgps/internal/metrics"
	"adsb-xgps/internal/replay"
	"adsb-xgps/internal/udp"
	"adsb-xgps/internal/web"
	"adsb-xgps/internal/xgps"
)

const captureFlushInterval = 5 * time.Second

// run wires the feed reader, broadcaster, control surface and debug printer
// around one shared table and blocks until ctx is cancelled or a task fails.
// Anything that can fail because of bad configuration fails before a task
// starts.
func run(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) error {
	logs := web.NewLogBuffer(2000)
	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		File:   cfg.Log.File,
		Stderr: stderr,
		Tail:   logs,
	})
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.Logger

	m := metrics.New()
	table := aircraft.NewTable(aircraft.TableConfig{StaleAfter: cfg.Feed.StaleAfter})
	tracked := aircraft.NewTracked(cfg.XGPS.Callsign)

	sender, err := udp.NewBroadcaster(cfg.BroadcastAddr())
	if err != nil {
		return fmt.Errorf("xgps broadcast %s: %w", cfg.BroadcastAddr(), err)
	}
	defer sender.Close()

	feedCfg := feed.Config{
		ReconnectDelay: cfg.Feed.ReconnectDelay,
		ReconnectMax:   cfg.Feed.ReconnectMax,
		DialTimeout:    cfg.Feed.DialTimeout,
	}
	if cfg.Feed.Server != "" {
		feedCfg.Addr = cfg.FeedAddr()
	}

	var capture *replay.Writer
	if path := cfg.Feed.Record.Path; path != "" {
		capture, err = replay.CreateWriter(path)
		if err != nil {
			return fmt.Errorf("feed.record: %w", err)
		}
		defer capture.Close()
		feedCfg.OnLine = func(now time.Time, line string) {
			if err := capture.WriteLine(now, line); err != nil {
				log.Warn("capture write failed", "path", path, "error", err)
			}
		}
	}

	var records []replay.Record
	if path := cfg.Feed.Replay.Path; path != "" {
		records, err = replay.Load(path)
		if err != nil {
			return fmt.Errorf("feed.replay: %w", err)
		}
		if len(records) == 0 {
			return fmt.Errorf("feed.replay: %s has no records", path)
		}
	}

	reader, err := feed.New(feedCfg, table, log, m)
	if err != nil {
		return err
	}
	bc := xgps.NewBroadcaster(xgps.BroadcasterConfig{
		DeviceID: cfg.XGPS.DeviceID,
		Interval: cfg.XGPS.Interval,
	}, table, tracked, sender, log, m)

	status := web.NewStatus()
	source := feedCfg.Addr
	if records != nil {
		source = "replay:" + cfg.Feed.Replay.Path
	}
	status.SetStatic(source, sender.Dest())
	status.SetSources(reader, bc)

	log.Info("adsb-xgps starting",
		"feed", source,
		"xgps_dest", sender.Dest(),
		"device_id", cfg.XGPS.DeviceID,
		"tracked", tracked.Get(),
		"web", cfg.Web.Listen,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if records != nil {
			return reader.RunReplay(gctx, records, cfg.Feed.Replay.Speed, cfg.Feed.Replay.Loop)
		}
		return reader.Run(gctx)
	})
	g.Go(func() error {
		return bc.Run(gctx)
	})

	if cfg.WebEnabled() {
		srv := web.NewServer(web.Deps{
			Table:   table,
			Tracked: tracked,
			Status:  status,
			Logs:    logs,
			Metrics: m,
			Logger:  log,
		})
		g.Go(func() error {
			if err := web.Serve(gctx, cfg.Web.Listen, srv); err != nil {
				return fmt.Errorf("web: %w", err)
			}
			return nil
		})
	}

	if cfg.Debug {
		p := debugprint.New(table, tracked, stdout, time.Second)
		g.Go(func() error {
			return p.Run(gctx)
		})
	}

	if capture != nil {
		g.Go(func() error {
			t := time.NewTicker(captureFlushInterval)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					if err := capture.Flush(); err != nil {
						log.Warn("capture flush failed", "error", err)
					}
				}
			}
		})
	}

	err = g.Wait()
	log.Info("adsb-xgps stopping")
	return err
}
