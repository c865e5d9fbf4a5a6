package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"adsb-xgps/internal/config"
)

type cliOptions struct {
	configPath string
	summarize  string
}

const usageText = `usage: adsb-xgps [flags] [server[:port] [callsign]]

Bridges a dump1090 SBS feed to X-Plane XGPS datagrams for one tracked callsign.

`

// parseArgs builds the effective config: defaults, then the YAML file named by
// -config, then any flags that were set, then positional arguments.
func parseArgs(args []string, stderr io.Writer) (config.Config, cliOptions, error) {
	def := config.Default()

	fs := flag.NewFlagSet("adsb-xgps", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = io.WriteString(stderr, usageText)
		fs.PrintDefaults()
	}

	var (
		opts cliOptions

		server      = fs.String("server", "", "dump1090 host name or IP")
		port        = fs.Int("port", def.Feed.Port, "dump1090 SBS port")
		callsign    = fs.String("callsign", "", "Callsign to track")
		broadcast   = fs.String("broadcast", def.XGPS.Broadcast, "UDP broadcast address for XGPS output")
		bport       = fs.Int("broadcast-port", def.XGPS.Port, "UDP port for XGPS output")
		device      = fs.String("device", def.XGPS.DeviceID, "XGPS device id")
		debug       = fs.Bool("debug", false, "Print all aircraft every second")
		webListen   = fs.String("web", def.Web.Listen, "Control surface listen address (empty or \"off\" disables)")
		logLevel    = fs.String("log-level", def.Log.Level, "Log level: debug, info, warn, error")
		logFile     = fs.String("log-file", "", "Also write JSON logs to this file (rotated)")
		record      = fs.String("record", "", "Capture raw feed lines to this file")
		replayPath  = fs.String("replay", "", "Replay a capture instead of connecting to the feed")
		replaySpeed = fs.Float64("replay-speed", 1, "Replay speed multiplier")
		replayLoop  = fs.Bool("replay-loop", false, "Loop the replay")
	)
	fs.StringVar(&opts.configPath, "config", "", "Path to YAML config")
	fs.StringVar(&opts.summarize, "summarize", "", "Print a summary of a capture file and exit")

	positional, err := parseInterleaved(fs, args)
	if err != nil {
		return config.Config{}, opts, err
	}
	if len(positional) > 2 {
		return config.Config{}, opts, fmt.Errorf("too many arguments: %q", positional[2:])
	}
	if opts.summarize != "" {
		return def, opts, nil
	}

	cfg := def
	if opts.configPath != "" {
		b, err := os.ReadFile(opts.configPath)
		if err != nil {
			return config.Config{}, opts, fmt.Errorf("config load failed: %w", err)
		}
		if cfg, err = config.Parse(b); err != nil {
			return config.Config{}, opts, fmt.Errorf("config load failed: %w", err)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			cfg.Feed.Server = *server
		case "port":
			cfg.Feed.Port = *port
		case "callsign":
			cfg.XGPS.Callsign = *callsign
		case "broadcast":
			cfg.XGPS.Broadcast = *broadcast
		case "broadcast-port":
			cfg.XGPS.Port = *bport
		case "device":
			cfg.XGPS.DeviceID = *device
		case "debug":
			cfg.Debug = *debug
		case "web":
			cfg.Web.Listen = strings.TrimSpace(*webListen)
			if cfg.Web.Listen == "" {
				cfg.Web.Listen = config.WebOff
			}
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-file":
			cfg.Log.File = *logFile
		case "record":
			cfg.Feed.Record.Path = *record
		case "replay":
			cfg.Feed.Replay.Path = *replayPath
		case "replay-speed":
			cfg.Feed.Replay.Speed = *replaySpeed
		case "replay-loop":
			cfg.Feed.Replay.Loop = *replayLoop
		}
	})

	if len(positional) > 0 {
		host, p, err := splitServer(positional[0])
		if err != nil {
			return config.Config{}, opts, err
		}
		cfg.Feed.Server = host
		if p != 0 {
			cfg.Feed.Port = p
		}
	}
	if len(positional) > 1 {
		cfg.XGPS.Callsign = positional[1]
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, opts, err
	}
	return cfg, opts, nil
}

// parseInterleaved lets flags follow positional arguments, so
// "adsb-xgps host N123AB -debug" works.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func splitServer(s string) (string, int, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ":") {
		return s, 0, nil
	}
	host, ps, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, fmt.Errorf("server %q: %w", s, err)
	}
	p, err := strconv.Atoi(ps)
	if err != nil {
		return "", 0, fmt.Errorf("server %q: port is not a number", s)
	}
	return host, p, nil
}
