package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Feed  FeedConfig `yaml:"feed"`
	XGPS  XGPSConfig `yaml:"xgps"`
	Web   WebConfig  `yaml:"web"`
	Log   LogConfig  `yaml:"log"`
	Debug bool       `yaml:"debug"`
}

type FeedConfig struct {
	Server         string        `yaml:"server"`
	Port           int           `yaml:"port"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	ReconnectMax   time.Duration `yaml:"reconnect_max"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	StaleAfter     time.Duration `yaml:"stale_after"`
	Record         RecordConfig  `yaml:"record"`
	Replay         ReplayConfig  `yaml:"replay"`
}

type RecordConfig struct {
	Path string `yaml:"path"`
}

type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
	Loop  bool    `yaml:"loop"`
}

type XGPSConfig struct {
	Callsign  string        `yaml:"callsign"`
	Broadcast string        `yaml:"broadcast"`
	Port      int           `yaml:"port"`
	DeviceID  string        `yaml:"device_id"`
	Interval  time.Duration `yaml:"interval"`
}

type WebConfig struct {
	// Listen is the control surface address; "off" disables it.
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

const (
	DefaultFeedPort  = 30003
	DefaultBroadcast = "255.255.255.255"
	DefaultXGPSPort  = 49002
	DefaultDeviceID  = "adsb_xgps"
	DefaultWebListen = ":8081"
	WebOff           = "off"
)

// Default returns a config with every default applied and no feed server.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a YAML config file, applies defaults and validates it.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML and applies defaults without validating, so callers can
// overlay command line flags first.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		if strings.Contains(err.Error(), "not found in type") {
			return Config{}, fmt.Errorf("config contains unknown fields: %s", unknownFieldDetail(err))
		}
		return Config{}, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func unknownFieldDetail(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, "field "); i >= 0 {
		msg = msg[i:]
	}
	return strings.TrimSpace(msg)
}

func (cfg *Config) ApplyDefaults() {
	cfg.Feed.Server = strings.TrimSpace(cfg.Feed.Server)
	if cfg.Feed.Port == 0 {
		cfg.Feed.Port = DefaultFeedPort
	}
	if cfg.Feed.ReconnectDelay <= 0 {
		cfg.Feed.ReconnectDelay = 1 * time.Second
	}
	if cfg.Feed.ReconnectMax <= 0 {
		cfg.Feed.ReconnectMax = 10 * time.Second
	}
	if cfg.Feed.DialTimeout <= 0 {
		cfg.Feed.DialTimeout = 2 * time.Second
	}
	if cfg.Feed.StaleAfter <= 0 {
		cfg.Feed.StaleAfter = 5 * time.Second
	}
	if cfg.Feed.Replay.Path != "" && cfg.Feed.Replay.Speed == 0 {
		cfg.Feed.Replay.Speed = 1
	}

	cfg.XGPS.Callsign = strings.TrimSpace(cfg.XGPS.Callsign)
	if cfg.XGPS.Broadcast == "" {
		cfg.XGPS.Broadcast = DefaultBroadcast
	}
	if cfg.XGPS.Port == 0 {
		cfg.XGPS.Port = DefaultXGPSPort
	}
	if cfg.XGPS.DeviceID == "" {
		cfg.XGPS.DeviceID = DefaultDeviceID
	}
	if cfg.XGPS.Interval <= 0 {
		cfg.XGPS.Interval = 1 * time.Second
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = DefaultWebListen
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func (cfg Config) Validate() error {
	if cfg.Feed.Record.Path != "" && cfg.Feed.Replay.Path != "" {
		return fmt.Errorf("feed.record and feed.replay cannot both be set")
	}
	if cfg.Feed.Replay.Path == "" && cfg.Feed.Server == "" {
		return fmt.Errorf("feed.server is required")
	}
	if cfg.Feed.Replay.Path != "" && cfg.Feed.Replay.Speed < 0 {
		return fmt.Errorf("feed.replay.speed must be > 0")
	}
	if err := validPort("feed.port", cfg.Feed.Port); err != nil {
		return err
	}
	if cfg.Feed.ReconnectMax < cfg.Feed.ReconnectDelay {
		return fmt.Errorf("feed.reconnect_max must be >= feed.reconnect_delay")
	}

	if strings.TrimSpace(cfg.XGPS.Broadcast) == "" {
		return fmt.Errorf("xgps.broadcast is required")
	}
	if strings.ContainsAny(cfg.XGPS.Broadcast, " :/") {
		return fmt.Errorf("xgps.broadcast must be a host or IP address without port")
	}
	if err := validPort("xgps.port", cfg.XGPS.Port); err != nil {
		return err
	}
	if strings.ContainsAny(cfg.XGPS.DeviceID, ",\r\n") {
		return fmt.Errorf("xgps.device_id must not contain commas or newlines")
	}

	if cfg.Web.Listen != WebOff {
		if _, port, err := net.SplitHostPort(cfg.Web.Listen); err != nil {
			return fmt.Errorf("web.listen %q: %w", cfg.Web.Listen, err)
		} else if err := validPortString("web.listen", port); err != nil {
			return err
		}
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

// FeedAddr returns the SBS endpoint as host:port.
func (cfg Config) FeedAddr() string {
	return net.JoinHostPort(cfg.Feed.Server, strconv.Itoa(cfg.Feed.Port))
}

// BroadcastAddr returns the XGPS destination as host:port.
func (cfg Config) BroadcastAddr() string {
	return net.JoinHostPort(cfg.XGPS.Broadcast, strconv.Itoa(cfg.XGPS.Port))
}

// WebEnabled reports whether the control surface should be served.
func (cfg Config) WebEnabled() bool {
	return cfg.Web.Listen != WebOff
}

func validPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be in [1,65535]", name)
	}
	return nil
}

func validPortString(name, s string) error {
	p, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%s port %q is not a number", name, s)
	}
	return validPort(name+" port", p)
}
