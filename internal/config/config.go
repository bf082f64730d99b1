// Package config loads the conference client configuration from environment
// variables with optional flag overrides.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

const (
	envVarSignalingURL       = "RVC_SIGNALING_URL"
	envVarRoom               = "RVC_ROOM"
	envVarDisplayName        = "RVC_DISPLAY_NAME"
	envVarMode               = "RVC_MODE"
	envVarLogFormat          = "RVC_LOG_FORMAT"
	envVarLogLevel           = "RVC_LOG_LEVEL"
	envVarNegotiationTimeout = "RVC_NEGOTIATION_TIMEOUT"
	envVarOutboundQueueSize  = "RVC_OUTBOUND_QUEUE_SIZE"
	envVarMaxMessageBytes    = "RVC_MAX_SIGNALING_MESSAGE_BYTES"
	envVarMetricsAddr        = "RVC_METRICS_ADDR"

	DefaultSignalingURL       = "ws://127.0.0.1:8080/ws"
	DefaultNegotiationTimeout = 30 * time.Second
	DefaultOutboundQueueSize  = 256
	DefaultMaxMessageBytes    = int64(64 * 1024)
	DefaultMode               = ModeDev
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type Config struct {
	SignalingURL string
	Room         string
	DisplayName  string

	Mode      Mode
	LogFormat LogFormat
	LogLevel  slog.Level

	// NegotiationTimeout bounds how long a peer may stay unconnected mid
	// negotiation before being failed and cleaned up.
	NegotiationTimeout time.Duration
	OutboundQueueSize  int
	MaxMessageBytes    int64

	// MetricsAddr, when non-empty, serves the Prometheus counters on this
	// address.
	MetricsAddr string

	ICEServers []webrtc.ICEServer
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	cfg := Config{
		SignalingURL:       envOrDefault(lookup, envVarSignalingURL, DefaultSignalingURL),
		Room:               envOrDefault(lookup, envVarRoom, ""),
		DisplayName:        envOrDefault(lookup, envVarDisplayName, ""),
		NegotiationTimeout: DefaultNegotiationTimeout,
		OutboundQueueSize:  DefaultOutboundQueueSize,
		MaxMessageBytes:    DefaultMaxMessageBytes,
		MetricsAddr:        envOrDefault(lookup, envVarMetricsAddr, ""),
	}

	mode := Mode(strings.ToLower(envOrDefault(lookup, envVarMode, string(DefaultMode))))
	switch mode {
	case ModeDev, ModeProd:
		cfg.Mode = mode
	default:
		return Config{}, fmt.Errorf("invalid %s %q", envVarMode, mode)
	}

	format := LogFormat(strings.ToLower(envOrDefault(lookup, envVarLogFormat, defaultLogFormatForMode(cfg.Mode))))
	switch format {
	case LogFormatText, LogFormatJSON:
		cfg.LogFormat = format
	default:
		return Config{}, fmt.Errorf("invalid %s %q", envVarLogFormat, format)
	}

	level, err := parseLogLevel(envOrDefault(lookup, envVarLogLevel, defaultLogLevelForMode(cfg.Mode)))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	if raw, ok := lookup(envVarNegotiationTimeout); ok && strings.TrimSpace(raw) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid %s %q", envVarNegotiationTimeout, raw)
		}
		cfg.NegotiationTimeout = d
	}

	if n, err := envIntOrDefault(lookup, envVarOutboundQueueSize, DefaultOutboundQueueSize); err != nil {
		return Config{}, err
	} else if n <= 0 {
		return Config{}, fmt.Errorf("%s must be positive", envVarOutboundQueueSize)
	} else {
		cfg.OutboundQueueSize = n
	}

	if n, err := envIntOrDefault(lookup, envVarMaxMessageBytes, int(DefaultMaxMessageBytes)); err != nil {
		return Config{}, err
	} else if n <= 0 {
		return Config{}, fmt.Errorf("%s must be positive", envVarMaxMessageBytes)
	} else {
		cfg.MaxMessageBytes = int64(n)
	}

	iceServers, err := parseICEServersFromEnv(lookup)
	if err != nil {
		return Config{}, err
	}
	cfg.ICEServers = iceServers

	fs := flag.NewFlagSet("video-conference", flag.ContinueOnError)
	fs.StringVar(&cfg.SignalingURL, "signaling-url", cfg.SignalingURL, "signaling server websocket URL")
	fs.StringVar(&cfg.Room, "room", cfg.Room, "room to create or join")
	fs.StringVar(&cfg.DisplayName, "name", cfg.DisplayName, "display name announced to peers")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid %s %q", envVarLogLevel, raw)
	}
}

func defaultLogFormatForMode(mode Mode) string {
	if mode == ModeProd {
		return string(LogFormatJSON)
	}
	return string(LogFormatText)
}

func defaultLogLevelForMode(mode Mode) string {
	if mode == ModeProd {
		return "info"
	}
	return "debug"
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}
