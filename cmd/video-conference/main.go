package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	conference "github.com/mrwaynerp/react-video-conference"
	"github.com/mrwaynerp/react-video-conference/internal/config"
	"github.com/mrwaynerp/react-video-conference/internal/media"
	"github.com/mrwaynerp/react-video-conference/internal/metrics"
	sig "github.com/mrwaynerp/react-video-conference/internal/signal"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cfg.Room == "" {
		fmt.Fprintln(os.Stderr, "a room is required (-room or RVC_ROOM)")
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	logger.Info("starting video-conference",
		"signaling_url", cfg.SignalingURL,
		"room", cfg.Room,
		"mode", cfg.Mode,
		"negotiation_timeout", cfg.NegotiationTimeout,
		"outbound_queue_size", cfg.OutboundQueueSize,
		"ice_servers", len(cfg.ICEServers),
	)

	// Capture is optional: without a camera the client still joins and
	// receives remote streams.
	capturer, err := media.NewDeviceCapturer(logger)
	if err != nil {
		logger.Warn("local capture unavailable, joining receive-only", "err", err)
		capturer = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	channel, err := sig.DialWebSocket(ctx, cfg.SignalingURL, sig.WSOptions{
		Logger:          logger,
		MaxMessageBytes: cfg.MaxMessageBytes,
	})
	if err != nil {
		logger.Error("dialing signaling server", "err", err)
		os.Exit(1)
	}

	meter := metrics.New()
	client, err := conference.New(conference.Options{
		Channel:            channel,
		DisplayName:        cfg.DisplayName,
		ICEServers:         cfg.ICEServers,
		Capturer:           capturerOrNil(capturer),
		NegotiationTimeout: cfg.NegotiationTimeout,
		OutboundQueueSize:  cfg.OutboundQueueSize,
		Logger:             logger,
		Metrics:            meter,
	})
	if err != nil {
		logger.Error("building conference client", "err", err)
		os.Exit(1)
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", metrics.PrometheusHandler(meter))
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Warn("metrics server exited", "err", err)
			}
		}()
	}

	client.On(conference.EventCreatedRoom, func(data any) {
		info := data.(conference.RoomInfo)
		logger.Info("room created, waiting for participants", "room", info.Room)
	})
	client.On(conference.EventJoinedRoom, func(data any) {
		info := data.(conference.RoomInfo)
		logger.Info("joined existing room", "room", info.Room)
		client.AnnounceStreamReady()
	})
	client.On(conference.EventNewStream, func(data any) {
		info := data.(conference.StreamInfo)
		logger.Info("remote stream started", "peer", info.PeerID, "stream", info.StreamID)
	})
	client.On(conference.EventRemoveStream, func(data any) {
		info := data.(conference.PeerInfo)
		logger.Info("remote stream ended", "peer", info.ID)
	})
	client.On(conference.EventUserLeave, func(data any) {
		info := data.(conference.PeerInfo)
		logger.Info("participant left", "peer", info.ID)
	})
	client.On(conference.EventError, func(data any) {
		logger.Error("conference error", "err", data)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Run(ctx)
	}()

	if capturer != nil {
		if _, err := client.AcquireLocalStream(cfg.DisplayName); err != nil {
			logger.Warn("acquiring local stream failed, continuing receive-only", "err", err)
		}
	}
	client.JoinRoom(cfg.Room)

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("session ended", "err", err)
		os.Exit(1)
	}
	logger.Info("session ended")
}

// capturerOrNil keeps a typed-nil *DeviceCapturer out of the Capturer
// interface value.
func capturerOrNil(c *media.DeviceCapturer) media.Capturer {
	if c == nil {
		return nil
	}
	return c
}
