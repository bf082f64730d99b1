//go:build linux && cgo

package media

import (
	"fmt"
	"log/slog"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
)

const videoBitRate = 1_500_000

// DeviceCapturer acquires camera/microphone tracks via pion/mediadevices
// (V4L2 + malgo). Its codec selector must also populate the MediaEngine used
// to build peer links, otherwise the captured tracks cannot bind.
type DeviceCapturer struct {
	logger   *slog.Logger
	selector *mediadevices.CodecSelector
}

func NewDeviceCapturer(logger *slog.Logger) (*DeviceCapturer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = videoBitRate

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}

	return &DeviceCapturer{
		logger: logger,
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vpxParams),
			mediadevices.WithAudioEncoders(&opusParams),
		),
	}, nil
}

// PopulateMediaEngine registers the capturer's codecs on me.
func (c *DeviceCapturer) PopulateMediaEngine(me *webrtc.MediaEngine) {
	c.selector.Populate(me)
}

// Capture opens the local devices.
//
// GetUserMedia fails as a unit if either requested track cannot be opened, so
// attempts degrade: video+audio, then video-only, then audio-only. Only when
// every attempt fails does the error reach the caller.
func (c *DeviceCapturer) Capture() (*LocalStream, error) {
	type attempt struct {
		video bool
		audio bool
		label string
	}

	var lastErr error
	for _, a := range []attempt{
		{true, true, "video+audio"},
		{true, false, "video-only"},
		{false, true, "audio-only"},
	} {
		constraints := mediadevices.MediaStreamConstraints{Codec: c.selector}
		if a.video {
			constraints.Video = func(mc *mediadevices.MediaTrackConstraints) {
				// Raw formats only: some cameras expose an MJPEG node that
				// produces malformed frames and poisons the VP8 encoder.
				mc.FrameFormat = prop.FrameFormatOneOf{
					frame.FormatYUYV,
					frame.FormatI420,
					frame.FormatI444,
					frame.FormatRGBA,
				}
				mc.Width = prop.IntRanged{Max: 640}
				mc.Height = prop.IntRanged{Max: 480}
			}
		}
		if a.audio {
			constraints.Audio = func(*mediadevices.MediaTrackConstraints) {}
		}

		stream, err := mediadevices.GetUserMedia(constraints)
		if err != nil {
			c.logger.Warn("local capture attempt failed", "attempt", a.label, "err", err)
			lastErr = err
			continue
		}

		captured := stream.GetTracks()
		tracks := make([]Track, 0, len(captured))
		for _, t := range captured {
			t.OnEnded(func(err error) {
				if err != nil {
					c.logger.Warn("local track ended", "track", t.ID(), "err", err)
				}
			})
			tracks = append(tracks, t)
		}

		c.logger.Info("local media captured", "attempt", a.label, "tracks", len(tracks))
		return NewLocalStream(tracks), nil
	}

	return nil, fmt.Errorf("media capture rejected: %w", lastErr)
}
