//go:build !linux || !cgo

package media

import "log/slog"

// DeviceCapturer is only implemented for Linux (V4L2 + malgo). Other
// platforms embed their own Capturer.
type DeviceCapturer struct{}

func NewDeviceCapturer(*slog.Logger) (*DeviceCapturer, error) {
	return nil, ErrCaptureUnsupported
}

func (c *DeviceCapturer) Capture() (*LocalStream, error) {
	return nil, ErrCaptureUnsupported
}
