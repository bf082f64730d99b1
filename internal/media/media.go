// Package media models the local and remote media streams the conference
// hands around. Capture hardware is reached through the Capturer interface so
// the rest of the library never touches a device directly.
package media

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// ErrCaptureUnsupported is returned on platforms without a device capturer
// build.
var ErrCaptureUnsupported = errors.New("media: local capture not supported on this platform")

// Track is one locally captured media track. It is attachable to a
// PeerConnection and releasable on teardown.
type Track interface {
	webrtc.TrackLocal
	Close() error
}

// Capturer acquires the local media stream. Implementations own the device
// access; a failed acquisition is the one error path that must reach the
// caller directly.
type Capturer interface {
	Capture() (*LocalStream, error)
}

// LocalStream owns the captured tracks from acquisition until teardown.
type LocalStream struct {
	id     string
	tracks []Track
}

func NewLocalStream(tracks []Track) *LocalStream {
	return &LocalStream{
		id:     uuid.NewString(),
		tracks: tracks,
	}
}

func (s *LocalStream) ID() string { return s.id }

func (s *LocalStream) Tracks() []Track { return s.tracks }

// Stop releases every track. Hardware teardown failures are surfaced, not
// discarded; all tracks are still attempted.
func (s *LocalStream) Stop() error {
	var errs []error
	for _, t := range s.tracks {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("stop track %s: %w", t.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// RemoteStream is a peer's inbound media stream, identified by the stream id
// carried in its tracks. Identity comparison is by ID.
type RemoteStream struct {
	id     string
	peerID string
}

func NewRemoteStream(peerID, id string) *RemoteStream {
	return &RemoteStream{id: id, peerID: peerID}
}

func (s *RemoteStream) ID() string { return s.id }

func (s *RemoteStream) PeerID() string { return s.peerID }
