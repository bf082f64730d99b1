package peer

import (
	"log/slog"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/mrwaynerp/react-video-conference/internal/media"
)

// Link abstracts the transport that negotiates and maintains one direct
// participant-to-participant media connection. The registry and negotiator
// only speak this interface, so they are testable without ICE or sockets.
type Link interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	AddTrack(media.Track) error
	ConnectionState() webrtc.PeerConnectionState

	OnLocalCandidate(func(webrtc.ICECandidateInit))
	OnRemoteTrack(func(streamID string))
	OnRemoteTrackEnded(func(streamID string))
	OnStateChange(func(webrtc.PeerConnectionState))

	Close() error
}

// LinkFactory allocates links configured with the session's ICE servers.
type LinkFactory interface {
	NewLink() (Link, error)
}

// MediaEnginePopulator is implemented by capturers whose codecs must be
// registered on the engine building peer links.
type MediaEnginePopulator interface {
	PopulateMediaEngine(*webrtc.MediaEngine)
}

// PionFactory builds pion-backed links from one shared webrtc.API.
type PionFactory struct {
	api *webrtc.API
	cfg webrtc.Configuration
}

// NewPionFactory configures the shared API. populate registers the capture
// codecs; when nil the default codec set is used (receive-only sessions).
func NewPionFactory(iceServers []webrtc.ICEServer, populate MediaEnginePopulator, logger *slog.Logger) (*PionFactory, error) {
	engine := &webrtc.MediaEngine{}
	if populate != nil {
		populate.PopulateMediaEngine(engine)
	} else if err := engine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(engine, registry); err != nil {
		return nil, err
	}

	settings := webrtc.SettingEngine{}
	settings.LoggerFactory = newSlogLoggerFactory(logger)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(engine),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(settings),
	)

	return &PionFactory{
		api: api,
		cfg: webrtc.Configuration{ICEServers: iceServers},
	}, nil
}

func (f *PionFactory) NewLink() (Link, error) {
	pc, err := f.api.NewPeerConnection(f.cfg)
	if err != nil {
		return nil, err
	}
	return &pionLink{pc: pc}, nil
}

type pionLink struct {
	pc *webrtc.PeerConnection

	trackAdded func(streamID string)
	trackEnded func(streamID string)
	bound      bool
}

func (l *pionLink) CreateOffer() (webrtc.SessionDescription, error) {
	return l.pc.CreateOffer(nil)
}

func (l *pionLink) CreateAnswer() (webrtc.SessionDescription, error) {
	return l.pc.CreateAnswer(nil)
}

func (l *pionLink) SetLocalDescription(desc webrtc.SessionDescription) error {
	return l.pc.SetLocalDescription(desc)
}

func (l *pionLink) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return l.pc.SetRemoteDescription(desc)
}

func (l *pionLink) AddICECandidate(init webrtc.ICECandidateInit) error {
	return l.pc.AddICECandidate(init)
}

func (l *pionLink) AddTrack(t media.Track) error {
	_, err := l.pc.AddTrack(t)
	return err
}

func (l *pionLink) ConnectionState() webrtc.PeerConnectionState {
	return l.pc.ConnectionState()
}

func (l *pionLink) OnLocalCandidate(fn func(webrtc.ICECandidateInit)) {
	l.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		fn(c.ToJSON())
	})
}

// OnRemoteTrack and OnRemoteTrackEnded share pion's single OnTrack hook: a
// remote track has "ended" once its RTP read loop returns an error.
func (l *pionLink) OnRemoteTrack(fn func(streamID string)) {
	l.trackAdded = fn
	l.bindOnTrack()
}

func (l *pionLink) OnRemoteTrackEnded(fn func(streamID string)) {
	l.trackEnded = fn
	l.bindOnTrack()
}

func (l *pionLink) bindOnTrack() {
	if l.bound {
		return
	}
	l.bound = true

	l.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		streamID := track.StreamID()
		if l.trackAdded != nil {
			l.trackAdded(streamID)
		}
		go func() {
			for {
				if _, _, err := track.ReadRTP(); err != nil {
					if l.trackEnded != nil {
						l.trackEnded(streamID)
					}
					return
				}
			}
		}()
	})
}

func (l *pionLink) OnStateChange(fn func(webrtc.PeerConnectionState)) {
	l.pc.OnConnectionStateChange(fn)
}

func (l *pionLink) Close() error {
	return l.pc.Close()
}
