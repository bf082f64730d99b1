package conference

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"
	"github.com/pion/webrtc/v4"

	"github.com/mrwaynerp/react-video-conference/internal/media"
	"github.com/mrwaynerp/react-video-conference/internal/metrics"
	"github.com/mrwaynerp/react-video-conference/internal/peer"
	"github.com/mrwaynerp/react-video-conference/internal/signal"
)

type fakeChannel struct {
	events chan signal.Envelope
	sent   chan signal.Envelope

	mu     sync.Mutex
	closed bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		events: make(chan signal.Envelope, 16),
		sent:   make(chan signal.Envelope, 64),
	}
}

func (c *fakeChannel) Events() <-chan signal.Envelope { return c.events }

func (c *fakeChannel) Send(env signal.Envelope) error {
	c.sent <- env
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) waitSent(t *testing.T) signal.Envelope {
	t.Helper()
	select {
	case env := <-c.sent:
		return env
	case <-time.After(time.Second):
		t.Fatalf("no outbound envelope")
		return signal.Envelope{}
	}
}

func (c *fakeChannel) expectNoSent(t *testing.T) {
	t.Helper()
	select {
	case env := <-c.sent:
		t.Fatalf("unexpected outbound envelope: %+v", env)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeLink struct {
	mu    sync.Mutex
	state webrtc.PeerConnectionState

	setLocalErr error

	tracks []media.Track
	cands  []webrtc.ICECandidateInit

	onCandidate  func(webrtc.ICECandidateInit)
	onTrack      func(string)
	onTrackEnded func(string)
	onState      func(webrtc.PeerConnectionState)

	closed bool
}

func (l *fakeLink) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 fake offer"}, nil
}

func (l *fakeLink) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 fake answer"}, nil
}

func (l *fakeLink) SetLocalDescription(webrtc.SessionDescription) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.setLocalErr
}

func (l *fakeLink) SetRemoteDescription(webrtc.SessionDescription) error { return nil }

func (l *fakeLink) AddICECandidate(init webrtc.ICECandidateInit) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cands = append(l.cands, init)
	return nil
}

func (l *fakeLink) AddTrack(t media.Track) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracks = append(l.tracks, t)
	return nil
}

func (l *fakeLink) ConnectionState() webrtc.PeerConnectionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *fakeLink) setState(s webrtc.PeerConnectionState) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *fakeLink) OnLocalCandidate(fn func(webrtc.ICECandidateInit)) {
	l.mu.Lock()
	l.onCandidate = fn
	l.mu.Unlock()
}

func (l *fakeLink) OnRemoteTrack(fn func(string)) {
	l.mu.Lock()
	l.onTrack = fn
	l.mu.Unlock()
}

func (l *fakeLink) OnRemoteTrackEnded(fn func(string)) {
	l.mu.Lock()
	l.onTrackEnded = fn
	l.mu.Unlock()
}

func (l *fakeLink) OnStateChange(fn func(webrtc.PeerConnectionState)) {
	l.mu.Lock()
	l.onState = fn
	l.mu.Unlock()
}

func (l *fakeLink) fireTrack(streamID string) {
	l.mu.Lock()
	fn := l.onTrack
	l.mu.Unlock()
	fn(streamID)
}

func (l *fakeLink) fireCandidate(init webrtc.ICECandidateInit) {
	l.mu.Lock()
	fn := l.onCandidate
	l.mu.Unlock()
	fn(init)
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *fakeLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *fakeLink) trackCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tracks)
}

func (l *fakeLink) candidateCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cands)
}

type fakeFactory struct {
	mu    sync.Mutex
	links []*fakeLink
}

func (f *fakeFactory) NewLink() (peer.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := &fakeLink{}
	f.links = append(f.links, l)
	return l, nil
}

func (f *fakeFactory) link(i int) *fakeLink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.links[i]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.links)
}

type fakeTrack struct {
	id string

	mu     sync.Mutex
	closed bool
}

func (t *fakeTrack) Bind(webrtc.TrackLocalContext) (webrtc.RTPCodecParameters, error) {
	return webrtc.RTPCodecParameters{}, nil
}
func (t *fakeTrack) Unbind(webrtc.TrackLocalContext) error { return nil }
func (t *fakeTrack) ID() string { return t.id }
func (t *fakeTrack) RID() string { return "" }
func (t *fakeTrack) StreamID() string { return "local-stream" }
func (t *fakeTrack) Kind() webrtc.RTPCodecType { return webrtc.RTPCodecTypeVideo }

func (t *fakeTrack) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTrack) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type fakeCapturer struct {
	tracks []media.Track
	err    error
}

func (c *fakeCapturer) Capture() (*media.LocalStream, error) {
	if c.err != nil {
		return nil, c.err
	}
	return media.NewLocalStream(c.tracks), nil
}

type fixture struct {
	client  *Client
	channel *fakeChannel
	factory *fakeFactory
	meter   *metrics.Metrics
	runErr  chan error
}

func newFixture(t *testing.T, capturer media.Capturer) *fixture {
	t.Helper()

	f := &fixture{
		channel: newFakeChannel(),
		factory: &fakeFactory{},
		meter:   metrics.New(),
		runErr:  make(chan error, 1),
	}

	client, err := New(Options{
		Channel:            f.channel,
		DisplayName:        "alice",
		Capturer:           capturer,
		LinkFactory:        f.factory,
		NegotiationTimeout: time.Minute,
		Metrics:            f.meter,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.client = client

	go func() { f.runErr <- client.Run(context.Background()) }()

	t.Cleanup(func() {
		client.Teardown()
		select {
		case <-f.runErr:
		case <-time.After(time.Second):
			t.Errorf("Run did not return after Teardown")
		}
	})

	return f
}

func (f *fixture) feed(env signal.Envelope) {
	f.channel.events <- env
}

// waitNotification registers a one-shot handler and returns a receive
// channel for its payload.
func waitNotification(c *Client, eventID string) <-chan any {
	ch := make(chan any, 1)
	c.Once(eventID, func(data any) { ch <- data })
	return ch
}

func recv[T any](t *testing.T, ch <-chan any) T {
	t.Helper()
	select {
	case data := <-ch:
		v, ok := data.(T)
		if !ok {
			t.Fatalf("payload=%T(%v), want %T", data, data, *new(T))
		}
		return v
	case <-time.After(time.Second):
		t.Fatalf("notification not dispatched")
		return *new(T)
	}
}

func TestJoinRoomSendsCreateOrJoin(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()
	f := newFixture(t, nil)

	f.client.JoinRoom("garden")

	env := f.channel.waitSent(t)
	if env.Event != signal.EventCreateOrJoin || env.Room != "garden" || env.Name != "alice" {
		t.Fatalf("envelope=%+v, want create-or-join for garden", env)
	}
}

func TestJoinRoomGuards(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()
	f := newFixture(t, nil)

	f.client.JoinRoom("")
	f.channel.expectNoSent(t)

	f.client.JoinRoom("garden")
	f.channel.waitSent(t)

	// A second join while a session is in progress is aborted.
	f.client.JoinRoom("orchard")
	f.channel.expectNoSent(t)
}

func TestCreatedRoomNotification(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()
	f := newFixture(t, nil)

	created := waitNotification(f.client, EventCreatedRoom)
	f.feed(signal.Envelope{Event: signal.EventCreated, ID: "self-1", Room: "garden"})

	info := recv[RoomInfo](t, created)
	if info.ID != "self-1" || info.Room != "garden" {
		t.Fatalf("RoomInfo=%+v", info)
	}
}

func TestOfferProducesExactlyOneAnswer(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()
	f := newFixture(t, nil)

	f.feed(signal.Envelope{Event: signal.EventJoined, ID: "self-2", Room: "garden"})
	f.feed(signal.Envelope{
		Event: signal.EventMessage,
		ID:    "peer-1",
		Type:  signal.MessageOffer,
		SDP:   &signal.SDP{Type: "offer", SDP: "v=0"},
	})

	env := f.channel.waitSent(t)
	if env.Type != signal.MessageAnswer || env.ToID != "peer-1" {
		t.Fatalf("envelope=%+v, want answer to peer-1", env)
	}
	if env.SDP == nil || env.SDP.Type != "answer" {
		t.Fatalf("answer sdp: %+v", env.SDP)
	}
	f.channel.expectNoSent(t)
}

func TestStreamReadyOffersWhenOriginator(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()
	track := &fakeTrack{id: "video"}
	f := newFixture(t, &fakeCapturer{tracks: []media.Track{track}})

	if _, err := f.client.AcquireLocalStream("alice"); err != nil {
		t.Fatalf("AcquireLocalStream: %v", err)
	}

	f.feed(signal.Envelope{Event: signal.EventCreated, ID: "self-1", Room: "garden"})
	f.feed(signal.Envelope{Event: signal.EventMessage, ID: "peer-1", Type: signal.MessageStreamReady})

	env := f.channel.waitSent(t)
	if env.Type != signal.MessageOffer || env.ToID != "peer-1" {
		t.Fatalf("envelope=%+v, want offer to peer-1", env)
	}
	if got := f.factory.link(0).trackCount(); got != 1 {
		t.Fatalf("attached tracks=%d, want 1", got)
	}
}

func TestStreamReadyGuardWithoutStreamOrReadiness(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()
	f := newFixture(t, nil)

	// created: originator, but no local stream and no ready far end.
	f.feed(signal.Envelope{Event: signal.EventCreated, ID: "self-1", Room: "garden"})
	f.feed(signal.Envelope{Event: signal.EventMessage, ID: "peer-1", Type: signal.MessageStreamReady})

	f.channel.expectNoSent(t)
	if got := f.factory.count(); got != 0 {
		t.Fatalf("links created=%d, want 0", got)
	}
}

func TestConnectedPeerDuplicateAttemptIsNoop(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()
	f := newFixture(t, nil)

	f.feed(signal.Envelope{Event: signal.EventJoined, ID: "self-2", Room: "garden"})
	f.feed(signal.Envelope{Event: signal.EventMessage, ID: "peer-1", Type: signal.MessageStreamReady})

	// Non-originator: the connect sequence builds the link but sends nothing.
	f.channel.expectNoSent(t)
	if got := f.factory.count(); got != 1 {
		t.Fatalf("links created=%d, want 1", got)
	}

	f.factory.link(0).setState(webrtc.PeerConnectionStateConnected)
	f.feed(signal.Envelope{Event: signal.EventMessage, ID: "peer-1", Type: signal.MessageStreamReady})

	f.channel.expectNoSent(t)
	if got := f.factory.count(); got != 1 {
		t.Fatalf("links after duplicate=%d, want 1", got)
	}
	if got := f.meter.Get(metrics.EventDuplicateAttempt); got != 1 {
		t.Fatalf("duplicate_attempt=%d, want 1", got)
	}
}

func TestAnswerForUnknownPeerIsDropped(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()
	f := newFixture(t, nil)

	f.feed(signal.Envelope{Event: signal.EventJoined, ID: "self-2", Room: "garden"})
	f.feed(signal.Envelope{
		Event: signal.EventMessage,
		ID:    "peer-9",
		Type:  signal.MessageAnswer,
		SDP:   &signal.SDP{Type: "answer", SDP: "v=0"},
	})

	f.channel.expectNoSent(t)
	deadline := time.Now().Add(time.Second)
	for f.meter.Get(metrics.EventProtocolAnomaly) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("protocol anomaly not counted")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLocalCandidateIsForwarded(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()
	f := newFixture(t, nil)

	f.feed(signal.Envelope{Event: signal.EventJoined, ID: "self-2", Room: "garden"})
	f.feed(signal.Envelope{Event: signal.EventMessage, ID: "peer-1", Type: signal.MessageStreamReady})
	f.channel.expectNoSent(t)

	mid := "0"
	f.factory.link(0).fireCandidate(webrtc.ICECandidateInit{Candidate: "candidate:1", SDPMid: &mid})

	env := f.channel.waitSent(t)
	if env.Type != signal.MessageCandidate || env.ToID != "peer-1" {
		t.Fatalf("envelope=%+v, want candidate to peer-1", env)
	}
	if env.Candidate == nil || env.Candidate.Candidate != "candidate:1" {
		t.Fatalf("candidate payload: %+v", env.Candidate)
	}
}

func TestRemoteCandidateIsApplied(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()
	f := newFixture(t, nil)

	f.feed(signal.Envelope{Event: signal.EventJoined, ID: "self-2", Room: "garden"})
	f.feed(signal.Envelope{Event: signal.EventMessage, ID: "peer-1", Type: signal.MessageStreamReady})
	f.channel.expectNoSent(t)

	f.feed(signal.Envelope{
		Event:     signal.EventMessage,
		ID:        "peer-1",
		Type:      signal.MessageCandidate,
		Candidate: &signal.Candidate{Candidate: "candidate:7"},
	})

	link := f.factory.link(0)
	deadline := time.Now().Add(time.Second)
	for link.candidateCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("remote candidate not applied")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRemoteTrackAdoption(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()
	f := newFixture(t, nil)

	f.feed(signal.Envelope{Event: signal.EventJoined, ID: "self-2", Room: "garden"})
	f.feed(signal.Envelope{Event: signal.EventMessage, ID: "peer-1", Type: signal.MessageStreamReady})
	f.channel.expectNoSent(t)

	streamCh := waitNotification(f.client, EventNewStream)
	f.factory.link(0).fireTrack("stream-1")

	info := recv[StreamInfo](t, streamCh)
	if info.PeerID != "peer-1" || info.StreamID != "stream-1" {
		t.Fatalf("StreamInfo=%+v", info)
	}

	env := f.channel.waitSent(t)
	if env.Event != signal.EventNewStream || env.StreamID != "stream-1" {
		t.Fatalf("envelope=%+v, want newStream", env)
	}

	// Re-announcing the same stream identity is a no-op.
	f.factory.link(0).fireTrack("stream-1")
	f.channel.expectNoSent(t)
}

func TestLeaveMessageRemovesPeer(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()
	f := newFixture(t, nil)

	f.feed(signal.Envelope{Event: signal.EventJoined, ID: "self-2", Room: "garden"})
	f.feed(signal.Envelope{Event: signal.EventMessage, ID: "peer-1", Type: signal.MessageStreamReady})
	f.channel.expectNoSent(t)
	f.factory.link(0).fireTrack("stream-1")
	f.channel.waitSent(t) // newStream announcement

	leaveCh := waitNotification(f.client, EventUserLeave)
	removeCh := waitNotification(f.client, EventRemoveStream)
	f.feed(signal.Envelope{Event: signal.EventMessage, ID: "peer-1", Type: signal.MessageLeave})

	if info := recv[PeerInfo](t, removeCh); info.ID != "peer-1" {
		t.Fatalf("removeStream=%+v", info)
	}
	if info := recv[PeerInfo](t, leaveCh); info.ID != "peer-1" {
		t.Fatalf("userLeave=%+v", info)
	}
	if !f.factory.link(0).isClosed() {
		t.Fatalf("departed peer's link not closed")
	}
}

func TestRemoveStreamFiresForStreamlessPeer(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()
	f := newFixture(t, nil)

	// The peer link exists but no remote track ever arrived.
	f.feed(signal.Envelope{Event: signal.EventJoined, ID: "self-2", Room: "garden"})
	f.feed(signal.Envelope{Event: signal.EventMessage, ID: "peer-1", Type: signal.MessageStreamReady})
	f.channel.expectNoSent(t)
	if got := f.factory.count(); got != 1 {
		t.Fatalf("links created=%d, want 1", got)
	}

	removeCh := waitNotification(f.client, EventRemoveStream)
	f.feed(signal.Envelope{Event: signal.EventMessage, ID: "peer-1", Type: signal.MessageLeave})

	if info := recv[PeerInfo](t, removeCh); info.ID != "peer-1" {
		t.Fatalf("removeStream=%+v, want peer-1", info)
	}
}

func TestNegotiationTimeoutFailsPeer(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()

	f := &fixture{
		channel: newFakeChannel(),
		factory: &fakeFactory{},
		meter:   metrics.New(),
		runErr:  make(chan error, 1),
	}
	client, err := New(Options{
		Channel:            f.channel,
		LinkFactory:        f.factory,
		NegotiationTimeout: 20 * time.Millisecond,
		Metrics:            f.meter,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.client = client
	go func() { f.runErr <- client.Run(context.Background()) }()
	t.Cleanup(func() {
		client.Teardown()
		<-f.runErr
	})

	errCh := waitNotification(client, EventError)
	f.feed(signal.Envelope{Event: signal.EventJoined, ID: "self-2", Room: "garden"})
	f.feed(signal.Envelope{Event: signal.EventMessage, ID: "peer-1", Type: signal.MessageStreamReady})

	notifyErr := recv[error](t, errCh)
	var negErr *peer.NegotiationError
	if !errors.As(notifyErr, &negErr) || negErr.PeerID != "peer-1" {
		t.Fatalf("error notification=%v, want negotiation error for peer-1", notifyErr)
	}
	if got := f.meter.Get(metrics.EventNegotiationTimeout); got != 1 {
		t.Fatalf("negotiation_timeout=%d, want 1", got)
	}
	// The removal follows the error notification; poll for the close.
	deadline := time.Now().Add(time.Second)
	for !f.factory.link(0).isClosed() {
		if time.Now().After(deadline) {
			t.Fatalf("timed-out peer's link not closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLeaveRoomBroadcastsAndResets(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()
	f := newFixture(t, nil)

	f.feed(signal.Envelope{Event: signal.EventJoined, ID: "self-2", Room: "garden"})
	f.feed(signal.Envelope{Event: signal.EventMessage, ID: "peer-1", Type: signal.MessageStreamReady})
	f.channel.expectNoSent(t)

	f.client.LeaveRoom()

	env := f.channel.waitSent(t)
	if env.Type != signal.MessageLeave || env.Room != "garden" {
		t.Fatalf("envelope=%+v, want leave broadcast", env)
	}
	if !f.factory.link(0).isClosed() {
		t.Fatalf("peer link not closed on leave")
	}

	// Back to idle: a fresh join is accepted again.
	f.client.JoinRoom("orchard")
	env = f.channel.waitSent(t)
	if env.Event != signal.EventCreateOrJoin || env.Room != "orchard" {
		t.Fatalf("envelope=%+v, want create-or-join for orchard", env)
	}
}

func TestAnnounceStreamReadyGuards(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()
	track := &fakeTrack{id: "video"}
	f := newFixture(t, &fakeCapturer{tracks: []media.Track{track}})

	// Not in a room yet.
	f.client.AnnounceStreamReady()
	f.channel.expectNoSent(t)

	created := waitNotification(f.client, EventCreatedRoom)
	f.feed(signal.Envelope{Event: signal.EventCreated, ID: "self-1", Room: "garden"})
	recv[RoomInfo](t, created)

	// In a room but no local stream yet.
	f.client.AnnounceStreamReady()
	f.channel.expectNoSent(t)

	if _, err := f.client.AcquireLocalStream(""); err != nil {
		t.Fatalf("AcquireLocalStream: %v", err)
	}
	f.client.AnnounceStreamReady()

	env := f.channel.waitSent(t)
	if env.Type != signal.MessageStreamReady || env.Room != "garden" || env.ID != "self-1" {
		t.Fatalf("envelope=%+v, want stream-ready broadcast", env)
	}
}

func TestTeardownReleasesEverything(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	track := &fakeTrack{id: "video"}
	channel := newFakeChannel()
	factory := &fakeFactory{}

	client, err := New(Options{
		Channel:     channel,
		Capturer:    &fakeCapturer{tracks: []media.Track{track}},
		LinkFactory: factory,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(context.Background()) }()

	if _, err := client.AcquireLocalStream("alice"); err != nil {
		t.Fatalf("AcquireLocalStream: %v", err)
	}
	channel.events <- signal.Envelope{Event: signal.EventJoined, ID: "self-2", Room: "garden"}
	channel.events <- signal.Envelope{Event: signal.EventMessage, ID: "peer-1", Type: signal.MessageStreamReady}

	deadline := time.Now().Add(time.Second)
	for factory.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("peer link never created")
		}
		time.Sleep(5 * time.Millisecond)
	}

	client.Teardown()

	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after Teardown")
	}

	if !track.isClosed() {
		t.Fatalf("local track not stopped")
	}
	if !factory.link(0).isClosed() {
		t.Fatalf("peer link not closed")
	}
	if !channel.isClosed() {
		t.Fatalf("signaling channel not closed")
	}

	// API calls after teardown are safe no-ops.
	client.JoinRoom("garden")
	if _, err := client.AcquireLocalStream("alice"); !errors.Is(err, ErrClosed) {
		t.Fatalf("AcquireLocalStream after teardown: %v, want ErrClosed", err)
	}
}

func TestNewRequiresChannel(t *testing.T) {
	if _, err := New(Options{LinkFactory: &fakeFactory{}}); !errors.Is(err, ErrNoChannel) {
		t.Fatalf("err=%v, want ErrNoChannel", err)
	}
}
