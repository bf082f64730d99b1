// Package conference coordinates multi-party WebRTC sessions. It consumes
// room-membership and negotiation messages from a signaling channel and
// maintains a consistent set of live peer links, surfacing room changes to
// the embedding application through local notifications.
//
// All session state is owned by a single run-loop goroutine. API calls,
// inbound envelopes and peer-link reactions are funneled into that loop;
// outbound envelopes leave through a bounded queue drained by a dedicated
// writer, one scheduling tick after they were produced.
package conference

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/mrwaynerp/react-video-conference/internal/event"
	"github.com/mrwaynerp/react-video-conference/internal/media"
	"github.com/mrwaynerp/react-video-conference/internal/metrics"
	"github.com/mrwaynerp/react-video-conference/internal/peer"
	"github.com/mrwaynerp/react-video-conference/internal/room"
	"github.com/mrwaynerp/react-video-conference/internal/signal"
)

// Local notification identifiers, usable with On and Once.
const (
	EventCreatedRoom  = "createdRoom"
	EventJoinedRoom   = "joinedRoom"
	EventNewJoin      = "newJoin"
	EventUserLeave    = "userLeave"
	EventNewStream    = "newStream"
	EventRemoveStream = "removeStream"
	EventError        = "error"
)

// RoomInfo is the payload of createdRoom and joinedRoom notifications.
type RoomInfo struct {
	ID   string
	Room string
}

// PeerInfo is the payload of userLeave and removeStream notifications.
type PeerInfo struct {
	ID string
}

// StreamInfo is the payload of newStream notifications.
type StreamInfo struct {
	PeerID   string
	StreamID string
}

var (
	ErrNoChannel = errors.New("conference: signaling channel required")
	ErrClosed    = errors.New("conference: client closed")
)

const defaultOutboundQueueSize = 256

// Options configures a Client. Channel is required; everything else has a
// usable default.
type Options struct {
	// Channel is the already-connected signaling transport.
	Channel signal.Channel

	// DisplayName is announced to peers in outbound session messages.
	DisplayName string

	// ICEServers configure the default link factory. Ignored when
	// LinkFactory is set.
	ICEServers []webrtc.ICEServer

	// Capturer acquires the local media stream. Nil means the client is
	// receive-only until a capturer is provided some other way.
	Capturer media.Capturer

	// LinkFactory overrides the pion-backed factory, mainly for tests.
	LinkFactory peer.LinkFactory

	// NegotiationTimeout bounds each peer's offer/answer cycle. Zero means
	// the default.
	NegotiationTimeout time.Duration

	// OutboundQueueSize bounds the outbound envelope queue. Zero means the
	// default.
	OutboundQueueSize int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Client is one local participant: its room state, its peers and its
// signaling traffic.
type Client struct {
	logger *slog.Logger
	meter  *metrics.Metrics

	channel signal.Channel
	outbox  *signal.Outbox
	events  *event.Dispatcher

	capturer   media.Capturer
	registry   *peer.Registry
	negotiator *peer.Negotiator

	// state and local are owned by the run loop.
	state room.State
	local *media.LocalStream

	commands   chan func()
	linkEvents chan room.LinkEvent

	quit     chan struct{}
	quitOnce sync.Once
	// stopped closes when the run loop exits; finished closes once teardown
	// completed.
	stopped  chan struct{}
	finished chan struct{}

	// Notifications are dispatched off the run loop, in order, so handlers
	// can call back into the API without deadlocking the loop.
	notifyMu     sync.Mutex
	notifyCond   *sync.Cond
	notifyQueue  []notification
	notifyClosed bool

	writerWG   sync.WaitGroup
	notifierWG sync.WaitGroup
}

type notification struct {
	id   string
	data any
}

func New(opts Options) (*Client, error) {
	if opts.Channel == nil {
		return nil, ErrNoChannel
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	meter := opts.Metrics
	if meter == nil {
		meter = metrics.New()
	}
	queueSize := opts.OutboundQueueSize
	if queueSize <= 0 {
		queueSize = defaultOutboundQueueSize
	}

	c := &Client{
		logger:     logger,
		meter:      meter,
		channel:    opts.Channel,
		outbox:     signal.NewOutbox(queueSize),
		events:     event.New(nil),
		capturer:   opts.Capturer,
		state:      room.State{Name: opts.DisplayName},
		commands:   make(chan func()),
		linkEvents: make(chan room.LinkEvent, 128),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
		finished:   make(chan struct{}),
	}
	c.notifyCond = sync.NewCond(&c.notifyMu)

	factory := opts.LinkFactory
	if factory == nil {
		var populate peer.MediaEnginePopulator
		if p, ok := opts.Capturer.(peer.MediaEnginePopulator); ok {
			populate = p
		}
		f, err := peer.NewPionFactory(opts.ICEServers, populate, logger)
		if err != nil {
			return nil, err
		}
		factory = f
	}
	c.registry = peer.NewRegistry(factory, c.postLinkEvent, logger)
	c.negotiator = peer.NewNegotiator(opts.NegotiationTimeout, c.postLinkEvent, logger)

	return c, nil
}

// On registers fn for the given notification and returns its removal
// function.
func (c *Client) On(eventID string, fn func(data any)) (remove func()) {
	return c.events.Register(eventID, event.Handler(fn), false)
}

// Once registers fn to fire at most once.
func (c *Client) Once(eventID string, fn func(data any)) (remove func()) {
	return c.events.Register(eventID, event.Handler(fn), true)
}

// Run drives the session until ctx is canceled, Teardown is called or the
// signaling channel closes. It always tears the session down before
// returning; release failures are joined into the returned error.
func (c *Client) Run(ctx context.Context) error {
	c.writerWG.Add(1)
	go c.writeLoop()
	c.notifierWG.Add(1)
	go c.notifyLoop()

	var cause error
loop:
	for {
		select {
		case <-ctx.Done():
			cause = ctx.Err()
			break loop
		case <-c.quit:
			break loop
		case env, ok := <-c.channel.Events():
			if !ok {
				break loop
			}
			next, effects := room.Reduce(c.state, env)
			c.state = next
			c.apply(effects)
		case ev := <-c.linkEvents:
			next, effects := room.ReduceLink(c.state, ev)
			c.state = next
			c.apply(effects)
		case cmd := <-c.commands:
			cmd()
		}
	}

	return errors.Join(cause, c.teardown())
}

// Teardown stops the run loop and waits for the session to be fully
// released. It must not be called before Run.
func (c *Client) Teardown() {
	c.quitOnce.Do(func() { close(c.quit) })
	<-c.finished
}

// AcquireLocalStream captures the local media stream and adopts it as this
// participant's outgoing stream, replacing any previous one. A non-empty
// name becomes the announced display name. Capture failures are returned to
// the caller; this is the one error path that is not turned into a
// notification.
func (c *Client) AcquireLocalStream(name string) (*media.LocalStream, error) {
	if c.capturer == nil {
		return nil, media.ErrCaptureUnsupported
	}
	stream, err := c.capturer.Capture()
	if err != nil {
		c.meter.Inc(metrics.EventCaptureFailure)
		return nil, err
	}

	if !c.do(func() {
		if name != "" {
			c.state.Name = name
		}
		if c.local != nil {
			if err := c.local.Stop(); err != nil {
				c.logger.Warn("stopping replaced local stream", "err", err)
			}
		}
		c.local = stream
	}) {
		if err := stream.Stop(); err != nil {
			c.logger.Warn("stopping orphaned local stream", "err", err)
		}
		return nil, ErrClosed
	}
	return stream, nil
}

// JoinRoom asks the signaling server to create or join roomID. An empty
// room name or a session already in progress is a user input error: logged
// and aborted, never returned.
func (c *Client) JoinRoom(roomID string) {
	c.do(func() {
		if roomID == "" {
			c.logger.Warn("join aborted: empty room name")
			return
		}
		if c.state.Phase != room.PhaseIdle {
			c.logger.Warn("join aborted: session already in progress", "phase", c.state.Phase.String(), "room", c.state.RoomID)
			return
		}
		c.state.Phase = room.PhasePending
		c.state.RoomID = roomID
		c.enqueue(signal.Envelope{
			Event: signal.EventCreateOrJoin,
			Room:  roomID,
			Name:  c.state.Name,
		})
	})
}

// LeaveRoom broadcasts a leave message so remaining peers run their own
// leave path, then releases every local peer and returns to the idle phase.
// The local stream stays acquired for the next room.
func (c *Client) LeaveRoom() {
	c.do(func() {
		if c.state.Phase == room.PhaseIdle {
			c.logger.Warn("leave aborted: no session in progress")
			return
		}
		c.enqueue(signal.Envelope{
			Event: signal.EventMessage,
			Type:  signal.MessageLeave,
			ID:    c.state.OwnID,
			Name:  c.state.Name,
			Room:  c.state.RoomID,
		})
		c.removePeer("")
		c.state = room.State{Name: c.state.Name}
	})
}

// AnnounceStreamReady broadcasts that the local stream is ready, prompting
// every far end to start its connect sequence toward us.
func (c *Client) AnnounceStreamReady() {
	c.do(func() {
		if c.state.Phase != room.PhaseActive {
			c.logger.Warn("stream-ready aborted: not in a room", "phase", c.state.Phase.String())
			return
		}
		if c.local == nil {
			c.logger.Warn("stream-ready aborted: no local stream acquired")
			return
		}
		c.enqueue(signal.Envelope{
			Event: signal.EventMessage,
			Type:  signal.MessageStreamReady,
			ID:    c.state.OwnID,
			Name:  c.state.Name,
			Room:  c.state.RoomID,
		})
	})
}

// do runs fn on the run loop and waits for it. It reports false when the
// client already finished.
func (c *Client) do(fn func()) bool {
	done := make(chan struct{})
	select {
	case c.commands <- func() {
		fn()
		close(done)
	}:
	case <-c.stopped:
		return false
	}
	select {
	case <-done:
		return true
	case <-c.stopped:
		return false
	}
}

// postLinkEvent is the sink handed to the registry and negotiator; link
// callbacks run on pion goroutines and must never touch session state
// directly.
func (c *Client) postLinkEvent(ev room.LinkEvent) {
	select {
	case c.linkEvents <- ev:
	case <-c.stopped:
	}
}

// notify queues a local notification for ordered dispatch off the run loop.
func (c *Client) notify(id string, data any) {
	c.notifyMu.Lock()
	if !c.notifyClosed {
		c.notifyQueue = append(c.notifyQueue, notification{id: id, data: data})
		c.notifyCond.Signal()
	}
	c.notifyMu.Unlock()
}

func (c *Client) notifyLoop() {
	defer c.notifierWG.Done()
	for {
		c.notifyMu.Lock()
		for len(c.notifyQueue) == 0 && !c.notifyClosed {
			c.notifyCond.Wait()
		}
		if len(c.notifyQueue) == 0 {
			c.notifyMu.Unlock()
			return
		}
		n := c.notifyQueue[0]
		c.notifyQueue = c.notifyQueue[1:]
		c.notifyMu.Unlock()

		c.events.Dispatch(n.id, n.data)
	}
}

func (c *Client) writeLoop() {
	defer c.writerWG.Done()
	for {
		env, ok := c.outbox.Dequeue()
		if !ok {
			return
		}
		if err := c.channel.Send(env); err != nil {
			c.logger.Warn("sending envelope", "event", env.Event, "type", env.Type, "err", err)
			c.meter.Inc(metrics.EventOutboundDropped)
		}
	}
}

func (c *Client) enqueue(env signal.Envelope) {
	if !c.outbox.Enqueue(env) {
		c.logger.Warn("outbound queue full, dropping envelope", "event", env.Event, "type", env.Type)
		c.meter.Inc(metrics.EventOutboundDropped)
	}
}

func (c *Client) teardown() error {
	close(c.stopped)

	var errs []error

	if c.local != nil {
		if err := c.local.Stop(); err != nil {
			errs = append(errs, err)
		}
		c.local = nil
	}

	c.removePeer("")

	c.outbox.Close()
	c.writerWG.Wait()

	c.notifyMu.Lock()
	c.notifyClosed = true
	c.notifyMu.Unlock()
	c.notifyCond.Broadcast()
	c.notifierWG.Wait()

	c.events.RemoveAll()

	if err := c.channel.Close(); err != nil {
		errs = append(errs, err)
	}

	c.state = room.State{Name: c.state.Name}
	close(c.finished)
	return errors.Join(errs...)
}
