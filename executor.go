package conference

import (
	"errors"

	"github.com/pion/webrtc/v4"

	"github.com/mrwaynerp/react-video-conference/internal/media"
	"github.com/mrwaynerp/react-video-conference/internal/metrics"
	"github.com/mrwaynerp/react-video-conference/internal/peer"
	"github.com/mrwaynerp/react-video-conference/internal/room"
	"github.com/mrwaynerp/react-video-conference/internal/signal"
)

// apply executes one transition's effect list, in order, on the run loop.
func (c *Client) apply(effects []room.Effect) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case room.NotifyCreatedRoom:
			c.logger.Info("created room", "room", e.Room, "id", e.ID)
			c.notify(EventCreatedRoom, RoomInfo{ID: e.ID, Room: e.Room})

		case room.NotifyJoinedRoom:
			c.logger.Info("joined room", "room", e.Room, "id", e.ID)
			c.notify(EventJoinedRoom, RoomInfo{ID: e.ID, Room: e.Room})

		case room.NotifyNewJoin:
			c.notify(EventNewJoin, nil)

		case room.NotifyUserLeave:
			c.notify(EventUserLeave, PeerInfo{ID: e.ID})

		case room.NotifyRemoveStream:
			c.notify(EventRemoveStream, PeerInfo{ID: e.ID})

		case room.RemovePeer:
			c.removePeer(e.ID)

		case room.ConnectPeer:
			c.connectPeer(e.ID)

		case room.ApplyOffer:
			c.applyOffer(e.ID, e.SDP)

		case room.ApplyAnswer:
			c.applyAnswer(e.ID, e.SDP)

		case room.AddCandidate:
			c.addCandidate(e.ID, e.Candidate)

		case room.SendCandidate:
			cand := e.Candidate
			c.enqueue(signal.Envelope{
				Event:     signal.EventMessage,
				ToID:      e.ID,
				Name:      c.state.Name,
				Room:      c.state.RoomID,
				Type:      signal.MessageCandidate,
				Candidate: &cand,
			})

		case room.AdoptStream:
			c.adoptStream(e.ID, e.StreamID)

		case room.ClearDeadline:
			if p, ok := c.registry.Get(e.ID); ok {
				c.negotiator.ClearDeadline(p)
				c.meter.Inc(metrics.EventPeerConnected)
			}

		case room.FailPeer:
			c.failPeer(e.ID, e.Reason)

		case room.Warn:
			c.logger.Warn("dropping message", "reason", e.Reason, "peer", e.PeerID)
			c.meter.Inc(metrics.EventProtocolAnomaly)

		case room.ServerLog:
			c.logger.Info("signaling server", "args", e.Args)
		}
	}
}

// connectPeer runs the guarded connect sequence toward id.
func (c *Client) connectPeer(id string) {
	if p, ok := c.registry.Get(id); ok && p.Link.ConnectionState() == webrtc.PeerConnectionStateConnected {
		c.logger.Warn("connect skipped: peer already connected", "peer", id)
		c.meter.Inc(metrics.EventDuplicateAttempt)
		return
	}
	if c.local == nil && !c.state.ConnectReady {
		c.logger.Warn("connect skipped: no local stream and no ready far end", "peer", id)
		return
	}

	p, err := c.ensurePeer(id)
	if err != nil {
		c.notifyError(err)
		return
	}
	c.negotiator.StartDeadline(p)

	if !c.state.Originator {
		return
	}
	env, err := c.negotiator.MakeOffer(p, c.state.Name, c.state.RoomID)
	if err != nil {
		c.failNegotiation(id, err)
		return
	}
	if env != nil {
		c.enqueue(*env)
	}
}

func (c *Client) applyOffer(id string, sdp signal.SDP) {
	p, err := c.ensurePeer(id)
	if err != nil {
		c.notifyError(err)
		return
	}
	c.negotiator.StartDeadline(p)

	if err := c.negotiator.ApplyRemote(p, sdp); err != nil {
		c.failNegotiation(id, err)
		return
	}
	env, err := c.negotiator.MakeAnswer(p, c.state.Name, c.state.RoomID)
	if err != nil {
		c.failNegotiation(id, err)
		return
	}
	if env != nil {
		c.enqueue(*env)
	}
}

func (c *Client) applyAnswer(id string, sdp signal.SDP) {
	p, ok := c.registry.Get(id)
	if !ok {
		c.logger.Warn("answer for unknown peer", "peer", id)
		c.meter.Inc(metrics.EventProtocolAnomaly)
		return
	}
	if err := c.negotiator.ApplyRemote(p, sdp); err != nil {
		c.failNegotiation(id, err)
	}
}

func (c *Client) addCandidate(id string, cand signal.Candidate) {
	p, ok := c.registry.Get(id)
	if !ok {
		c.logger.Warn("candidate for unknown peer", "peer", id)
		c.meter.Inc(metrics.EventProtocolAnomaly)
		return
	}
	if err := c.negotiator.AddCandidate(p, cand); err != nil {
		c.logger.Warn("adding remote candidate", "peer", id, "err", err)
	}
}

// ensurePeer returns the registry entry for id, creating it and attaching
// the local tracks on first use.
func (c *Client) ensurePeer(id string) (*peer.Peer, error) {
	p, err := c.registry.Create(id)
	if err != nil {
		return nil, err
	}
	if err := p.AttachTracks(c.local); err != nil {
		return nil, err
	}
	return p, nil
}

// adoptStream records the peer's remote stream identity and announces it,
// locally and over the channel. A repeat announcement for the same stream is
// a no-op.
func (c *Client) adoptStream(id, streamID string) {
	p, ok := c.registry.Get(id)
	if !ok {
		return
	}
	if p.Stream != nil && p.Stream.ID() == streamID {
		return
	}
	p.Stream = media.NewRemoteStream(id, streamID)
	c.notify(EventNewStream, StreamInfo{PeerID: id, StreamID: streamID})
	c.enqueue(signal.Envelope{
		Event:    signal.EventNewStream,
		ID:       id,
		Room:     c.state.RoomID,
		StreamID: streamID,
	})
}

// removePeer closes and removes the peer, announcing removeStream for every
// removed entry, whether or not a remote stream ever arrived. An empty id
// removes every peer.
func (c *Client) removePeer(id string) {
	ids := []string{id}
	if id == "" {
		ids = c.registry.IDs()
	}
	for _, pid := range ids {
		if _, ok := c.registry.Get(pid); !ok {
			continue
		}
		c.notify(EventRemoveStream, PeerInfo{ID: pid})
		c.registry.Remove(pid)
		c.meter.Inc(metrics.EventPeerRemoved)
	}
}

func (c *Client) failNegotiation(id string, err error) {
	c.meter.Inc(metrics.EventNegotiationFailure)
	c.notifyError(err)
	c.removePeer(id)
}

func (c *Client) failPeer(id, reason string) {
	c.meter.Inc(metrics.EventNegotiationTimeout)
	c.notifyError(&peer.NegotiationError{PeerID: id, Op: "negotiate", Err: errors.New(reason)})
	c.removePeer(id)
}

func (c *Client) notifyError(err error) {
	c.logger.Error("session error", "err", err)
	c.notify(EventError, err)
}
