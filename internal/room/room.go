// Package room holds the signaling room state and the two pure dispatch
// functions that interpret it: one over inbound channel envelopes, one over
// peer-link events. Both return the successor state plus an ordered effect
// list, so the state machine is unit-testable without a live channel or a
// real peer-link.
package room

import (
	"github.com/pion/webrtc/v4"

	"github.com/mrwaynerp/react-video-conference/internal/signal"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseActive:
		return "active"
	default:
		return "unknown"
	}
}

// State is the room-level view of one participant.
type State struct {
	Phase  Phase
	RoomID string
	OwnID  string
	Name   string

	// Originator marks this participant responsible for initiating the next
	// offer in a negotiation round.
	Originator bool
	// Admin is set when this participant created the room.
	Admin bool
	// ConnectReady is set once at least one far end signaled readiness.
	ConnectReady bool
}

// Effect is one action the executor must take in response to a transition.
type Effect interface{ effect() }

type (
	// NotifyCreatedRoom, NotifyJoinedRoom, NotifyNewJoin and NotifyUserLeave
	// map one-to-one onto the locally dispatched notifications.
	NotifyCreatedRoom struct{ ID, Room string }
	NotifyJoinedRoom  struct{ ID, Room string }
	NotifyNewJoin     struct{}
	NotifyUserLeave   struct{ ID string }

	// NotifyRemoveStream announces a dead remote stream without touching the
	// registry entry (the disconnected/failed path keeps the peer around).
	NotifyRemoveStream struct{ ID string }

	// RemovePeer closes and removes the peer; an empty ID means every peer.
	RemovePeer struct{ ID string }

	// ConnectPeer runs the connect sequence for the peer, creating it first
	// if needed.
	ConnectPeer struct{ ID string }

	// ApplyOffer applies a remote offer and answers it.
	ApplyOffer struct {
		ID  string
		SDP signal.SDP
	}

	// ApplyAnswer applies a remote answer to an existing peer.
	ApplyAnswer struct {
		ID  string
		SDP signal.SDP
	}

	// AddCandidate applies a trickled ICE candidate to an existing peer.
	AddCandidate struct {
		ID        string
		Candidate signal.Candidate
	}

	// SendCandidate forwards a locally discovered candidate to the peer.
	SendCandidate struct {
		ID        string
		Candidate signal.Candidate
	}

	// AdoptStream replaces the registry's stream for the peer if its identity
	// changed, notifying locally and over the channel.
	AdoptStream struct{ ID, StreamID string }

	// ClearDeadline cancels the peer's negotiation deadline.
	ClearDeadline struct{ ID string }

	// FailPeer surfaces a stalled negotiation: error notification, then
	// removal.
	FailPeer struct{ ID, Reason string }

	// Warn records a protocol anomaly; the message is dropped.
	Warn struct{ Reason, PeerID string }

	// ServerLog relays a log event from the signaling server.
	ServerLog struct{ Args []any }
)

func (NotifyCreatedRoom) effect() {}
func (NotifyJoinedRoom) effect() {}
func (NotifyNewJoin) effect() {}
func (NotifyUserLeave) effect() {}
func (NotifyRemoveStream) effect() {}
func (RemovePeer) effect() {}
func (ConnectPeer) effect() {}
func (ApplyOffer) effect() {}
func (ApplyAnswer) effect() {}
func (AddCandidate) effect() {}
func (SendCandidate) effect() {}
func (AdoptStream) effect() {}
func (ClearDeadline) effect() {}
func (FailPeer) effect() {}
func (Warn) effect() {}
func (ServerLog) effect() {}

// Reduce interprets one inbound channel envelope.
func Reduce(s State, env signal.Envelope) (State, []Effect) {
	switch env.Event {
	case signal.EventConnect:
		return s, nil

	case signal.EventLog:
		return s, []Effect{ServerLog{Args: env.Args}}

	case signal.EventCreated:
		s.Phase = PhaseActive
		s.OwnID = env.ID
		s.RoomID = env.Room
		s.Originator = true
		s.Admin = true
		return s, []Effect{NotifyCreatedRoom{ID: env.ID, Room: env.Room}}

	case signal.EventJoined:
		s.Phase = PhaseActive
		s.OwnID = env.ID
		s.RoomID = env.Room
		s.ConnectReady = true
		return s, []Effect{NotifyJoinedRoom{ID: env.ID, Room: env.Room}}

	case signal.EventJoin:
		s.ConnectReady = true
		return s, []Effect{NotifyNewJoin{}}

	case signal.EventReady:
		// Both sides can observe each other's readiness before their own, so
		// "flip when the id differs" alone would make both of them offer.
		// The identifier comparison is the deterministic tie-break.
		if env.ID != s.OwnID {
			s.Originator = s.OwnID < env.ID
		}
		return s, nil

	case signal.EventMessage:
		return reduceSessionMessage(s, env)

	default:
		return s, nil
	}
}

func reduceSessionMessage(s State, env signal.Envelope) (State, []Effect) {
	switch env.Type {
	case signal.MessageLeave:
		// One fewer far end: remaining history may require re-initiating.
		s.Originator = true
		return s, []Effect{
			RemovePeer{ID: env.ID},
			NotifyUserLeave{ID: env.ID},
		}

	case signal.MessageStreamReady:
		return s, []Effect{ConnectPeer{ID: env.ID}}

	case signal.MessageOffer:
		if env.SDP == nil {
			return s, []Effect{Warn{Reason: "offer message missing payload", PeerID: env.ID}}
		}
		return s, []Effect{ApplyOffer{ID: env.ID, SDP: *env.SDP}}

	case signal.MessageAnswer:
		if env.SDP == nil {
			return s, []Effect{Warn{Reason: "answer message missing payload", PeerID: env.ID}}
		}
		return s, []Effect{ApplyAnswer{ID: env.ID, SDP: *env.SDP}}

	case signal.MessageCandidate:
		if env.Candidate == nil {
			return s, []Effect{Warn{Reason: "candidate message missing payload", PeerID: env.ID}}
		}
		return s, []Effect{AddCandidate{ID: env.ID, Candidate: *env.Candidate}}

	default:
		return s, nil
	}
}

// LinkEventKind tags peer-link events.
type LinkEventKind int

const (
	LinkCandidate LinkEventKind = iota
	LinkTrackAdded
	LinkTrackRemoved
	LinkStateChanged
	LinkNegotiationTimeout
)

// LinkEvent is a peer-link reaction, posted onto the machine loop by the
// registry's callbacks.
type LinkEvent struct {
	PeerID string
	Kind   LinkEventKind

	Candidate *signal.Candidate
	StreamID  string
	ConnState webrtc.PeerConnectionState
}

// ReduceLink interprets one peer-link event.
func ReduceLink(s State, ev LinkEvent) (State, []Effect) {
	switch ev.Kind {
	case LinkCandidate:
		if ev.Candidate == nil {
			return s, nil
		}
		return s, []Effect{SendCandidate{ID: ev.PeerID, Candidate: *ev.Candidate}}

	case LinkTrackAdded:
		return s, []Effect{AdoptStream{ID: ev.PeerID, StreamID: ev.StreamID}}

	case LinkTrackRemoved:
		s.Originator = false
		return s, []Effect{RemovePeer{ID: ev.PeerID}}

	case LinkStateChanged:
		switch ev.ConnState {
		case webrtc.PeerConnectionStateConnected:
			return s, []Effect{ClearDeadline{ID: ev.PeerID}}
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed:
			// The entry itself is only removed on explicit leave or
			// track-removal.
			return s, []Effect{NotifyRemoveStream{ID: ev.PeerID}}
		default:
			return s, nil
		}

	case LinkNegotiationTimeout:
		return s, []Effect{FailPeer{ID: ev.PeerID, Reason: "negotiation deadline exceeded"}}

	default:
		return s, nil
	}
}
