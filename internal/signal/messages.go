package signal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pion/webrtc/v4"
)

// Event identifies a channel-level event.
type Event string

const (
	EventConnect Event = "connect"
	EventLog     Event = "log"
	EventCreated Event = "created"
	EventJoined  Event = "joined"
	EventJoin    Event = "join"
	EventReady   Event = "ready"
	EventMessage Event = "message"

	// Outbound-only events.
	EventCreateOrJoin Event = "create or join"
	EventNewStream    Event = "newStream"
)

// MessageType discriminates session-level "message" envelopes.
type MessageType string

const (
	MessageLeave       MessageType = "leave"
	MessageStreamReady MessageType = "stream-ready"
	MessageOffer       MessageType = "offer"
	MessageAnswer      MessageType = "answer"
	MessageCandidate   MessageType = "candidate"
)

type SDP struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

func SDPFromPion(desc webrtc.SessionDescription) *SDP {
	return &SDP{
		Type: desc.Type.String(),
		SDP:  desc.SDP,
	}
}

func (s SDP) ToPion() (webrtc.SessionDescription, error) {
	var t webrtc.SDPType
	switch s.Type {
	case "offer":
		t = webrtc.SDPTypeOffer
	case "answer":
		t = webrtc.SDPTypeAnswer
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("unsupported sdp type %q", s.Type)
	}
	return webrtc.SessionDescription{Type: t, SDP: s.SDP}, nil
}

type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

func CandidateFromPion(init webrtc.ICECandidateInit) *Candidate {
	return &Candidate{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

func (c Candidate) ToPion() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

// Envelope is the single wire shape for every channel event, inbound and
// outbound. Fields are populated per Event; Validate enforces the per-event
// shape for inbound traffic.
type Envelope struct {
	Event Event  `json:"event"`
	ID    string `json:"id,omitempty"`
	Room  string `json:"room,omitempty"`
	Name  string `json:"name,omitempty"`
	ToID  string `json:"toId,omitempty"`

	// Session-level message payload.
	Type      MessageType `json:"type,omitempty"`
	SDP       *SDP        `json:"sdp,omitempty"`
	Candidate *Candidate  `json:"candidate,omitempty"`

	// newStream payload: the remote media stream identifier.
	StreamID string `json:"stream,omitempty"`

	// log payload.
	Args []any `json:"args,omitempty"`
}

// ParseEnvelope decodes and validates one inbound channel event.
func ParseEnvelope(data []byte) (Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, err
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Envelope{}, fmt.Errorf("unexpected trailing data")
	}
	return env, nil
}

// Validate checks the per-event envelope shape.
//
// Session-level "message" envelopes with an unrecognized Type pass
// validation: they must still reach the state machine, which ignores them. A
// candidate message with a missing payload also passes for the same reason
// (the machine logs and drops it as a protocol anomaly).
func (e Envelope) Validate() error {
	switch e.Event {
	case EventConnect, EventJoin, EventLog:
		// No required payload.
	case EventCreated, EventJoined:
		if e.ID == "" {
			return fmt.Errorf("%s event missing id", e.Event)
		}
		if e.Room == "" {
			return fmt.Errorf("%s event missing room", e.Event)
		}
	case EventReady:
		if e.ID == "" {
			return fmt.Errorf("ready event missing id")
		}
	case EventMessage:
		if e.ID == "" {
			return fmt.Errorf("message envelope missing peer id")
		}
		if e.Type == "" {
			return fmt.Errorf("message envelope missing type")
		}
		switch e.Type {
		case MessageOffer:
			if e.SDP == nil {
				return fmt.Errorf("offer message missing sdp")
			}
			if e.SDP.Type != "offer" {
				return fmt.Errorf("offer message has sdp.type=%q", e.SDP.Type)
			}
		case MessageAnswer:
			if e.SDP == nil {
				return fmt.Errorf("answer message missing sdp")
			}
			if e.SDP.Type != "answer" {
				return fmt.Errorf("answer message has sdp.type=%q", e.SDP.Type)
			}
		}
	default:
		return fmt.Errorf("unsupported event %q", e.Event)
	}
	return nil
}
