package peer

import (
	"log/slog"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/mrwaynerp/react-video-conference/internal/room"
	"github.com/mrwaynerp/react-video-conference/internal/signal"
)

// DefaultNegotiationTimeout bounds how long a peer may negotiate before it is
// failed and cleaned up.
const DefaultNegotiationTimeout = 30 * time.Second

// Negotiator drives the offer/answer/candidate exchange on peer links. Every
// step takes the peer's negotiation lock, so overlapping cycles for the same
// identifier are sequenced instead of racing.
type Negotiator struct {
	logger  *slog.Logger
	timeout time.Duration
	sink    func(room.LinkEvent)
}

func NewNegotiator(timeout time.Duration, sink func(room.LinkEvent), logger *slog.Logger) *Negotiator {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultNegotiationTimeout
	}
	return &Negotiator{
		logger:  logger,
		timeout: timeout,
		sink:    sink,
	}
}

// MakeOffer creates an offer, sets it locally and returns the outbound
// message envelope.
//
// A nil envelope with a nil error means the step was suppressed as the benign
// duplicate-attempt race: the link was still in state "new" when the local
// description failed, so another negotiation for the same peer already won.
func (n *Negotiator) MakeOffer(p *Peer, name, roomID string) (*signal.Envelope, error) {
	return n.makeDescription(p, name, roomID, signal.MessageOffer)
}

// MakeAnswer creates an answer for a previously applied remote offer.
func (n *Negotiator) MakeAnswer(p *Peer, name, roomID string) (*signal.Envelope, error) {
	return n.makeDescription(p, name, roomID, signal.MessageAnswer)
}

func (n *Negotiator) makeDescription(p *Peer, name, roomID string, kind signal.MessageType) (*signal.Envelope, error) {
	p.negMu.Lock()
	defer p.negMu.Unlock()

	var (
		desc webrtc.SessionDescription
		err  error
		op   string
	)
	if kind == signal.MessageOffer {
		desc, err = p.Link.CreateOffer()
		op = "create offer"
	} else {
		desc, err = p.Link.CreateAnswer()
		op = "create answer"
	}
	if err == nil {
		op = "set local description"
		err = p.Link.SetLocalDescription(desc)
	}
	if err != nil {
		if p.Link.ConnectionState() == webrtc.PeerConnectionStateNew {
			n.logger.Debug("suppressing duplicate negotiation attempt", "peer", p.ID, "op", op, "err", err)
			return nil, nil
		}
		return nil, &NegotiationError{PeerID: p.ID, Op: op, Err: err}
	}

	return &signal.Envelope{
		Event: signal.EventMessage,
		ToID:  p.ID,
		Name:  name,
		Room:  roomID,
		Type:  kind,
		SDP:   signal.SDPFromPion(desc),
	}, nil
}

// ApplyRemote sets the far end's description on the link.
func (n *Negotiator) ApplyRemote(p *Peer, sdp signal.SDP) error {
	desc, err := sdp.ToPion()
	if err != nil {
		return &NegotiationError{PeerID: p.ID, Op: "parse remote description", Err: err}
	}

	p.negMu.Lock()
	defer p.negMu.Unlock()
	if err := p.Link.SetRemoteDescription(desc); err != nil {
		return &NegotiationError{PeerID: p.ID, Op: "set remote description", Err: err}
	}
	return nil
}

// AddCandidate applies a trickled candidate.
func (n *Negotiator) AddCandidate(p *Peer, cand signal.Candidate) error {
	p.negMu.Lock()
	defer p.negMu.Unlock()
	return p.Link.AddICECandidate(cand.ToPion())
}

// StartDeadline arms (or re-arms) the peer's negotiation deadline. When it
// fires, a timeout event is posted onto the machine loop; the peer is failed
// and cleaned up there, never from the timer goroutine.
func (n *Negotiator) StartDeadline(p *Peer) {
	p.clearDeadline()
	id := p.ID
	p.deadline = time.AfterFunc(n.timeout, func() {
		n.sink(room.LinkEvent{PeerID: id, Kind: room.LinkNegotiationTimeout})
	})
}

// ClearDeadline disarms the deadline, normally on transition to connected.
func (n *Negotiator) ClearDeadline(p *Peer) {
	p.clearDeadline()
}
