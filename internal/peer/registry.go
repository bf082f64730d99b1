package peer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/mrwaynerp/react-video-conference/internal/media"
	"github.com/mrwaynerp/react-video-conference/internal/room"
	"github.com/mrwaynerp/react-video-conference/internal/signal"
)

// Peer is one registry entry: a far-end participant and the link carrying its
// media.
type Peer struct {
	ID   string
	Link Link

	// Stream is the current remote stream, nil until the first track arrives.
	Stream *media.RemoteStream

	// negMu serializes offer/answer cycles for this peer so interleaved
	// negotiation attempts cannot race on the same link.
	negMu sync.Mutex

	// deadline fails the peer when negotiation stalls.
	deadline *time.Timer

	tracksAttached bool
}

// AttachTracks adds the local stream's tracks to the link once. Repeat calls
// are no-ops so reconnect attempts cannot duplicate senders.
func (p *Peer) AttachTracks(stream *media.LocalStream) error {
	if p.tracksAttached || stream == nil {
		return nil
	}
	for _, t := range stream.Tracks() {
		if err := p.Link.AddTrack(t); err != nil {
			return fmt.Errorf("attach track %s: %w", t.ID(), err)
		}
	}
	p.tracksAttached = true
	return nil
}

func (p *Peer) clearDeadline() {
	if p.deadline != nil {
		p.deadline.Stop()
		p.deadline = nil
	}
}

// Registry is the keyed peer collection. It is an explicit map, never a
// dynamic property bag, so identifiers cannot collide with reserved names
// and bulk iteration/removal is safe.
//
// The registry is mutated only from the machine loop and is deliberately
// unlocked; link callbacks run on pion goroutines but only post events
// through sink, they never touch the registry directly.
type Registry struct {
	logger  *slog.Logger
	factory LinkFactory
	sink    func(room.LinkEvent)

	peers map[string]*Peer
}

func NewRegistry(factory LinkFactory, sink func(room.LinkEvent), logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger,
		factory: factory,
		sink:    sink,
		peers:   make(map[string]*Peer),
	}
}

func (r *Registry) Get(id string) (*Peer, bool) {
	p, ok := r.peers[id]
	return p, ok
}

func (r *Registry) Count() int { return len(r.peers) }

func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	return ids
}

// Create allocates a link for id and wires its four reactions onto the
// machine loop. A duplicate create warns and returns the existing entry
// untouched.
func (r *Registry) Create(id string) (*Peer, error) {
	if p, ok := r.peers[id]; ok {
		r.logger.Warn("peer already exists", "peer", id)
		return p, nil
	}

	link, err := r.factory.NewLink()
	if err != nil {
		return nil, err
	}

	p := &Peer{ID: id, Link: link}

	link.OnLocalCandidate(func(init webrtc.ICECandidateInit) {
		r.sink(room.LinkEvent{
			PeerID:    id,
			Kind:      room.LinkCandidate,
			Candidate: signal.CandidateFromPion(init),
		})
	})
	link.OnRemoteTrack(func(streamID string) {
		r.sink(room.LinkEvent{PeerID: id, Kind: room.LinkTrackAdded, StreamID: streamID})
	})
	link.OnRemoteTrackEnded(func(streamID string) {
		r.sink(room.LinkEvent{PeerID: id, Kind: room.LinkTrackRemoved, StreamID: streamID})
	})
	link.OnStateChange(func(state webrtc.PeerConnectionState) {
		r.sink(room.LinkEvent{PeerID: id, Kind: room.LinkStateChanged, ConnState: state})
	})

	r.peers[id] = p
	return p, nil
}

// Remove closes and removes the matching peer and its stream entry. An empty
// id is the bulk teardown path: every peer is closed and the stream table
// cleared.
func (r *Registry) Remove(id string) {
	if id == "" {
		for pid, p := range r.peers {
			r.closePeer(p)
			delete(r.peers, pid)
		}
		return
	}

	p, ok := r.peers[id]
	if !ok {
		return
	}
	r.closePeer(p)
	delete(r.peers, id)
}

func (r *Registry) closePeer(p *Peer) {
	p.clearDeadline()
	p.Stream = nil
	if err := p.Link.Close(); err != nil {
		r.logger.Warn("closing peer link", "peer", p.ID, "err", err)
	}
}
