// Package stream fans out live ballot activity to SSE subscribers.
// Events carry the election and candidate only; voter identity never
// leaves the ledger.
package stream

import (
	"context"
	"sync"
	"time"
)

// BallotEvent describes one accepted ballot for live dashboards.
type BallotEvent struct {
	ElectionID      uint64    `json:"election_id"`
	CandidateNumber uint32    `json:"candidate_number"`
	Timestamp       time.Time `json:"timestamp"`
}

// Stream fan-outs ballot events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan BallotEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan BallotEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan BallotEvent {
	ch := make(chan BallotEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt BallotEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// PublishBallot is a convenience wrapper stamping the event time.
func (s *Stream) PublishBallot(electionID uint64, candidateNumber uint32) {
	s.Publish(BallotEvent{
		ElectionID:      electionID,
		CandidateNumber: candidateNumber,
		Timestamp:       time.Now().UTC(),
	})
}
