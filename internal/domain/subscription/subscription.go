package subscription

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/walletbroker/internal/shared/id"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

// Filter projects a snapshot to the value pushed to one subscriber.
// Returning false ends the subscription.
type Filter func(types.Snapshot) (any, bool)

// All pushes the whole collection
func All(snap types.Snapshot) (any, bool) {
	items := snap.Items
	if items == nil {
		items = []types.View{}
	}
	return items, true
}

// ByID pushes a single item and ends once it leaves the collection
func ByID(requestID string) Filter {
	return func(snap types.Snapshot) (any, bool) {
		return snap.Find(requestID)
	}
}

// Subscription is one subscribe call's stream of snapshots.
//
// The mailbox holds at most one snapshot: a newer version replaces an
// undelivered older one, and versions at or below the last accepted one
// are dropped, so values come out coalesced but never reordered.
type Subscription struct {
	ID        id.SubscriptionID
	Kind      types.RequestKind
	Port      id.PortID
	MessageID string

	hub    *Hub
	filter Filter

	mu      sync.Mutex
	pending *types.Snapshot // Protected by mu
	seen    uint64          // Protected by mu, highest accepted version

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscription(h *Hub, kind types.RequestKind, port id.PortID, messageID string, filter Filter, version uint64) *Subscription {
	return &Subscription{
		ID:        id.NewSubscriptionID(),
		Kind:      kind,
		Port:      port,
		MessageID: messageID,
		hub:       h,
		filter:    filter,
		seen:      version,
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Next blocks until a newer snapshot is available and returns its filtered
// value. It returns ErrClosed after unsubscribe or disconnect, ErrEnded when
// the filter ends the stream, or ctx's error.
func (s *Subscription) Next(ctx context.Context) (any, error) {
	for {
		select {
		case <-s.done:
			return nil, ErrClosed
		default:
		}

		s.mu.Lock()
		snap := s.pending
		s.pending = nil
		s.mu.Unlock()

		if snap != nil {
			value, ok := s.filter(*snap)
			if !ok {
				s.hub.remove(s)
				s.close()
				return nil, ErrEnded
			}
			return value, nil
		}

		select {
		case <-s.notify:
		case <-s.done:
			return nil, ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Done is closed when the subscription is removed
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Unsubscribe removes the subscription from its hub
func (s *Subscription) Unsubscribe() {
	s.hub.remove(s)
	s.close()
}

func (s *Subscription) offer(snap types.Snapshot) {
	s.mu.Lock()
	if snap.Version <= s.seen {
		s.mu.Unlock()
		return
	}
	s.seen = snap.Version
	s.pending = &snap
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
