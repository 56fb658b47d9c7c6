package subscription

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/walletbroker/internal/shared/errs"
	"github.com/GriffinCanCode/walletbroker/internal/shared/id"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

var (
	// ErrClosed is returned by Next after Unsubscribe, Disconnect or Close
	ErrClosed = errors.New("subscription closed")
	// ErrEnded is returned by Next once a by-id subscription's item is gone
	ErrEnded = errors.New("subscription ended")
)

// Source is a pending collection a subscriber can observe.
// Current must run fn while holding the collection's lock.
type Source interface {
	Kind() types.RequestKind
	Current(fn func(types.Snapshot))
}

// Hub fans snapshots of each request kind out to its subscribers.
//
// Publish is called by the stores while they hold their own lock; the hub
// never calls back into a store, so the lock order is always store then hub.
type Hub struct {
	mu      sync.RWMutex
	byKind  map[types.RequestKind]map[id.SubscriptionID]*Subscription // Protected by mu
	byPort  map[id.PortID]map[string]*Subscription                    // Protected by mu
	count   int                                                       // Protected by mu
	closed  bool                                                      // Protected by mu
	metrics *monitoring.Metrics
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		byKind: make(map[types.RequestKind]map[id.SubscriptionID]*Subscription),
		byPort: make(map[id.PortID]map[string]*Subscription),
	}
}

// WithMetrics adds metrics tracking to the hub
func (h *Hub) WithMetrics(metrics *monitoring.Metrics) *Hub {
	h.metrics = metrics
	return h
}

// Subscribe registers a subscription on port, correlated by the caller's
// messageID, and returns it along with the filtered initial snapshot.
// Registration and the initial read happen under the source's lock, so the
// first value from Next is strictly newer than the initial one.
func (h *Hub) Subscribe(src Source, port id.PortID, messageID string, filter Filter) (*Subscription, any, error) {
	if filter == nil {
		filter = All
	}

	var (
		sub     *Subscription
		initial any
		err     error
	)
	src.Current(func(snap types.Snapshot) {
		value, ok := filter(snap)
		if !ok {
			err = fmt.Errorf("%s subscription: %w", snap.Kind, errs.ErrRequestNotFound)
			return
		}
		sub, err = h.register(src.Kind(), port, messageID, filter, snap.Version)
		initial = value
	})
	if err != nil {
		return nil, nil, err
	}
	return sub, initial, nil
}

func (h *Hub) register(kind types.RequestKind, port id.PortID, messageID string, filter Filter, version uint64) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errs.ErrBrokerClosed
	}
	if _, dup := h.byPort[port][messageID]; dup {
		return nil, errs.Shape("subscription %q already active on this port", messageID)
	}

	sub := newSubscription(h, kind, port, messageID, filter, version)

	if h.byKind[kind] == nil {
		h.byKind[kind] = make(map[id.SubscriptionID]*Subscription)
	}
	h.byKind[kind][sub.ID] = sub
	if h.byPort[port] == nil {
		h.byPort[port] = make(map[string]*Subscription)
	}
	h.byPort[port][messageID] = sub
	h.count++
	h.reportLocked()

	return sub, nil
}

// Publish offers snap to every subscriber of its kind. It never blocks.
func (h *Hub) Publish(snap types.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.byKind[snap.Kind] {
		sub.offer(snap)
	}
}

// Unsubscribe removes the subscription created by messageID on port
func (h *Hub) Unsubscribe(port id.PortID, messageID string) bool {
	h.mu.Lock()
	sub, ok := h.byPort[port][messageID]
	if ok {
		h.removeLocked(sub)
	}
	h.mu.Unlock()

	if ok {
		sub.close()
	}
	return ok
}

// Disconnect removes every subscription held by port
func (h *Hub) Disconnect(port id.PortID) int {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.byPort[port]))
	for _, sub := range h.byPort[port] {
		subs = append(subs, sub)
	}
	for _, sub := range subs {
		h.removeLocked(sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	return len(subs)
}

// Close removes every subscription and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var subs []*Subscription
	for _, byID := range h.byKind {
		for _, sub := range byID {
			subs = append(subs, sub)
		}
	}
	for _, sub := range subs {
		h.removeLocked(sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// Count returns the number of live subscriptions
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// CountPort returns the number of live subscriptions held by port
func (h *Hub) CountPort(port id.PortID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byPort[port])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	h.removeLocked(sub)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(sub *Subscription) {
	if _, ok := h.byKind[sub.Kind][sub.ID]; !ok {
		return
	}
	delete(h.byKind[sub.Kind], sub.ID)
	if len(h.byKind[sub.Kind]) == 0 {
		delete(h.byKind, sub.Kind)
	}
	delete(h.byPort[sub.Port], sub.MessageID)
	if len(h.byPort[sub.Port]) == 0 {
		delete(h.byPort, sub.Port)
	}
	h.count--
	h.reportLocked()
}

func (h *Hub) reportLocked() {
	if h.metrics != nil {
		h.metrics.SetSubscriptionsActive(h.count)
	}
}
