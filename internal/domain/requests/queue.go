package requests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/walletbroker/internal/shared/errs"
	"github.com/GriffinCanCode/walletbroker/internal/shared/id"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

// DedupKeyFunc derives the duplicate-detection key of a candidate request.
// Two unresolved requests with the same non-empty key are the same request.
type DedupKeyFunc[T any] func(url string, payload T) string

// ViewFunc renders an entry for subscribers and list queries
type ViewFunc[T any] func(types.PendingRequest[T]) types.View

// Publisher receives a snapshot after every mutation of a queue.
// Publish is called while the queue lock is held and must not block
// or call back into the queue.
type Publisher interface {
	Publish(types.Snapshot)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(types.Snapshot)

func (f PublisherFunc) Publish(s types.Snapshot) { f(s) }

// ResolveFunc observes a resolved request: how many callers it answered
// and the error they received, nil on approval. It runs outside the queue
// lock.
type ResolveFunc func(kind types.RequestKind, requestID string, waiters int, err error)

// Config configures a Queue
type Config[T any] struct {
	Kind     types.RequestKind
	View     ViewFunc[T]
	DedupKey DedupKeyFunc[T]  // nil disables dedup
	NewID    func() string    // defaults to id.NewRequestID
	Clock    func() time.Time // defaults to time.Now
}

// Queue is the ordered pending collection of one request kind.
//
// Every entry is resolved exactly once: by Approve, by Cancel or by Close.
// Resolution removes the entry atomically under the queue lock, so of two
// racing decisions on the same ID the loser gets errs.ErrRequestNotFound.
type Queue[T any] struct {
	cfg Config[T]

	mu         sync.Mutex
	order      []*entry[T] // oldest first
	byID       map[string]*entry[T]
	byKey      map[string]*entry[T]
	version    uint64
	closed     bool
	publishers []Publisher
	resolved   []ResolveFunc
}

type entry[T any] struct {
	req     types.PendingRequest[T]
	waiters int // Protected by the queue lock
	done    chan struct{}
	value   any
	err     error
}

// Ticket is a caller's handle on its deferred result
type Ticket struct {
	ID string
	// Deduplicated is true when the candidate joined an existing request
	Deduplicated bool

	done   <-chan struct{}
	result func() (any, error)
}

// Wait blocks until the request is resolved or ctx ends. A ctx ending does
// not resolve the request; it stays pending for the approval UI.
func (t *Ticket) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the request is resolved
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// NewQueue creates an empty queue
func NewQueue[T any](cfg Config[T]) *Queue[T] {
	if cfg.NewID == nil {
		cfg.NewID = func() string { return id.NewRequestID().String() }
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Queue[T]{
		cfg:   cfg,
		byID:  make(map[string]*entry[T]),
		byKey: make(map[string]*entry[T]),
	}
}

// Kind returns the request kind this queue holds
func (q *Queue[T]) Kind() types.RequestKind {
	return q.cfg.Kind
}

// AddPublisher registers p for every subsequent mutation
func (q *Queue[T]) AddPublisher(p Publisher) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.publishers = append(q.publishers, p)
}

// OnResolve registers fn for every subsequent resolution
func (q *Queue[T]) OnResolve(fn ResolveFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.resolved = append(q.resolved, fn)
}

// Enqueue inserts a candidate at the end of the queue, or joins an
// equivalent unresolved request when the dedup key matches one.
func (q *Queue[T]) Enqueue(url string, payload T) (*Ticket, error) {
	if url == "" {
		return nil, errs.Shape("%s request without caller url", q.cfg.Kind)
	}

	var key string
	if q.cfg.DedupKey != nil {
		key = q.cfg.DedupKey(url, payload)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, errs.ErrBrokerClosed
	}

	if key != "" {
		if existing, ok := q.byKey[key]; ok {
			existing.waiters++
			return existing.ticket(true), nil
		}
	}

	e := &entry[T]{
		req: types.PendingRequest[T]{
			ID:        q.cfg.NewID(),
			URL:       url,
			Key:       key,
			Payload:   payload,
			CreatedAt: q.cfg.Clock(),
		},
		waiters: 1,
		done:    make(chan struct{}),
	}

	q.order = append(q.order, e)
	q.byID[e.req.ID] = e
	if key != "" {
		q.byKey[key] = e
	}
	q.publishLocked()

	return e.ticket(false), nil
}

// Approve removes the entry, runs fn with it and resolves every waiter with
// fn's result. If fn fails the waiters are rejected with a collaborator
// failure carrying fn's error verbatim; the entry is not requeued.
//
// fn runs on a context that keeps ctx's values but not its cancellation:
// once removed, the entry must be resolved by fn's outcome even if the
// deciding caller goes away.
func (q *Queue[T]) Approve(ctx context.Context, requestID string, fn func(context.Context, types.PendingRequest[T]) (any, error)) (any, error) {
	e, err := q.take(requestID)
	if err != nil {
		return nil, err
	}

	value, err := fn(context.WithoutCancel(ctx), e.req)
	if err != nil {
		err = errs.Collaborator(string(q.cfg.Kind), err)
		q.settle(e, nil, err)
		return nil, err
	}

	q.settle(e, value, nil)
	return value, nil
}

// Cancel removes the entry and rejects every waiter with a user rejection
func (q *Queue[T]) Cancel(requestID string) error {
	e, err := q.take(requestID)
	if err != nil {
		return err
	}
	q.settle(e, nil, errs.ErrUserRejected)
	return nil
}

// Get returns the entry with the given ID
func (q *Queue[T]) Get(requestID string) (types.PendingRequest[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.byID[requestID]
	if !ok {
		return types.PendingRequest[T]{}, fmt.Errorf("%s %s: %w", q.cfg.Kind, requestID, errs.ErrRequestNotFound)
	}
	return e.req, nil
}

// List returns the pending entries, oldest first
func (q *Queue[T]) List() []types.PendingRequest[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]types.PendingRequest[T], len(q.order))
	for i, e := range q.order {
		out[i] = e.req
	}
	return out
}

// Views returns the caller-facing rendering of List
func (q *Queue[T]) Views() []types.View {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.viewsLocked()
}

// Len returns the number of pending entries
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Current runs fn with the current snapshot while holding the queue lock,
// so no mutation can slip between reading the snapshot and whatever fn
// registers.
func (q *Queue[T]) Current(fn func(types.Snapshot)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	fn(q.snapshotLocked())
}

// Close rejects every pending entry (implicit cancel-all) and refuses
// further enqueues.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	pending := q.order
	q.order = nil
	q.byID = make(map[string]*entry[T])
	q.byKey = make(map[string]*entry[T])
	if len(pending) > 0 {
		q.publishLocked()
	}
	q.mu.Unlock()

	for _, e := range pending {
		q.settle(e, nil, fmt.Errorf("%w: %w", errs.ErrUserRejected, errs.ErrBrokerClosed))
	}
}

// take is the single check-and-remove step shared by every decision
func (q *Queue[T]) take(requestID string) (*entry[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.byID[requestID]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", q.cfg.Kind, requestID, errs.ErrRequestNotFound)
	}

	delete(q.byID, requestID)
	if e.req.Key != "" {
		delete(q.byKey, e.req.Key)
	}
	for i, candidate := range q.order {
		if candidate == e {
			q.order = append(q.order[:i:i], q.order[i+1:]...)
			break
		}
	}
	q.publishLocked()

	return e, nil
}

func (q *Queue[T]) publishLocked() {
	q.version++
	if len(q.publishers) == 0 {
		return
	}
	snap := q.snapshotLocked()
	for _, p := range q.publishers {
		p.Publish(snap)
	}
}

func (q *Queue[T]) snapshotLocked() types.Snapshot {
	return types.Snapshot{
		Kind:    q.cfg.Kind,
		Version: q.version,
		Items:   q.viewsLocked(),
	}
}

func (q *Queue[T]) viewsLocked() []types.View {
	views := make([]types.View, len(q.order))
	for i, e := range q.order {
		views[i] = q.cfg.View(e.req)
	}
	return views
}

func (e *entry[T]) ticket(dedup bool) *Ticket {
	return &Ticket{
		ID:           e.req.ID,
		Deduplicated: dedup,
		done:         e.done,
		result: func() (any, error) {
			return e.value, e.err
		},
	}
}

// settle resolves e and reports it; e must already have left the queue
func (q *Queue[T]) settle(e *entry[T], value any, err error) {
	q.mu.Lock()
	hooks := q.resolved
	waiters := e.waiters
	q.mu.Unlock()

	e.resolve(value, err)
	for _, fn := range hooks {
		fn(q.cfg.Kind, e.req.ID, waiters, err)
	}
}

// resolve must be called exactly once, after the entry left the queue
func (e *entry[T]) resolve(value any, err error) {
	e.value = value
	e.err = err
	close(e.done)
}

// IsNotFound reports whether err is a stale or duplicate decision
func IsNotFound(err error) bool {
	return errors.Is(err, errs.ErrRequestNotFound)
}
