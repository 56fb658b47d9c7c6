package types

import "time"

// PendingRequest is an in-flight request owned by a pending request store.
// Stores never mutate an entry; resolution removes it.
type PendingRequest[T any] struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Key       string    `json:"-"` // dedup key, empty when the kind does not dedup
	Payload   T         `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
}

// View is the caller-facing rendering of one item of an observable
// collection, usually a pending request
type View interface {
	RequestID() string
}

// Snapshot is a versioned copy of one kind's pending collection, oldest first.
// Versions increase by one per mutation of that kind.
type Snapshot struct {
	Kind    RequestKind `json:"kind"`
	Version uint64      `json:"version"`
	Items   []View      `json:"items"`
}

// Find returns the item with the given request ID
func (s Snapshot) Find(id string) (View, bool) {
	for _, item := range s.Items {
		if item.RequestID() == id {
			return item, true
		}
	}
	return nil, false
}

// RequestIDOnly is the payload of approve/cancel/by-id channels
type RequestIDOnly struct {
	ID string `json:"id" validate:"required"`
}

// None is the payload of channels that take no arguments
type None struct{}
