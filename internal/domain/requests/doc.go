// Package requests provides the pending request stores of the broker.
//
// Each request kind (network-add, watch-asset, eth-signing and the
// generalized signing queue) is a Queue[T] holding its entries oldest first.
// Callers receive a Ticket and wait on it; the approval UI resolves the entry
// through Approve or Cancel.
//
// Resolution Rules:
//   - An entry is resolved exactly once, by Approve, Cancel or Close
//   - Removal happens before any collaborator runs
//   - A second decision on the same ID fails with errs.ErrRequestNotFound
//   - Deduplicated callers share the entry and resolve together
//
// Example Usage:
//
//	q := requests.NewNetworkQueue(requests.DefaultNetworkKey)
//	ticket, err := q.Enqueue("https://app.example", params)
//	result, err := ticket.Wait(ctx)
//
//	// elsewhere, from the approval UI
//	_, err = q.Approve(ctx, ticket.ID, addNetwork)
package requests
