// Package subscription provides the hub that pushes pending request
// snapshots to subscribed approval UIs.
//
// A subscription is a stream: Subscribe returns the current value, and Next
// yields every later value until the subscription is removed. Each
// subscription has a single-slot mailbox, so bursts of mutations coalesce
// into the latest snapshot while order is preserved.
//
// Lifecycle:
//   - Subscribe: registers under the store's lock, no gap before the first push
//   - Unsubscribe: removes one stream by the caller's message id
//   - Disconnect: removes every stream of a port
//   - Close: removes everything and refuses new subscriptions
package subscription
