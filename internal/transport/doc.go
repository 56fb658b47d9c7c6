// Package transport multiplexes broker channels over long-lived connections.
//
// A connection becomes a port. Inbound envelopes are decoded strictly and
// dispatched concurrently; responses and subscription pushes are written
// back through one writer per port, tagged with the envelope id they answer.
//
// Envelopes:
//
//	-> {"id":"7","message":"pri(eth.signing.requests.subscribe)"}
//	<- {"id":"7","subscription":[...]}   first value
//	<- {"id":"7","response":true}        acknowledgement
//	<- {"id":"7","subscription":[...]}   every later value
//	<- {"id":"8","error":{"code":"request_not_found",...}}
//
// When a port goes away its subscriptions are removed from the hub. Page
// requests it was waiting on stay pending for the approval UI.
//
// Implementations:
//   - ws: WebSocket over gin and gorilla/websocket
//   - nativemsg: Chrome Native Messaging over stdio
package transport
