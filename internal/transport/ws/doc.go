// Package ws serves broker ports over WebSocket.
//
// The Origin header decides trust: the approval UI's origins get trusted
// ports, every other origin is treated as a page and limited to public
// channels and a smaller frame size.
package ws
