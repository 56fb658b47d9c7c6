// Package nativemsg implements Chrome Native Messaging framing for broker
// ports. The extension background starts the broker as a native host and
// talks to it over stdio; the port is trusted and relays page origins in
// each envelope.
//
// Messages are length-prefixed JSON: 4 bytes little-endian length, then the
// JSON payload, at most 1MB.
package nativemsg
