// Package signer provides a Signer that delegates to a remote signing
// service over HTTP.
//
// The service owns keys and fee policy. The client POSTs the unsigned
// payload to {URL}/sign and expects {"signature": "..."} back; an error
// response {"error": "..."} is returned verbatim so the approval UI can show
// what the signer said. Nothing is retried: a signature request is not
// idempotent from the user's point of view.
package signer
