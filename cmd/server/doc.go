// Package main is the entry point of the wallet request broker.
//
// The broker sits between untrusted page callers and the trusted approval
// UI. Pages ask for signatures, networks and tokens; the UI subscribes to
// what is pending and decides.
//
// Transports:
//   - HTTP: WebSocket ports at /ws, plus /health, /stats and /metrics
//   - Native messaging: one trusted port on stdio, used when the browser
//     starts the binary as a native host
//
// Configuration:
//   - Environment variables (12-factor), see internal/infrastructure/config
//   - CLI flags (override env vars)
//
// Usage:
//
//	# HTTP mode
//	./server -port 8000 -grants grants.yaml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
//	# Native host (normally started by the browser)
//	./server -native
//
// Signals:
//   - SIGINT, SIGTERM: reject pending requests and shut down
//   - SIGHUP: reload the grants file
package main
