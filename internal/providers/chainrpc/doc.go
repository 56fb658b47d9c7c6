// Package chainrpc talks to Ethereum JSON-RPC nodes, one endpoint per chain.
//
// The Client is both the Broadcaster that submits signed transactions
// (eth_sendRawTransaction) and the Forwarder that answers read-only provider
// methods the broker does not handle itself. Only methods in the read-only
// allowlist are forwarded; anything that could move funds or change node
// state is refused with ErrUnsupportedMethod.
//
// Connections are dialled lazily with go-ethereum's rpc package and reused.
// Endpoints come from configuration, and networks the user approves can add
// endpoints for chains that have none.
package chainrpc
