// Package broker assembles the request broker and serves every channel.
//
// A Broker owns one pending store per request kind, the subscription hub
// and the decision resolver. It implements channels.Handlers: page requests
// that need the user's decision are queued and block until the approval UI
// approves or cancels them; the UI's channels subscribe to the stores and
// decide through the resolver.
//
// Provider Method Routing (pub(eth.request)):
//   - wallet_addEthereumChain: network-add store
//   - wallet_watchAsset: watch-asset store
//   - personal_sign, eth_sign, eth_signTypedData_v4, eth_sendTransaction: eth signing store
//   - anything else: Forwarder, or UnsupportedMethod without one
//
// Example Usage:
//
//	b := broker.New(broker.Options{Collaborators: collab, Logger: logger})
//	defer b.Close()
//	registry := channels.NewRegistry(b, logger).WithOracle(oracle)
package broker
