// Package types provides shared data structures for the request broker.
//
// This package defines the wire and domain types used across the channel
// registry, the pending request stores, the subscription hub and the
// transports.
//
// Core Types:
//   - PendingRequest: an in-flight request owned by a store
//   - NetworkAddRequest: EIP-3085 wallet_addEthereumChain request
//   - WatchAssetRequest: EIP-747 wallet_watchAsset request
//   - SigningRequest: a signing request for either ledger family
//   - Snapshot: versioned copy of a store's pending collection
//
// Wire Types:
//   - Inbound: {id, message, origin, request} from a caller
//   - Outbound: {id, response | subscription | error} to a caller
//
// Example Usage:
//
//	var in types.Inbound
//	if err := codec.UnmarshalStrict(data, &in); err != nil { ... }
//	channel := types.ChannelName(in.Message)
package types
