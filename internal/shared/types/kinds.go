package types

// RequestKind names one pending request collection
type RequestKind string

const (
	KindNetworkAdd RequestKind = "eth.networks.add"
	KindWatchAsset RequestKind = "eth.watchasset"
	KindEthSigning RequestKind = "eth.signing"
	KindSigning    RequestKind = "signing" // generalized "any request" queue

	// KindNetworks is the collection of known networks. It can be
	// subscribed to like a pending kind but never holds requests.
	KindNetworks RequestKind = "eth.networks"
)

// Kinds lists every request kind in a stable order
func Kinds() []RequestKind {
	return []RequestKind{KindNetworkAdd, KindWatchAsset, KindEthSigning, KindSigning}
}

// ChainScope identifies the ledger family a signing request belongs to
type ChainScope string

const (
	ScopeEthereum  ChainScope = "ethereum"
	ScopeSubstrate ChainScope = "substrate"
)
