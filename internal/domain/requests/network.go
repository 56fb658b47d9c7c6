package requests

import (
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
	"github.com/GriffinCanCode/walletbroker/internal/shared/utils"
)

// NetworkQueue holds pending wallet_addEthereumChain requests
type NetworkQueue = Queue[types.AddEthereumChainParameter]

// Dedup strategies for network-add requests, selectable by name in config
const (
	DedupOriginChain = "origin_chain"
	DedupChainRPCs   = "chain_rpcs"
	DedupNone        = "none"
)

// DefaultNetworkKey treats two requests from the same origin host for the
// same chain as one, whatever their RPC lists or display names say
func DefaultNetworkKey(url string, p types.AddEthereumChainParameter) string {
	chain := utils.NormalizeChainID(p.ChainID)
	host := utils.OriginHost(url)
	if chain == "" || host == "" {
		return ""
	}
	return host + ":" + chain
}

// ChainAndRPCKey treats requests as equal when they name the same chain and
// the same set of RPC endpoints, regardless of the requesting origin
func ChainAndRPCKey(hasher *utils.Hasher) DedupKeyFunc[types.AddEthereumChainParameter] {
	return func(_ string, p types.AddEthereumChainParameter) string {
		chain := utils.NormalizeChainID(p.ChainID)
		if chain == "" {
			return ""
		}
		return chain + ":" + hasher.HashFields(p.RPCURLs...)
	}
}

// NetworkDedup resolves a strategy name to its key function.
// Unknown names fall back to DefaultNetworkKey.
func NetworkDedup(name string) DedupKeyFunc[types.AddEthereumChainParameter] {
	switch name {
	case DedupNone:
		return nil
	case DedupChainRPCs:
		return ChainAndRPCKey(utils.DefaultHasher())
	default:
		return DefaultNetworkKey
	}
}

// NewNetworkQueue creates the network-add queue with the given dedup key
func NewNetworkQueue(dedup DedupKeyFunc[types.AddEthereumChainParameter]) *NetworkQueue {
	return NewQueue(Config[types.AddEthereumChainParameter]{
		Kind:     types.KindNetworkAdd,
		View:     networkView,
		DedupKey: dedup,
	})
}

func networkView(r types.PendingRequest[types.AddEthereumChainParameter]) types.View {
	idStr := r.Key
	if idStr == "" {
		idStr = r.ID
	}
	return types.NetworkAddRequest{
		ID:        r.ID,
		IDStr:     idStr,
		URL:       r.URL,
		Network:   r.Payload,
		CreatedAt: r.CreatedAt,
	}
}
