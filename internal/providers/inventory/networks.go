package inventory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
	"github.com/GriffinCanCode/walletbroker/internal/shared/utils"
)

// Networks stores user networks by chain id. Adding a chain that already
// exists replaces it. The list is observable: it publishes versioned
// snapshots of kind types.KindNetworks.
type Networks struct {
	mu         sync.RWMutex
	byChain    map[int64]types.CustomEvmNetwork // Protected by mu
	version    uint64                           // Protected by mu
	publishers []func(types.Snapshot)           // Protected by mu
	onAdd      []func(types.CustomEvmNetwork)   // Protected by mu
	onRemove   []func(chainID int64)            // Protected by mu
	logger     *logging.Logger
}

// NewNetworks creates an empty network registry
func NewNetworks(logger *logging.Logger) *Networks {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Networks{
		byChain: make(map[int64]types.CustomEvmNetwork),
		logger:  logger.Named("networks"),
	}
}

// OnAdd registers fn to run after each added or replaced network
func (n *Networks) OnAdd(fn func(types.CustomEvmNetwork)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onAdd = append(n.onAdd, fn)
}

// OnRemove registers fn to run after each removed network
func (n *Networks) OnRemove(fn func(chainID int64)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onRemove = append(n.onRemove, fn)
}

// AddPublisher registers fn to receive a snapshot after every change.
// fn runs while the registry lock is held and must not block.
func (n *Networks) AddPublisher(fn func(types.Snapshot)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.publishers = append(n.publishers, fn)
}

// AddNetwork stores a network the user approved through
// wallet_addEthereumChain
func (n *Networks) AddNetwork(ctx context.Context, params types.AddEthereumChainParameter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	network, err := FromChainParameter(params)
	if err != nil {
		return err
	}
	return n.Upsert(ctx, network)
}

// Upsert stores network, replacing any network with the same chain id.
// Stored networks are always marked custom.
func (n *Networks) Upsert(ctx context.Context, network types.CustomEvmNetwork) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if network.ID <= 0 {
		return fmt.Errorf("invalid chain id %d", network.ID)
	}
	if len(network.RPCs) == 0 {
		return fmt.Errorf("network %d has no rpc", network.ID)
	}
	network.IsCustom = true

	n.mu.Lock()
	n.byChain[network.ID] = network
	n.publishLocked()
	hooks := slices.Clone(n.onAdd)
	n.mu.Unlock()

	n.logger.Info("Network added", zap.Int64("chain", network.ID), zap.String("name", network.Name))
	for _, fn := range hooks {
		fn(network)
	}
	return nil
}

// Remove deletes the network of chainID and reports whether it existed
func (n *Networks) Remove(chainID int64) bool {
	n.mu.Lock()
	if _, ok := n.byChain[chainID]; !ok {
		n.mu.Unlock()
		return false
	}
	delete(n.byChain, chainID)
	n.publishLocked()
	hooks := slices.Clone(n.onRemove)
	n.mu.Unlock()

	n.logger.Info("Network removed", zap.Int64("chain", chainID))
	for _, fn := range hooks {
		fn(chainID)
	}
	return true
}

// Clear deletes every network and returns how many there were
func (n *Networks) Clear() int {
	n.mu.Lock()
	removed := make([]int64, 0, len(n.byChain))
	for id := range n.byChain {
		removed = append(removed, id)
	}
	if len(removed) == 0 {
		n.mu.Unlock()
		return 0
	}
	n.byChain = make(map[int64]types.CustomEvmNetwork)
	n.publishLocked()
	hooks := slices.Clone(n.onRemove)
	n.mu.Unlock()

	slices.Sort(removed)
	n.logger.Info("Networks cleared", zap.Int("removed", len(removed)))
	for _, id := range removed {
		for _, fn := range hooks {
			fn(id)
		}
	}
	return len(removed)
}

// Get returns the network for a chain id in hex or decimal
func (n *Networks) Get(chainID string) (types.CustomEvmNetwork, bool) {
	id, err := utils.ParseChainID(chainID)
	if err != nil || !id.IsInt64() {
		return types.CustomEvmNetwork{}, false
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	network, ok := n.byChain[id.Int64()]
	return network, ok
}

// List returns all networks ordered by chain id
func (n *Networks) List() []types.CustomEvmNetwork {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.listLocked()
}

// Len returns the number of networks
func (n *Networks) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.byChain)
}

// Kind identifies the network list to subscribers
func (n *Networks) Kind() types.RequestKind {
	return types.KindNetworks
}

// Current runs fn with the current snapshot while holding the lock
func (n *Networks) Current(fn func(types.Snapshot)) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	fn(n.snapshotLocked())
}

func (n *Networks) listLocked() []types.CustomEvmNetwork {
	out := make([]types.CustomEvmNetwork, 0, len(n.byChain))
	for _, network := range n.byChain {
		out = append(out, network)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (n *Networks) snapshotLocked() types.Snapshot {
	list := n.listLocked()
	items := make([]types.View, len(list))
	for i, network := range list {
		items[i] = network
	}
	return types.Snapshot{Kind: types.KindNetworks, Version: n.version, Items: items}
}

func (n *Networks) publishLocked() {
	n.version++
	if len(n.publishers) == 0 {
		return
	}
	snap := n.snapshotLocked()
	for _, publish := range n.publishers {
		publish(snap)
	}
}

// FromChainParameter converts an EIP-3085 request into the stored network
// shape. The first explorer URL becomes the primary one.
func FromChainParameter(p types.AddEthereumChainParameter) (types.CustomEvmNetwork, error) {
	id, err := utils.ParseChainID(p.ChainID)
	if err != nil {
		return types.CustomEvmNetwork{}, err
	}
	if !id.IsInt64() {
		return types.CustomEvmNetwork{}, fmt.Errorf("chain id %s out of range", p.ChainID)
	}

	network := types.CustomEvmNetwork{
		ID:           id.Int64(),
		Name:         p.ChainName,
		IsHealthy:    true,
		IsCustom:     true,
		ExplorerURLs: slices.Clone(p.BlockExplorerURLs),
		IconURLs:     slices.Clone(p.IconURLs),
	}
	for _, url := range p.RPCURLs {
		network.RPCs = append(network.RPCs, types.EthereumRPC{URL: url, IsHealthy: true})
	}
	if len(p.BlockExplorerURLs) > 0 {
		network.ExplorerURL = p.BlockExplorerURLs[0]
	}
	if symbol := strings.ToLower(strings.TrimSpace(p.NativeCurrency.Symbol)); symbol != "" {
		network.NativeToken = &types.TokenRef{ID: fmt.Sprintf("%d-evm-native-%s", network.ID, symbol)}
	}
	return network, nil
}
