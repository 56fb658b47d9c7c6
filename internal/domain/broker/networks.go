package broker

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/walletbroker/internal/domain/channels"
	"github.com/GriffinCanCode/walletbroker/internal/domain/resolver"
	"github.com/GriffinCanCode/walletbroker/internal/domain/subscription"
	"github.com/GriffinCanCode/walletbroker/internal/shared/errs"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

// NetworkStore is the observable list of user networks the UI manages
type NetworkStore interface {
	subscription.Source
	AddPublisher(fn func(types.Snapshot))
	Upsert(ctx context.Context, network types.CustomEvmNetwork) error
	Remove(chainID int64) bool
	Clear() int
}

var errNoNetworkStore = errs.Collaborator(resolver.NameNetworks, resolver.ErrNotConfigured)

// MimicMetaMask tells a page whether the injected provider presents
// itself as MetaMask
func (b *Broker) MimicMetaMask(_ context.Context, _ channels.Caller, _ types.None) (bool, error) {
	return b.mimicMetaMask, nil
}

// ChainRequest forwards a provider request from the UI to the chain it names
func (b *Broker) ChainRequest(ctx context.Context, _ channels.Caller, req types.ChainRequest) (any, error) {
	return b.forward(ctx, strconv.FormatInt(req.ChainID, 10), req.Method, req.Params)
}

// SubscribeNetworks pushes the network list on every change
func (b *Broker) SubscribeNetworks(_ context.Context, c channels.Caller, _ types.None) (channels.Stream, error) {
	if b.networks == nil {
		return channels.Stream{}, errNoNetworkStore
	}
	return b.subscribe(b.networks, c, subscription.All)
}

func (b *Broker) AddCustomNetwork(ctx context.Context, _ channels.Caller, req types.CustomEvmNetwork) (bool, error) {
	if b.networks == nil {
		return false, errNoNetworkStore
	}
	if err := b.networks.Upsert(ctx, req); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}
		return false, errs.Shape("%v", err)
	}
	return true, nil
}

// RemoveCustomNetwork answers false when no network has the given chain id
func (b *Broker) RemoveCustomNetwork(_ context.Context, _ channels.Caller, req types.RequestIDOnly) (bool, error) {
	if b.networks == nil {
		return false, errNoNetworkStore
	}
	chainID, err := strconv.ParseInt(req.ID, 10, 64)
	if err != nil {
		return false, errs.Shape("network id %q is not a chain id", req.ID)
	}
	return b.networks.Remove(chainID), nil
}

func (b *Broker) ClearCustomNetworks(_ context.Context, _ channels.Caller, _ types.None) (bool, error) {
	if b.networks == nil {
		return false, errNoNetworkStore
	}
	removed := b.networks.Clear()
	b.logger.Debug("Custom networks cleared", zap.Int("removed", removed))
	return true, nil
}
