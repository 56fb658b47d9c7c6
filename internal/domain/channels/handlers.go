package channels

import (
	"context"

	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

// Handlers serves every channel of the catalogue. Adding a channel means
// adding a method here and a line in Bindings; a missing implementation
// fails to compile.
type Handlers interface {
	EthRequest(ctx context.Context, c Caller, req types.EthProviderRequest) (any, error)
	SubstrateSign(ctx context.Context, c Caller, req types.SubstrateSignPayload) (types.SubstrateSignResult, error)
	MimicMetaMask(ctx context.Context, c Caller, _ types.None) (bool, error)

	ChainRequest(ctx context.Context, c Caller, req types.ChainRequest) (any, error)

	NetworkAddRequests(ctx context.Context, c Caller, _ types.None) ([]types.NetworkAddRequest, error)
	ApproveNetworkAdd(ctx context.Context, c Caller, req types.RequestIDOnly) (bool, error)
	CancelNetworkAdd(ctx context.Context, c Caller, req types.RequestIDOnly) (bool, error)
	SubscribeNetworkAdd(ctx context.Context, c Caller, _ types.None) (Stream, error)

	SubscribeNetworks(ctx context.Context, c Caller, _ types.None) (Stream, error)
	AddCustomNetwork(ctx context.Context, c Caller, req types.CustomEvmNetwork) (bool, error)
	RemoveCustomNetwork(ctx context.Context, c Caller, req types.RequestIDOnly) (bool, error)
	ClearCustomNetworks(ctx context.Context, c Caller, _ types.None) (bool, error)

	ApproveWatchAsset(ctx context.Context, c Caller, req types.RequestIDOnly) (bool, error)
	CancelWatchAsset(ctx context.Context, c Caller, req types.RequestIDOnly) (bool, error)
	SubscribeWatchAsset(ctx context.Context, c Caller, _ types.None) (Stream, error)
	SubscribeWatchAssetByID(ctx context.Context, c Caller, req types.RequestIDOnly) (Stream, error)

	SubscribeEthSigning(ctx context.Context, c Caller, _ types.None) (Stream, error)
	ApproveEthSign(ctx context.Context, c Caller, req types.RequestIDOnly) (bool, error)
	ApproveEthSignAndSend(ctx context.Context, c Caller, req types.EthApproveSignAndSend) (bool, error)
	CancelEthSigning(ctx context.Context, c Caller, req types.RequestIDOnly) (bool, error)

	SubscribeSigning(ctx context.Context, c Caller, _ types.None) (Stream, error)
	ApproveSign(ctx context.Context, c Caller, req types.RequestIDOnly) (bool, error)
	CancelSigning(ctx context.Context, c Caller, req types.RequestIDOnly) (bool, error)

	Unsubscribe(ctx context.Context, c Caller, req types.RequestIDOnly) (bool, error)
}

// Bindings binds every catalogue entry to h
func Bindings(h Handlers) []Binding {
	return []Binding{
		EthRequest.Bind(h.EthRequest),
		SubstrateSign.Bind(h.SubstrateSign),
		MimicMetaMask.Bind(h.MimicMetaMask),
		ChainRequest.Bind(h.ChainRequest),
		NetworkAddRequests.Bind(h.NetworkAddRequests),
		NetworkAddApprove.Bind(h.ApproveNetworkAdd),
		NetworkAddCancel.Bind(h.CancelNetworkAdd),
		NetworkAddSubscribe.Bind(h.SubscribeNetworkAdd),
		NetworksSubscribe.Bind(h.SubscribeNetworks),
		NetworkAddCustom.Bind(h.AddCustomNetwork),
		NetworkRemoveCustom.Bind(h.RemoveCustomNetwork),
		NetworksClearCustom.Bind(h.ClearCustomNetworks),
		WatchAssetApprove.Bind(h.ApproveWatchAsset),
		WatchAssetCancel.Bind(h.CancelWatchAsset),
		WatchAssetSubscribe.Bind(h.SubscribeWatchAsset),
		WatchAssetSubscribeByID.Bind(h.SubscribeWatchAssetByID),
		EthSigningSubscribe.Bind(h.SubscribeEthSigning),
		EthApproveSign.Bind(h.ApproveEthSign),
		EthApproveSignAndSend.Bind(h.ApproveEthSignAndSend),
		EthSigningCancel.Bind(h.CancelEthSigning),
		SigningSubscribe.Bind(h.SubscribeSigning),
		SigningApproveSign.Bind(h.ApproveSign),
		SigningCancel.Bind(h.CancelSigning),
		Unsubscribe.Bind(h.Unsubscribe),
	}
}
