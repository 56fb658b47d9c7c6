package broker

import (
	"context"

	"github.com/GriffinCanCode/walletbroker/internal/domain/channels"
	"github.com/GriffinCanCode/walletbroker/internal/domain/requests"
	"github.com/GriffinCanCode/walletbroker/internal/domain/subscription"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

// SubstrateSign queues a signing request of the second ledger family and
// waits for the user's decision
func (b *Broker) SubstrateSign(ctx context.Context, c channels.Caller, req types.SubstrateSignPayload) (types.SubstrateSignResult, error) {
	ticket, err := b.queues.Signing.Enqueue(c.Origin, types.SignPayload{
		Scope:   types.ScopeSubstrate,
		Method:  req.Method,
		Account: req.Address,
		Payload: req.Payload,
	})
	if err != nil {
		return types.SubstrateSignResult{}, err
	}
	b.enqueued(types.KindSigning, c, ticket)

	value, err := ticket.Wait(ctx)
	if err != nil {
		return types.SubstrateSignResult{}, err
	}
	result, _ := value.(types.SubstrateSignResult)
	return result, nil
}

func (b *Broker) NetworkAddRequests(_ context.Context, _ channels.Caller, _ types.None) ([]types.NetworkAddRequest, error) {
	views := b.queues.Networks.Views()
	out := make([]types.NetworkAddRequest, 0, len(views))
	for _, v := range views {
		if r, ok := v.(types.NetworkAddRequest); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (b *Broker) ApproveNetworkAdd(ctx context.Context, _ channels.Caller, req types.RequestIDOnly) (bool, error) {
	return b.resolver.ApproveNetworkAdd(ctx, req.ID)
}

func (b *Broker) CancelNetworkAdd(_ context.Context, _ channels.Caller, req types.RequestIDOnly) (bool, error) {
	return b.resolver.CancelNetworkAdd(req.ID)
}

func (b *Broker) SubscribeNetworkAdd(_ context.Context, c channels.Caller, _ types.None) (channels.Stream, error) {
	return b.subscribe(b.queues.Networks, c, subscription.All)
}

func (b *Broker) ApproveWatchAsset(ctx context.Context, _ channels.Caller, req types.RequestIDOnly) (bool, error) {
	return b.resolver.ApproveWatchAsset(ctx, req.ID)
}

func (b *Broker) CancelWatchAsset(_ context.Context, _ channels.Caller, req types.RequestIDOnly) (bool, error) {
	return b.resolver.CancelWatchAsset(req.ID)
}

func (b *Broker) SubscribeWatchAsset(_ context.Context, c channels.Caller, _ types.None) (channels.Stream, error) {
	return b.subscribe(b.queues.WatchAssets, c, subscription.All)
}

func (b *Broker) SubscribeWatchAssetByID(_ context.Context, c channels.Caller, req types.RequestIDOnly) (channels.Stream, error) {
	return b.subscribe(b.queues.WatchAssets, c, subscription.ByID(req.ID))
}

func (b *Broker) SubscribeEthSigning(_ context.Context, c channels.Caller, _ types.None) (channels.Stream, error) {
	return b.subscribe(b.queues.EthSigning, c, subscription.All)
}

func (b *Broker) ApproveEthSign(ctx context.Context, _ channels.Caller, req types.RequestIDOnly) (bool, error) {
	return b.resolver.ApproveEthSign(ctx, req.ID)
}

func (b *Broker) ApproveEthSignAndSend(ctx context.Context, _ channels.Caller, req types.EthApproveSignAndSend) (bool, error) {
	return b.resolver.ApproveEthSignAndSend(ctx, req)
}

func (b *Broker) CancelEthSigning(_ context.Context, _ channels.Caller, req types.RequestIDOnly) (bool, error) {
	return b.resolver.CancelEthSigning(req.ID)
}

func (b *Broker) SubscribeSigning(_ context.Context, c channels.Caller, _ types.None) (channels.Stream, error) {
	return b.subscribe(b.queues.Signing, c, subscription.All)
}

func (b *Broker) ApproveSign(ctx context.Context, _ channels.Caller, req types.RequestIDOnly) (bool, error) {
	return b.resolver.ApproveSign(ctx, req.ID)
}

func (b *Broker) CancelSigning(_ context.Context, _ channels.Caller, req types.RequestIDOnly) (bool, error) {
	return b.resolver.CancelSigning(req.ID)
}

// Unsubscribe ends the subscription the port opened with message id req.ID.
// It answers false when no such subscription is active.
func (b *Broker) Unsubscribe(_ context.Context, c channels.Caller, req types.RequestIDOnly) (bool, error) {
	return b.hub.Unsubscribe(c.Port, req.ID), nil
}

func (b *Broker) subscribe(src subscription.Source, c channels.Caller, filter subscription.Filter) (channels.Stream, error) {
	sub, initial, err := b.hub.Subscribe(src, c.Port, c.MessageID, filter)
	if err != nil {
		return channels.Stream{}, err
	}
	b.logger.Debug("Subscribed",
		logging.Kind(string(src.Kind())),
		logging.Port(c.Port.String()))
	return channels.Stream{Sub: sub, Initial: initial}, nil
}

func (b *Broker) enqueued(kind types.RequestKind, c channels.Caller, ticket *requests.Ticket) {
	if b.metrics != nil {
		b.metrics.RecordEnqueue(string(kind), ticket.Deduplicated)
	}
	b.logger.Info("Request pending",
		logging.Kind(string(kind)),
		logging.Request(ticket.ID),
		logging.Origin(c.Origin))
}
