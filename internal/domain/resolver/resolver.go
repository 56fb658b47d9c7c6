package resolver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/walletbroker/internal/domain/requests"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/walletbroker/internal/shared/codec"
	"github.com/GriffinCanCode/walletbroker/internal/shared/errs"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

// ErrNotConfigured is returned when a decision needs a collaborator the
// broker was started without
var ErrNotConfigured = errors.New("collaborator not configured")

// Decision outcomes, used as metrics labels
const (
	OutcomeApproved  = "approved"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Queues are the stores decisions act on
type Queues struct {
	Networks    *requests.NetworkQueue
	WatchAssets *requests.WatchAssetQueue
	EthSigning  *requests.SigningQueue
	Signing     *requests.SigningQueue
}

// Resolver turns approve/cancel calls from the approval UI into store
// decisions and collaborator calls. Collaborators run after the entry left
// its store and outside any lock.
type Resolver struct {
	queues   Queues
	collab   Collaborators
	breakers *resilience.Group
	metrics  *monitoring.Metrics
	logger   *logging.Logger
}

// New creates a resolver over queues
func New(queues Queues, collab Collaborators, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		queues: queues,
		collab: collab,
		logger: logger.Named("resolver"),
	}
}

// WithBreakers guards every collaborator with a breaker from group
func (r *Resolver) WithBreakers(group *resilience.Group) *Resolver {
	r.breakers = group
	return r
}

// WithMetrics adds metrics tracking to the resolver
func (r *Resolver) WithMetrics(metrics *monitoring.Metrics) *Resolver {
	r.metrics = metrics
	return r
}

// ApproveNetworkAdd adds the network; the dApp's request resolves to null
func (r *Resolver) ApproveNetworkAdd(ctx context.Context, requestID string) (bool, error) {
	_, err := r.queues.Networks.Approve(ctx, requestID,
		func(ctx context.Context, req types.PendingRequest[types.AddEthereumChainParameter]) (any, error) {
			if r.collab.Networks == nil {
				return nil, fmt.Errorf("%s: %w", NameNetworks, ErrNotConfigured)
			}
			_, err := call(ctx, r, NameNetworks, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, r.collab.Networks.AddNetwork(ctx, req.Payload)
			})
			return nil, err
		})
	return r.decided(types.KindNetworkAdd, requestID, err)
}

// CancelNetworkAdd rejects the network-add request
func (r *Resolver) CancelNetworkAdd(requestID string) (bool, error) {
	return r.cancelled(types.KindNetworkAdd, requestID, r.queues.Networks.Cancel(requestID))
}

// ApproveWatchAsset adds the token; the dApp's request resolves to true
func (r *Resolver) ApproveWatchAsset(ctx context.Context, requestID string) (bool, error) {
	_, err := r.queues.WatchAssets.Approve(ctx, requestID,
		func(ctx context.Context, req types.PendingRequest[types.WatchAssetPayload]) (any, error) {
			if r.collab.Tokens == nil {
				return nil, fmt.Errorf("%s: %w", NameTokens, ErrNotConfigured)
			}
			_, err := call(ctx, r, NameTokens, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, r.collab.Tokens.AddToken(ctx, req.Payload.Token)
			})
			if err != nil {
				return nil, err
			}
			return true, nil
		})
	return r.decided(types.KindWatchAsset, requestID, err)
}

// CancelWatchAsset rejects the watch-asset request
func (r *Resolver) CancelWatchAsset(requestID string) (bool, error) {
	return r.cancelled(types.KindWatchAsset, requestID, r.queues.WatchAssets.Cancel(requestID))
}

// ApproveEthSign signs the request. A transaction is also broadcast and
// resolves to its hash; a message resolves to the signature.
func (r *Resolver) ApproveEthSign(ctx context.Context, requestID string) (bool, error) {
	_, err := r.queues.EthSigning.Approve(ctx, requestID,
		func(ctx context.Context, req types.PendingRequest[types.SignPayload]) (any, error) {
			return r.signAndMaybeSend(ctx, req.Payload)
		})
	return r.decided(types.KindEthSigning, requestID, err)
}

// ApproveEthSignAndSend merges the fee overrides into the unsigned
// transaction, then signs and broadcasts it. Fee values pass through
// unchanged; the signer owns their validation.
func (r *Resolver) ApproveEthSignAndSend(ctx context.Context, req types.EthApproveSignAndSend) (bool, error) {
	pending, err := r.queues.EthSigning.Get(req.ID)
	if err != nil {
		return false, err
	}
	if !pending.Payload.IsTransaction() {
		return false, errs.Shape("request %s is a %s, not a transaction", req.ID, pending.Payload.Method)
	}

	_, err = r.queues.EthSigning.Approve(ctx, req.ID,
		func(ctx context.Context, entry types.PendingRequest[types.SignPayload]) (any, error) {
			payload, err := MergeFees(entry.Payload, req.MaxFeePerGas, req.MaxPriorityFeePerGas)
			if err != nil {
				return nil, err
			}
			return r.signAndMaybeSend(ctx, payload)
		})
	return r.decided(types.KindEthSigning, req.ID, err)
}

// CancelEthSigning rejects the EVM signing request
func (r *Resolver) CancelEthSigning(requestID string) (bool, error) {
	return r.cancelled(types.KindEthSigning, requestID, r.queues.EthSigning.Cancel(requestID))
}

// ApproveSign signs a request of the generalized queue; the caller
// receives {id, signature}
func (r *Resolver) ApproveSign(ctx context.Context, requestID string) (bool, error) {
	_, err := r.queues.Signing.Approve(ctx, requestID,
		func(ctx context.Context, req types.PendingRequest[types.SignPayload]) (any, error) {
			signature, err := r.sign(ctx, req.Payload)
			if err != nil {
				return nil, err
			}
			return types.SubstrateSignResult{ID: req.ID, Signature: signature}, nil
		})
	return r.decided(types.KindSigning, requestID, err)
}

// CancelSigning rejects a request of the generalized queue
func (r *Resolver) CancelSigning(requestID string) (bool, error) {
	return r.cancelled(types.KindSigning, requestID, r.queues.Signing.Cancel(requestID))
}

func (r *Resolver) signAndMaybeSend(ctx context.Context, payload types.SignPayload) (string, error) {
	signed, err := r.sign(ctx, payload)
	if err != nil || !payload.IsTransaction() {
		return signed, err
	}

	if r.collab.Broadcaster == nil {
		return "", fmt.Errorf("%s: %w", NameBroadcaster, ErrNotConfigured)
	}
	return call(ctx, r, NameBroadcaster, func(ctx context.Context) (string, error) {
		return r.collab.Broadcaster.SendSigned(ctx, payload.ChainID, signed)
	})
}

func (r *Resolver) sign(ctx context.Context, payload types.SignPayload) (string, error) {
	if r.collab.Signer == nil {
		return "", fmt.Errorf("%s: %w", NameSigner, ErrNotConfigured)
	}
	return call(ctx, r, NameSigner, func(ctx context.Context) (string, error) {
		return r.collab.Signer.Sign(ctx, payload)
	})
}

// call runs fn behind the collaborator's breaker and records its duration
func call[T any](ctx context.Context, r *Resolver, name string, fn func(context.Context) (T, error)) (T, error) {
	timer := monitoring.NewTimer(r.metrics, name)
	result, err := resilience.Call(ctx, r.breakers.Get(name), fn)
	switch {
	case err == nil:
		timer.Stop("ok")
	case resilience.IsOpen(err):
		timer.Stop("rejected")
	default:
		timer.Stop("error")
	}
	return result, err
}

func (r *Resolver) decided(kind types.RequestKind, requestID string, err error) (bool, error) {
	switch {
	case err == nil:
		r.record(kind, OutcomeApproved)
		r.logger.Info("Request approved", logging.Kind(string(kind)), logging.Request(requestID))
		return true, nil
	case requests.IsNotFound(err):
		return false, err
	default:
		r.record(kind, OutcomeFailed)
		r.logger.Warn("Request approval failed",
			logging.Kind(string(kind)),
			logging.Request(requestID),
			zap.Error(err))
		return false, err
	}
}

func (r *Resolver) cancelled(kind types.RequestKind, requestID string, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	r.record(kind, OutcomeCancelled)
	r.logger.Info("Request cancelled", logging.Kind(string(kind)), logging.Request(requestID))
	return true, nil
}

func (r *Resolver) record(kind types.RequestKind, outcome string) {
	if r.metrics != nil {
		r.metrics.RecordDecision(string(kind), outcome)
	}
}

// MergeFees returns payload with maxFeePerGas and maxPriorityFeePerGas set
// on the unsigned transaction. A legacy gasPrice is dropped since it cannot
// coexist with EIP-1559 fees.
func MergeFees(payload types.SignPayload, maxFee, maxPriorityFee string) (types.SignPayload, error) {
	tx := make(map[string]any)
	if !codec.IsEmpty(payload.Payload) {
		if err := codec.Unmarshal(payload.Payload, &tx); err != nil {
			return payload, errs.Shape("unsigned transaction: %v", err)
		}
	}

	tx["maxFeePerGas"] = maxFee
	tx["maxPriorityFeePerGas"] = maxPriorityFee
	delete(tx, "gasPrice")

	merged, err := codec.Marshal(tx)
	if err != nil {
		return payload, err
	}
	payload.Payload = merged
	return payload, nil
}
