package broker

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/walletbroker/internal/domain/channels"
	"github.com/GriffinCanCode/walletbroker/internal/domain/requests"
	"github.com/GriffinCanCode/walletbroker/internal/domain/resolver"
	"github.com/GriffinCanCode/walletbroker/internal/domain/subscription"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

// Forwarder passes provider methods the broker does not handle to a node
type Forwarder interface {
	Forward(ctx context.Context, chainID string, method string, params json.RawMessage) (json.RawMessage, error)
}

// MetadataResolver looks up display information for a token
type MetadataResolver interface {
	Resolve(ctx context.Context, chainID int64, address string) (types.TokenMetadata, error)
}

// Options configures a Broker
type Options struct {
	// NetworkDedup names the network-add dedup strategy
	NetworkDedup string
	// DefaultChainID is used when a page does not say which chain it is on
	DefaultChainID string
	// MimicMetaMask is the answer pages get from pub(eth.mimicMetaMask)
	MimicMetaMask bool

	// Networks is the user's network list. Without it the network
	// management channels fail with a collaborator error.
	Networks NetworkStore

	Collaborators resolver.Collaborators
	Forwarder     Forwarder
	Metadata      MetadataResolver
	Breakers      *resilience.Group
	Metrics       *monitoring.Metrics
	Logger        *logging.Logger
}

// Broker is the process-scoped request broker: the pending stores, the
// subscription hub and the resolver, served through channels.Handlers.
// It is created once at start and torn down with Close, which rejects
// every pending request.
type Broker struct {
	queues   resolver.Queues
	hub      *subscription.Hub
	resolver *resolver.Resolver

	networks      NetworkStore
	forwarder     Forwarder
	metadata      MetadataResolver
	breakers      *resilience.Group
	validate      *validator.Validate
	defaultChain  string
	mimicMetaMask bool
	metrics       *monitoring.Metrics
	logger        *logging.Logger

	closeOnce sync.Once
}

var _ channels.Handlers = (*Broker)(nil)

// New creates a broker and wires its stores to the hub
func New(opts Options) *Broker {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.DefaultChainID == "" {
		opts.DefaultChainID = "0x1"
	}

	b := &Broker{
		queues: resolver.Queues{
			Networks:    requests.NewNetworkQueue(requests.NetworkDedup(opts.NetworkDedup)),
			WatchAssets: requests.NewWatchAssetQueue(),
			EthSigning:  requests.NewEthSigningQueue(),
			Signing:     requests.NewSigningQueue(),
		},
		hub:           subscription.NewHub(),
		networks:      opts.Networks,
		forwarder:     opts.Forwarder,
		metadata:      opts.Metadata,
		breakers:      opts.Breakers,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		defaultChain:  opts.DefaultChainID,
		mimicMetaMask: opts.MimicMetaMask,
		metrics:       opts.Metrics,
		logger:        logger.Named("broker"),
	}

	b.resolver = resolver.New(b.queues, opts.Collaborators, logger).WithBreakers(opts.Breakers)
	if opts.Metrics != nil {
		b.hub.WithMetrics(opts.Metrics)
		b.resolver.WithMetrics(opts.Metrics)
	}

	for _, src := range b.sources() {
		src.OnResolve(b.resolved)
		src.AddPublisher(b.hub)
		if opts.Metrics != nil {
			src.AddPublisher(pendingGauge(opts.Metrics))
		}
	}
	if opts.Networks != nil {
		opts.Networks.AddPublisher(b.hub.Publish)
	}

	return b
}

// source is what the broker needs from each queue, whatever its payload
type source interface {
	subscription.Source
	AddPublisher(requests.Publisher)
	OnResolve(requests.ResolveFunc)
	Len() int
	Close()
}

func (b *Broker) sources() []source {
	return []source{b.queues.Networks, b.queues.WatchAssets, b.queues.EthSigning, b.queues.Signing}
}

func pendingGauge(metrics *monitoring.Metrics) requests.Publisher {
	return requests.PublisherFunc(func(snap types.Snapshot) {
		metrics.SetPending(string(snap.Kind), len(snap.Items))
	})
}

// resolved reports how many callers a decision answered
func (b *Broker) resolved(kind types.RequestKind, requestID string, waiters int, err error) {
	b.logger.Debug("Request resolved",
		logging.Kind(string(kind)),
		logging.Request(requestID),
		zap.Int("waiters", waiters),
		zap.Bool("approved", err == nil))
	if b.metrics != nil {
		b.metrics.RecordWaiters(string(kind), waiters)
	}
}

// Hub returns the subscription hub
func (b *Broker) Hub() *subscription.Hub {
	return b.hub
}

// Queues returns the pending stores
func (b *Broker) Queues() resolver.Queues {
	return b.queues
}

// Pending returns the number of pending requests across every kind
func (b *Broker) Pending() int {
	total := 0
	for _, src := range b.sources() {
		total += src.Len()
	}
	return total
}

// Stats returns broker statistics
func (b *Broker) Stats() map[string]interface{} {
	pending := make(map[string]int)
	for _, src := range b.sources() {
		pending[string(src.Kind())] = src.Len()
	}
	stats := map[string]interface{}{
		"pending":       pending,
		"subscriptions": b.hub.Count(),
	}
	if b.breakers != nil {
		breakers := make(map[string]string)
		for name, state := range b.breakers.States() {
			breakers[name] = state.String()
		}
		stats["breakers"] = breakers
	}
	return stats
}

// Close rejects every pending request and ends every subscription.
// Further requests fail with errs.ErrBrokerClosed.
func (b *Broker) Close() {
	b.closeOnce.Do(func() {
		pending := b.Pending()
		for _, src := range b.sources() {
			src.Close()
		}
		b.hub.Close()
		b.logger.Info("Broker closed", zap.Int("rejected", pending))
	})
}
