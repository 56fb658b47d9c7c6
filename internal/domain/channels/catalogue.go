package channels

import (
	"context"

	"github.com/GriffinCanCode/walletbroker/internal/domain/subscription"
	"github.com/GriffinCanCode/walletbroker/internal/shared/id"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

// Family is the namespace a channel lives in
type Family int

const (
	// Public channels are reachable by untrusted page callers
	Public Family = iota
	// Private channels are reachable only from trusted ports
	Private
)

func (f Family) String() string {
	if f == Public {
		return "public"
	}
	return "private"
}

// Capability is what an origin must be granted to use a public channel
type Capability string

const (
	CapabilityNone      Capability = ""
	CapabilityEth       Capability = "eth"
	CapabilitySubstrate Capability = "substrate"
)

// Meta describes one catalogue entry
type Meta struct {
	Name         types.ChannelName
	Family       Family
	Capability   Capability
	Subscription bool
}

// Caller identifies who sent an envelope
type Caller struct {
	Port      id.PortID
	Origin    string
	Trusted   bool
	MessageID string
}

// Stream is the result of a subscription channel: the registered
// subscription and the value of the first push
type Stream struct {
	Sub     *subscription.Subscription
	Initial any
}

// Def is a request/response channel with payload P and response R
type Def[P, R any] struct {
	Meta
}

// SubDef is a subscription channel with payload P. The call itself is
// acknowledged with true; values arrive as pushes.
type SubDef[P any] struct {
	Meta
}

// Bind attaches a handler. The handler's signature is checked against the
// channel's payload and response types at compile time.
func (d Def[P, R]) Bind(fn func(context.Context, Caller, P) (R, error)) Binding {
	return Binding{
		Meta: d.Meta,
		call: func(ctx context.Context, c Caller, raw []byte, check checkFunc) (Result, error) {
			var p P
			if err := check(raw, &p); err != nil {
				return Result{}, err
			}
			value, err := fn(ctx, c, p)
			if err != nil {
				return Result{}, err
			}
			return Result{Value: value}, nil
		},
	}
}

// Bind attaches a subscription handler
func (d SubDef[P]) Bind(fn func(context.Context, Caller, P) (Stream, error)) Binding {
	return Binding{
		Meta: d.Meta,
		call: func(ctx context.Context, c Caller, raw []byte, check checkFunc) (Result, error) {
			var p P
			if err := check(raw, &p); err != nil {
				return Result{}, err
			}
			stream, err := fn(ctx, c, p)
			if err != nil {
				return Result{}, err
			}
			return Result{Value: true, Stream: &stream}, nil
		},
	}
}

func public(name string, capability Capability) Meta {
	return Meta{Name: types.ChannelName("pub(" + name + ")"), Family: Public, Capability: capability}
}

func private(name string) Meta {
	return Meta{Name: types.ChannelName("pri(" + name + ")"), Family: Private}
}

func subscribe(name string) Meta {
	m := private(name)
	m.Subscription = true
	return m
}

// The catalogue
var (
	EthRequest    = Def[types.EthProviderRequest, any]{public("eth.request", CapabilityEth)}
	SubstrateSign = Def[types.SubstrateSignPayload, types.SubstrateSignResult]{public("substrate.sign", CapabilitySubstrate)}
	MimicMetaMask = Def[types.None, bool]{public("eth.mimicMetaMask", CapabilityNone)}

	ChainRequest = Def[types.ChainRequest, any]{private("eth.request")}

	NetworkAddRequests  = Def[types.None, []types.NetworkAddRequest]{private("eth.networks.add.requests")}
	NetworkAddApprove   = Def[types.RequestIDOnly, bool]{private("eth.networks.add.approve")}
	NetworkAddCancel    = Def[types.RequestIDOnly, bool]{private("eth.networks.add.cancel")}
	NetworkAddSubscribe = SubDef[types.None]{subscribe("eth.networks.add.subscribe")}

	NetworksSubscribe   = SubDef[types.None]{subscribe("eth.networks.subscribe")}
	NetworkAddCustom    = Def[types.CustomEvmNetwork, bool]{private("eth.networks.add.custom")}
	NetworkRemoveCustom = Def[types.RequestIDOnly, bool]{private("eth.networks.removeCustomNetwork")}
	NetworksClearCustom = Def[types.None, bool]{private("eth.networks.clearCustomNetworks")}

	WatchAssetApprove       = Def[types.RequestIDOnly, bool]{private("eth.watchasset.requests.approve")}
	WatchAssetCancel        = Def[types.RequestIDOnly, bool]{private("eth.watchasset.requests.cancel")}
	WatchAssetSubscribe     = SubDef[types.None]{subscribe("eth.watchasset.requests.subscribe")}
	WatchAssetSubscribeByID = SubDef[types.RequestIDOnly]{subscribe("eth.watchasset.requests.subscribe.byid")}

	EthSigningSubscribe   = SubDef[types.None]{subscribe("eth.signing.requests.subscribe")}
	EthApproveSign        = Def[types.RequestIDOnly, bool]{private("eth.signing.approveSign")}
	EthApproveSignAndSend = Def[types.EthApproveSignAndSend, bool]{private("eth.signing.approveSignAndSend")}
	EthSigningCancel      = Def[types.RequestIDOnly, bool]{private("eth.signing.cancel")}

	SigningSubscribe   = SubDef[types.None]{subscribe("signing.requests.subscribe")}
	SigningApproveSign = Def[types.RequestIDOnly, bool]{private("signing.approveSign")}
	SigningCancel      = Def[types.RequestIDOnly, bool]{private("signing.cancel")}

	Unsubscribe = Def[types.RequestIDOnly, bool]{private("unsubscribe")}
)

// All returns every catalogue entry
func All() []Meta {
	return []Meta{
		EthRequest.Meta,
		SubstrateSign.Meta,
		MimicMetaMask.Meta,
		ChainRequest.Meta,
		NetworkAddRequests.Meta,
		NetworkAddApprove.Meta,
		NetworkAddCancel.Meta,
		NetworkAddSubscribe.Meta,
		NetworksSubscribe.Meta,
		NetworkAddCustom.Meta,
		NetworkRemoveCustom.Meta,
		NetworksClearCustom.Meta,
		WatchAssetApprove.Meta,
		WatchAssetCancel.Meta,
		WatchAssetSubscribe.Meta,
		WatchAssetSubscribeByID.Meta,
		EthSigningSubscribe.Meta,
		EthApproveSign.Meta,
		EthApproveSignAndSend.Meta,
		EthSigningCancel.Meta,
		SigningSubscribe.Meta,
		SigningApproveSign.Meta,
		SigningCancel.Meta,
		Unsubscribe.Meta,
	}
}
