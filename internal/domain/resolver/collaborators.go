package resolver

import (
	"context"

	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

// Signer produces a signature for an approved payload. It owns keys and
// fee policy; the broker never inspects what it signs.
type Signer interface {
	Sign(ctx context.Context, payload types.SignPayload) (string, error)
}

// Broadcaster submits a signed transaction and returns its hash
type Broadcaster interface {
	SendSigned(ctx context.Context, chainID string, signed string) (string, error)
}

// NetworkRegistry stores networks the user approved
type NetworkRegistry interface {
	AddNetwork(ctx context.Context, network types.AddEthereumChainParameter) error
}

// TokenRegistry stores tokens the user approved
type TokenRegistry interface {
	AddToken(ctx context.Context, token types.CustomErc20Token) error
}

// Collaborators groups the external capabilities decisions depend on
type Collaborators struct {
	Signer      Signer
	Broadcaster Broadcaster
	Networks    NetworkRegistry
	Tokens      TokenRegistry
}

// Collaborator names, used for breakers and metrics labels
const (
	NameSigner      = "signer"
	NameBroadcaster = "broadcaster"
	NameNetworks    = "networks"
	NameTokens      = "tokens"
)
