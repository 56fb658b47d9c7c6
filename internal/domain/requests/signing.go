package requests

import "github.com/GriffinCanCode/walletbroker/internal/shared/types"

// SigningQueue holds pending signing requests of one chain scope
type SigningQueue = Queue[types.SignPayload]

// NewEthSigningQueue creates the EVM signing queue
func NewEthSigningQueue() *SigningQueue {
	return NewQueue(Config[types.SignPayload]{
		Kind: types.KindEthSigning,
		View: signingView,
	})
}

// NewSigningQueue creates the generalized queue used by the substrate family
func NewSigningQueue() *SigningQueue {
	return NewQueue(Config[types.SignPayload]{
		Kind: types.KindSigning,
		View: signingView,
	})
}

func signingView(r types.PendingRequest[types.SignPayload]) types.View {
	return types.SigningRequest{
		ID:        r.ID,
		URL:       r.URL,
		Scope:     r.Payload.Scope,
		Method:    r.Payload.Method,
		Account:   r.Payload.Account,
		ChainID:   r.Payload.ChainID,
		Payload:   r.Payload.Payload,
		CreatedAt: r.CreatedAt,
	}
}
