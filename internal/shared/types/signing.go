package types

import (
	"encoding/json"
	"time"
)

// Signing methods recognised by the broker
const (
	MethodPersonalSign    = "personal_sign"
	MethodEthSign         = "eth_sign"
	MethodSignTypedDataV4 = "eth_signTypedData_v4"
	MethodSendTransaction = "eth_sendTransaction"
	MethodSignBytes       = "bytes"
	MethodSignExtrinsic   = "extrinsic"
)

// SignPayload is what a signing store holds per request and what the
// signer collaborator receives. Payload is opaque to the broker.
type SignPayload struct {
	Scope   ChainScope      `json:"chainScope"`
	Method  string          `json:"method"`
	Account string          `json:"account"`
	ChainID string          `json:"ethChainId,omitempty"`
	Payload json.RawMessage `json:"unsignedPayload"`
}

// IsTransaction reports whether approval leads to a broadcast
func (p SignPayload) IsTransaction() bool {
	return p.Scope == ScopeEthereum && p.Method == MethodSendTransaction
}

// SigningRequest is a pending signing request as the UI sees it
type SigningRequest struct {
	ID        string          `json:"id"`
	URL       string          `json:"originUrl"`
	Scope     ChainScope      `json:"chainScope"`
	Method    string          `json:"method"`
	Account   string          `json:"account"`
	ChainID   string          `json:"ethChainId,omitempty"`
	Payload   json.RawMessage `json:"unsignedPayload"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (r SigningRequest) RequestID() string { return r.ID }

// SubstrateSignPayload is the pub(substrate.sign) payload
type SubstrateSignPayload struct {
	Method  string          `json:"method" validate:"required,oneof=bytes extrinsic"`
	Address string          `json:"address" validate:"required"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// SubstrateSignResult answers a substrate signing request
type SubstrateSignResult struct {
	ID        string `json:"id"`
	Signature string `json:"signature"`
}
