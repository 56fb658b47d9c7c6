package types

import (
	"encoding/json"
	"strings"

	"github.com/GriffinCanCode/walletbroker/internal/shared/errs"
)

// ChannelName is a catalogue key such as "pri(eth.signing.cancel)"
type ChannelName string

// IsPublic reports whether the name is in the untrusted pub(...) namespace
func (n ChannelName) IsPublic() bool {
	return strings.HasPrefix(string(n), "pub(") && strings.HasSuffix(string(n), ")")
}

// IsPrivate reports whether the name is in the trusted pri(...) namespace
func (n ChannelName) IsPrivate() bool {
	return strings.HasPrefix(string(n), "pri(") && strings.HasSuffix(string(n), ")")
}

// Inbound is one envelope received from a caller.
// ID is the caller's correlation id; responses and pushes echo it.
// Origin is honoured only on trusted ports that relay page traffic.
type Inbound struct {
	ID      string          `json:"id"`
	Message ChannelName     `json:"message"`
	Origin  string          `json:"origin,omitempty"`
	Request json.RawMessage `json:"request,omitempty"`
}

// Outbound is one envelope sent to a caller: exactly one of Response,
// Subscription or Error is meaningful.
type Outbound struct {
	ID           string     `json:"id"`
	Response     any        `json:"response,omitempty"`
	Subscription any        `json:"subscription,omitempty"`
	Error        *errs.Wire `json:"error,omitempty"`
}

// NewResponse builds a response envelope; a nil value is sent as null
func NewResponse(id string, value any) Outbound {
	if value == nil {
		value = json.RawMessage("null")
	}
	return Outbound{ID: id, Response: value}
}

// NewPush builds a subscription push envelope
func NewPush(id string, value any) Outbound {
	if value == nil {
		value = json.RawMessage("null")
	}
	return Outbound{ID: id, Subscription: value}
}

// NewError builds an error envelope
func NewError(id string, err error) Outbound {
	return Outbound{ID: id, Error: errs.ToWire(err)}
}
