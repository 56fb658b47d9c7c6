package signer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/GriffinCanCode/walletbroker/internal/shared/codec"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

const userAgent = "walletbroker-signer/1.0"

// ErrNoSignature is returned when the service answers without a signature
var ErrNoSignature = errors.New("signer returned no signature")

// Config configures the remote signer
type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
}

type signResponse struct {
	Signature string `json:"signature"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client signs payloads through the remote service
type Client struct {
	resty *resty.Client
}

// New creates a signer client
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("signer url is required")
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.URL, "/")).
		SetRetryCount(0).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(codec.Marshal).
		SetJSONUnmarshaler(codec.Unmarshal)
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	// zero waits as long as the signer does; hardware signers wait on the user
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Client{resty: client}, nil
}

// Sign asks the service to sign payload
func (c *Client) Sign(ctx context.Context, payload types.SignPayload) (string, error) {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&signResponse{}).
		SetError(&errorResponse{}).
		Post("/sign")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}

	if resp.IsError() {
		if e, ok := resp.Error().(*errorResponse); ok && e.Error != "" {
			return "", errors.New(e.Error)
		}
		return "", fmt.Errorf("signer returned %s", resp.Status())
	}

	result, ok := resp.Result().(*signResponse)
	if !ok || result.Signature == "" {
		return "", ErrNoSignature
	}
	return result.Signature, nil
}
