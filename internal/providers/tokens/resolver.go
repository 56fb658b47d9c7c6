package tokens

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/walletbroker/internal/shared/codec"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

const (
	userAgent = "walletbroker-tokens/1.0"

	// sniffBytes is how much of a logo is read to detect its type
	sniffBytes = 3072

	maxDisplayLen = 64
)

// ErrNotFound is returned when the service does not know the token
var ErrNotFound = errors.New("token not found")

// Config configures the resolver
type Config struct {
	URL      string
	Timeout  time.Duration
	RetryMax int
}

type tokenResponse struct {
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Logo      string `json:"logo"`
	IsTestnet bool   `json:"isTestnet"`
}

// Resolver fetches token metadata
type Resolver struct {
	api    *resty.Client
	policy *bluemonday.Policy
}

// New creates a resolver for the service at cfg.URL
func New(cfg Config) (*Resolver, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("token metadata url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = 50 * time.Millisecond
	retryClient.RetryWaitMax = time.Second
	retryClient.Logger = nil

	api := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimSuffix(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetJSONUnmarshaler(codec.Unmarshal)

	return &Resolver{
		api:    api,
		policy: bluemonday.StrictPolicy(),
	}, nil
}

// Resolve returns display metadata for the token at address on chainID
func (r *Resolver) Resolve(ctx context.Context, chainID int64, address string) (types.TokenMetadata, error) {
	resp, err := r.api.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"chain":   strconv.FormatInt(chainID, 10),
			"address": strings.ToLower(address),
		}).
		SetResult(&tokenResponse{}).
		Get("/tokens/{chain}/{address}")
	if err != nil {
		return types.TokenMetadata{}, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return types.TokenMetadata{}, ErrNotFound
	}
	if resp.IsError() {
		return types.TokenMetadata{}, fmt.Errorf("token metadata returned %s", resp.Status())
	}

	body, ok := resp.Result().(*tokenResponse)
	if !ok {
		return types.TokenMetadata{}, fmt.Errorf("token metadata: unexpected response")
	}

	meta := types.TokenMetadata{
		Name:      r.display(body.Name),
		Symbol:    r.display(body.Symbol),
		IsTestnet: body.IsTestnet,
	}
	if r.isImage(ctx, body.Logo) {
		meta.Logo = body.Logo
	}
	return meta, nil
}

// display strips markup and control characters from an untrusted string
func (r *Resolver) display(s string) string {
	s = html.UnescapeString(r.policy.Sanitize(s))
	s = strings.Map(func(c rune) rune {
		if c < 0x20 || c == 0x7f {
			return -1
		}
		return c
	}, s)
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > maxDisplayLen {
		s = string(runes[:maxDisplayLen])
	}
	return s
}

// isImage reports whether logo is an http(s) URL serving a raster image.
// SVG is refused since it can carry script.
func (r *Resolver) isImage(ctx context.Context, logo string) bool {
	u, err := url.Parse(logo)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}

	resp, err := r.api.R().
		SetContext(ctx).
		SetHeader("Accept", "image/*").
		SetDoNotParseResponse(true).
		Get(logo)
	if err != nil {
		return false
	}
	raw := resp.RawBody()
	defer raw.Close()
	if resp.IsError() {
		return false
	}

	head, err := io.ReadAll(io.LimitReader(raw, sniffBytes))
	if err != nil || len(head) == 0 {
		return false
	}
	mt := mimetype.Detect(head)
	return strings.HasPrefix(mt.String(), "image/") && !mt.Is("image/svg+xml")
}
