package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/walletbroker/internal/shared/utils"
)

// Config holds all broker configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Broker    BrokerConfig
	Signer    SignerConfig
	RPC       RPCConfig
	Metadata  MetadataConfig
	Breaker   BreakerConfig
	Native    NativeConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string   `envconfig:"PORT" default:"8000"`
	Host         string   `envconfig:"HOST" default:"127.0.0.1"`
	AllowOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds per-origin rate limiting of public channels.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"10"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"20"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// BrokerConfig holds request broker configuration.
type BrokerConfig struct {
	// TrustedOrigins are the WebSocket origins of the approval UI
	TrustedOrigins []string `envconfig:"BROKER_TRUSTED_ORIGINS" default:"chrome-extension://wallet"`
	// GrantsFile is a YAML or TOML permission grants file; empty denies every origin
	GrantsFile string `envconfig:"BROKER_GRANTS_FILE"`
	// NetworkDedup selects the network-add dedup key: origin_chain, chain_rpcs or none
	NetworkDedup   string `envconfig:"BROKER_NETWORK_DEDUP" default:"origin_chain"`
	DefaultChainID string `envconfig:"BROKER_DEFAULT_CHAIN_ID" default:"0x1"`
	MaxFrameBytes  int    `envconfig:"BROKER_MAX_FRAME_BYTES" default:"1048576"`
	// MimicMetaMask makes the injected provider present itself as MetaMask
	MimicMetaMask bool `envconfig:"BROKER_MIMIC_METAMASK" default:"false"`
}

// SignerConfig holds the remote signer endpoint.
type SignerConfig struct {
	URL   string `envconfig:"SIGNER_URL"`
	Token string `envconfig:"SIGNER_TOKEN"`
	// Timeout bounds one signing call; zero waits for the signer
	Timeout time.Duration `envconfig:"SIGNER_TIMEOUT"`
}

// RPCConfig holds JSON-RPC endpoints per chain.
type RPCConfig struct {
	// Endpoints are "chainId=url" pairs, chain ids in hex or decimal
	Endpoints []string `envconfig:"RPC_ENDPOINTS"`
	// Forward passes unhandled read-only provider methods to the endpoint
	Forward bool `envconfig:"RPC_FORWARD" default:"true"`
}

// MetadataConfig holds the token metadata service used for display only.
type MetadataConfig struct {
	URL      string        `envconfig:"TOKEN_METADATA_URL"`
	Timeout  time.Duration `envconfig:"TOKEN_METADATA_TIMEOUT" default:"5s"`
	RetryMax int           `envconfig:"TOKEN_METADATA_RETRIES" default:"2"`
}

// BreakerConfig holds collaborator circuit breaker configuration.
type BreakerConfig struct {
	Failures uint32        `envconfig:"BREAKER_FAILURES" default:"5"`
	Timeout  time.Duration `envconfig:"BREAKER_TIMEOUT" default:"30s"`
}

// NativeConfig holds Chrome Native Messaging host configuration.
type NativeConfig struct {
	Enabled bool `envconfig:"NATIVE_MESSAGING" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := cfg.RPC.EndpointMap(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8000",
			Host:         "127.0.0.1",
			AllowOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
			Enabled:           true,
		},
		Broker: BrokerConfig{
			TrustedOrigins: []string{"chrome-extension://wallet"},
			NetworkDedup:   "origin_chain",
			DefaultChainID: "0x1",
			MaxFrameBytes:  utils.MaxFrameSize,
		},
		Signer: SignerConfig{},
		RPC: RPCConfig{
			Forward: true,
		},
		Metadata: MetadataConfig{
			Timeout:  5 * time.Second,
			RetryMax: 2,
		},
		Breaker: BreakerConfig{
			Failures: 5,
			Timeout:  30 * time.Second,
		},
	}
}

// EndpointMap parses Endpoints into decimal chain id -> url.
func (c RPCConfig) EndpointMap() (map[string]string, error) {
	out := make(map[string]string, len(c.Endpoints))
	for _, pair := range c.Endpoints {
		chain, url, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || url == "" {
			return nil, fmt.Errorf("invalid rpc endpoint %q, want chainId=url", pair)
		}
		id := utils.NormalizeChainID(chain)
		if id == "" {
			return nil, fmt.Errorf("invalid chain id in rpc endpoint %q", pair)
		}
		out[id] = strings.TrimSpace(url)
	}
	return out, nil
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}
