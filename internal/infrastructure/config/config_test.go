package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Addr())

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 10, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// Broker config
	assert.Equal(t, []string{"chrome-extension://wallet"}, cfg.Broker.TrustedOrigins)
	assert.Equal(t, "origin_chain", cfg.Broker.NetworkDedup)
	assert.Equal(t, 1<<20, cfg.Broker.MaxFrameBytes)

	// Collaborators
	assert.Zero(t, cfg.Signer.Timeout)
	assert.True(t, cfg.RPC.Forward)
	assert.Equal(t, uint32(5), cfg.Breaker.Failures)
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want.Server, cfg.Server)
	assert.Equal(t, want.RateLimit, cfg.RateLimit)
	assert.Equal(t, want.Broker, cfg.Broker)
	assert.Equal(t, want.Breaker, cfg.Breaker)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                   "9000",
		"HOST":                   "0.0.0.0",
		"LOG_LEVEL":              "debug",
		"LOG_DEV":                "true",
		"RATE_LIMIT_RPS":         "50",
		"RATE_LIMIT_ENABLED":     "false",
		"BROKER_TRUSTED_ORIGINS": "chrome-extension://abc,http://localhost:3000",
		"BROKER_GRANTS_FILE":     "/etc/broker/grants.yaml",
		"BROKER_NETWORK_DEDUP":   "chain_rpcs",
		"BROKER_MIMIC_METAMASK":  "true",
		"SIGNER_URL":             "http://signer:9000",
		"SIGNER_TIMEOUT":         "45s",
		"RPC_ENDPOINTS":          "0x1=https://eth.example,137=https://polygon.example",
		"BREAKER_FAILURES":       "3",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 50, cfg.RateLimit.RequestsPerSecond)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, []string{"chrome-extension://abc", "http://localhost:3000"}, cfg.Broker.TrustedOrigins)
	assert.Equal(t, "/etc/broker/grants.yaml", cfg.Broker.GrantsFile)
	assert.Equal(t, "chain_rpcs", cfg.Broker.NetworkDedup)
	assert.True(t, cfg.Broker.MimicMetaMask)
	assert.Equal(t, "http://signer:9000", cfg.Signer.URL)
	assert.Equal(t, 45*time.Second, cfg.Signer.Timeout)
	assert.Equal(t, uint32(3), cfg.Breaker.Failures)

	endpoints, err := cfg.RPC.EndpointMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"1":   "https://eth.example",
		"137": "https://polygon.example",
	}, endpoints)
}

func TestEndpointMap(t *testing.T) {
	tests := []struct {
		name      string
		endpoints []string
		want      map[string]string
		wantErr   bool
	}{
		{
			name:      "empty",
			endpoints: nil,
			want:      map[string]string{},
		},
		{
			name:      "hex and decimal ids",
			endpoints: []string{"0x89=https://polygon.example", " 10 = https://op.example "},
			want:      map[string]string{"137": "https://polygon.example", "10": "https://op.example"},
		},
		{
			name:      "missing separator",
			endpoints: []string{"https://eth.example"},
			wantErr:   true,
		},
		{
			name:      "bad chain id",
			endpoints: []string{"mainnet=https://eth.example"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RPCConfig{Endpoints: tt.endpoints}.EndpointMap()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadRejectsBadEndpoints(t *testing.T) {
	t.Setenv("RPC_ENDPOINTS", "nonsense")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Empty(t, cfg.RPC.Endpoints)
}

func TestRateLimitConfig(t *testing.T) {
	tests := []struct {
		name        string
		rps         string
		burst       string
		enabled     string
		wantRPS     int
		wantBurst   int
		wantEnabled bool
	}{
		{
			name:        "default values",
			wantRPS:     10,
			wantBurst:   20,
			wantEnabled: true,
		},
		{
			name:        "high limits",
			rps:         "1000",
			burst:       "2000",
			wantRPS:     1000,
			wantBurst:   2000,
			wantEnabled: true,
		},
		{
			name:        "disabled",
			enabled:     "false",
			wantRPS:     10,
			wantBurst:   20,
			wantEnabled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.rps != "" {
				t.Setenv("RATE_LIMIT_RPS", tt.rps)
			}
			if tt.burst != "" {
				t.Setenv("RATE_LIMIT_BURST", tt.burst)
			}
			if tt.enabled != "" {
				t.Setenv("RATE_LIMIT_ENABLED", tt.enabled)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantRPS, cfg.RateLimit.RequestsPerSecond)
			assert.Equal(t, tt.wantBurst, cfg.RateLimit.Burst)
			assert.Equal(t, tt.wantEnabled, cfg.RateLimit.Enabled)
		})
	}
}
