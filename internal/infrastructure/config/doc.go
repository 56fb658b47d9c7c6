// Package config provides 12-factor configuration management for the broker.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, CORS origins)
//   - Logging: Log level and output format
//   - RateLimit: Per-origin rate limiting of public channels
//   - Broker: Trusted UI origins, grants file, network-add dedup strategy
//   - Signer, RPC, Metadata: collaborator endpoints
//   - Breaker: collaborator circuit breaker thresholds
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Broker listening on %s\n", cfg.Server.Addr())
//
// Environment Variables:
//   - PORT, HOST, CORS_ORIGINS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - BROKER_TRUSTED_ORIGINS, BROKER_GRANTS_FILE, BROKER_NETWORK_DEDUP
//   - SIGNER_URL, SIGNER_TOKEN, RPC_ENDPOINTS, TOKEN_METADATA_URL
package config
