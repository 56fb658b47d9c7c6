// Package tokens resolves display metadata for ERC-20 contracts from an HTTP
// token list service.
//
// Metadata is shown to the user next to a watch-asset request and never
// decides anything, so the resolver is lenient: the name and symbol are
// stripped of markup, and a logo is kept only if its first bytes really are
// a raster image. GETs are idempotent and go through a retrying transport.
//
// Service API:
//
//	GET {URL}/tokens/{chainId}/{address}
//	{"name": "...", "symbol": "...", "logo": "https://...", "isTestnet": false}
package tokens
