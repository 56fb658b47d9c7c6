// Package permissions provides the file-backed capability oracle.
//
// Grants map origin patterns to capabilities. Patterns are doublestar globs
// matched against the caller's scheme and host separately, so
// "*.uniswap.org" grants every https subdomain and "http://localhost:*"
// grants every local port over plain http. A pattern without a scheme only
// matches https origins; a pattern without a port ignores the caller's port. Hosts on both sides are IDNA-normalised,
// so a grant written in Unicode matches the punycode origin a browser sends.
//
// Grants file (YAML):
//
//	grants:
//	  - origin: "app.uniswap.org"
//	    capabilities: [eth]
//	  - origin: "*.polkadot.io"
//	    capabilities: [substrate]
//
// TOML uses the same keys ([[grants]] tables). The capability "*" grants
// everything. Origins without a matching grant are denied.
package permissions
