// Package channels is the closed catalogue of broker channels and the
// registry that dispatches envelopes to them.
//
// Every channel is a typed definition: Def[P, R] for request/response and
// SubDef[P] for subscriptions. Handlers is the single interface that serves
// them all, and Bindings ties each definition to its method, so payload and
// response types are checked by the compiler.
//
// Channel Families:
//   - pub(...): untrusted page callers; origin rate limit and capability check
//   - pri(...): trusted ports only (the extension UI)
//
// Dispatch Order:
//  1. Lookup (UnknownChannel)
//  2. Family, rate limit and capability (OriginNotPermitted, RateLimited)
//  3. Strict decode and struct validation (PayloadShape)
//  4. Handler
package channels
