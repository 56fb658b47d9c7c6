// Package ratelimit provides keyed token buckets built on x/time/rate.
//
// The channel registry limits public channels per caller origin; the HTTP
// server limits routes per client IP through Middleware.
package ratelimit
