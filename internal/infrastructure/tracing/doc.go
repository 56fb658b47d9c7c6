/*
Package tracing provides lightweight in-process tracing for debugging.

Spans are collected by one goroutine and written to the zap logger. The
broker opens one span per HTTP request and one per dispatched envelope, so a
slow approval or a failing collaborator can be followed from the log.

# Usage

	tracer := tracing.New("broker", logger.Logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "pri(eth.signing.approveSign)")
	defer tracer.End(span)
	span.SetTag("port", portID)

# Trace Format

Traces use standard HTTP headers for propagation:
  - X-Trace-ID: Unique identifier for entire request flow
  - X-Span-ID: Identifier for current operation
*/
package tracing
