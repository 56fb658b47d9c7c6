package channels

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/ratelimit"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/walletbroker/internal/shared/codec"
	"github.com/GriffinCanCode/walletbroker/internal/shared/errs"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

// Oracle decides whether an origin holds a capability
type Oracle interface {
	HasCapability(ctx context.Context, origin string, capability string) (bool, error)
}

// Result is what a dispatched call produced. Stream is set for
// subscription channels; Value is then the true acknowledgement.
type Result struct {
	Value  any
	Stream *Stream
}

// Binding is a catalogue entry attached to its handler
type Binding struct {
	Meta
	call func(ctx context.Context, c Caller, raw []byte, check checkFunc) (Result, error)
}

type checkFunc func(raw []byte, payload any) error

// Registry routes envelopes to their handlers
type Registry struct {
	bindings map[types.ChannelName]Binding
	validate *validator.Validate
	logger   *logging.Logger
	oracle   Oracle
	limiter  *ratelimit.Limiter
	tracer   *tracing.Tracer
	metrics  *monitoring.Metrics
}

// NewRegistry binds every catalogue entry to h. A registry without an
// oracle denies every capability.
func NewRegistry(h Handlers, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Registry{
		bindings: make(map[types.ChannelName]Binding),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.Named("channels"),
	}
	for _, b := range Bindings(h) {
		r.bindings[b.Name] = b
	}
	return r
}

// WithOracle sets the permissions oracle consulted for public channels
func (r *Registry) WithOracle(oracle Oracle) *Registry {
	r.oracle = oracle
	return r
}

// WithLimiter rate limits public channels per origin
func (r *Registry) WithLimiter(limiter *ratelimit.Limiter) *Registry {
	r.limiter = limiter
	return r
}

// WithTracer records one span per dispatch
func (r *Registry) WithTracer(tracer *tracing.Tracer) *Registry {
	r.tracer = tracer
	return r
}

// WithMetrics adds metrics tracking to the registry
func (r *Registry) WithMetrics(metrics *monitoring.Metrics) *Registry {
	r.metrics = metrics
	return r
}

// Lookup returns the catalogue entry for name
func (r *Registry) Lookup(name types.ChannelName) (Meta, bool) {
	b, ok := r.bindings[name]
	return b.Meta, ok
}

// Dispatch authorizes, decodes and validates one envelope and runs its
// handler. Errors are scoped to the call; the caller's connection stays up.
func (r *Registry) Dispatch(ctx context.Context, c Caller, in types.Inbound) (Result, error) {
	start := time.Now()

	label := string(in.Message)
	b, ok := r.bindings[in.Message]
	if !ok {
		label = "unknown"
	}

	var span *tracing.Span
	if r.tracer != nil {
		span, ctx = r.tracer.StartSpan(ctx, "dispatch "+label)
		span.SetTag("port", c.Port.String())
	}

	var (
		res Result
		err error
	)
	switch {
	case !ok:
		err = fmt.Errorf("%w: %q", errs.ErrUnknownChannel, in.Message)
	default:
		err = r.authorize(ctx, b.Meta, c)
		if err == nil {
			res, err = b.call(ctx, c, in.Request, r.check)
		}
	}

	code := string(errs.CodeOf(err))
	if span != nil {
		if err != nil {
			span.SetError(err, code)
		}
		r.tracer.End(span)
	}
	if r.metrics != nil {
		r.metrics.RecordDispatch(label, code, time.Since(start))
	}
	if err != nil {
		r.logger.Debug("Dispatch failed",
			logging.Channel(string(in.Message)),
			logging.Port(c.Port.String()),
			zap.String("code", code),
			zap.Error(err))
	}
	return res, err
}

// authorize enforces the channel family and, for public channels, the
// per-origin rate limit and the required capability
func (r *Registry) authorize(ctx context.Context, m Meta, c Caller) error {
	if m.Family == Private {
		if !c.Trusted {
			return fmt.Errorf("%s from untrusted port: %w", m.Name, errs.ErrOriginNotPermitted)
		}
		return nil
	}

	if c.Origin == "" {
		return fmt.Errorf("%s without origin: %w", m.Name, errs.ErrOriginNotPermitted)
	}
	if !r.limiter.Allow(c.Origin) {
		return fmt.Errorf("%s from %s: %w", m.Name, c.Origin, errs.ErrRateLimited)
	}
	if m.Capability == CapabilityNone {
		return nil
	}
	if r.oracle == nil {
		return fmt.Errorf("%s for %s: %w", m.Capability, c.Origin, errs.ErrOriginNotPermitted)
	}

	granted, err := r.oracle.HasCapability(ctx, c.Origin, string(m.Capability))
	if err != nil {
		return errs.Collaborator("permissions", err)
	}
	if !granted {
		return fmt.Errorf("%s for %s: %w", m.Capability, c.Origin, errs.ErrOriginNotPermitted)
	}
	return nil
}

// check strictly decodes raw into payload and validates it. An absent or
// null payload leaves payload zero, which validation then judges.
func (r *Registry) check(raw []byte, payload any) error {
	if !codec.IsEmpty(raw) {
		if err := codec.UnmarshalStrict(raw, payload); err != nil {
			return errs.Shape("%v", err)
		}
	}

	if err := r.validate.Struct(payload); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return errs.Shape("%v", err)
	}
	return nil
}
