package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/walletbroker/internal/domain/broker"
	"github.com/GriffinCanCode/walletbroker/internal/domain/channels"
	"github.com/GriffinCanCode/walletbroker/internal/domain/resolver"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/config"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/ratelimit"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/walletbroker/internal/providers/chainrpc"
	"github.com/GriffinCanCode/walletbroker/internal/providers/inventory"
	"github.com/GriffinCanCode/walletbroker/internal/providers/permissions"
	"github.com/GriffinCanCode/walletbroker/internal/providers/signer"
	tokenmeta "github.com/GriffinCanCode/walletbroker/internal/providers/tokens"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
	"github.com/GriffinCanCode/walletbroker/internal/transport"
	"github.com/GriffinCanCode/walletbroker/internal/transport/nativemsg"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

// Server wraps the broker, its transports and dependencies
type Server struct {
	config   *config.Config
	router   *gin.Engine
	broker   *broker.Broker
	registry *channels.Registry
	mux      *transport.Multiplexer
	oracle   *permissions.Oracle
	limiter  *ratelimit.Limiter
	rpc      *chainrpc.Client
	networks *inventory.Networks
	tokens   *inventory.Tokens
	tracer   *tracing.Tracer
	metrics  *monitoring.Metrics
	logger   *logging.Logger
}

// NewServer creates a new server instance. A nil logger is built from
// cfg.Logging.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		var err error
		logger, err = logging.New(logging.ConfigFor(cfg.Logging.Level, cfg.Logging.Development, cfg.Native.Enabled))
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing wallet broker",
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("native", cfg.Native.Enabled),
	)

	// Metrics first, everything below reports into them
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("walletbroker", logger.Logger)

	breakers := resilience.NewGroup(resilience.Settings{
		Timeout: cfg.Breaker.Timeout,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.Failures
		},
		OnStateChange: func(name string, from, to resilience.State) {
			metrics.SetBreakerState(name, int(to))
			logger.Warn("Circuit breaker state changed",
				zap.String("collaborator", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	oracle, err := newOracle(cfg.Broker, logger)
	if err != nil {
		return nil, err
	}

	endpoints, err := cfg.RPC.EndpointMap()
	if err != nil {
		return nil, fmt.Errorf("failed to parse rpc endpoints: %w", err)
	}
	rpcClient := chainrpc.New(endpoints, logger).WithForwarding(cfg.RPC.Forward)

	networks := inventory.NewNetworks(logger)
	networks.OnAdd(func(network types.CustomEvmNetwork) {
		rpcClient.AddEndpoint(strconv.FormatInt(network.ID, 10), network.RPCs[0].URL)
	})
	networks.OnRemove(func(chainID int64) {
		rpcClient.RemoveEndpoint(strconv.FormatInt(chainID, 10))
	})
	tokens := inventory.NewTokens(logger)

	collab := resolver.Collaborators{
		Broadcaster: rpcClient,
		Networks:    networks,
		Tokens:      tokens,
	}
	if cfg.Signer.URL != "" {
		client, err := signer.New(signer.Config{
			URL:     cfg.Signer.URL,
			Token:   cfg.Signer.Token,
			Timeout: cfg.Signer.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create signer: %w", err)
		}
		collab.Signer = client
		logger.Info("Remote signer configured", zap.String("url", cfg.Signer.URL))
	} else {
		logger.Warn("No signer configured, signing approvals will fail")
	}

	var metadata broker.MetadataResolver
	if cfg.Metadata.URL != "" {
		meta, err := tokenmeta.New(tokenmeta.Config{
			URL:      cfg.Metadata.URL,
			Timeout:  cfg.Metadata.Timeout,
			RetryMax: cfg.Metadata.RetryMax,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create token metadata resolver: %w", err)
		}
		metadata = meta
	}

	b := broker.New(broker.Options{
		NetworkDedup:   cfg.Broker.NetworkDedup,
		DefaultChainID: cfg.Broker.DefaultChainID,
		MimicMetaMask:  cfg.Broker.MimicMetaMask,
		Networks:       networks,
		Collaborators:  collab,
		Forwarder:      rpcClient,
		Metadata:       metadata,
		Breakers:       breakers,
		Metrics:        metrics,
		Logger:         logger,
	})

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		})
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
	}

	registry := channels.NewRegistry(b, logger).
		WithOracle(oracle).
		WithLimiter(limiter).
		WithTracer(tracer).
		WithMetrics(metrics)
	mux := transport.NewMultiplexer(registry, b.Hub(), logger).WithMetrics(metrics)

	s := &Server{
		config:   cfg,
		broker:   b,
		registry: registry,
		mux:      mux,
		oracle:   oracle,
		limiter:  limiter,
		rpc:      rpcClient,
		networks: networks,
		tokens:   tokens,
		tracer:   tracer,
		metrics:  metrics,
		logger:   logger,
	}
	s.router = s.routes()

	logger.Info("Server initialized successfully", zap.Int("channels", len(channels.All())))
	return s, nil
}

func newOracle(cfg config.BrokerConfig, logger *logging.Logger) (*permissions.Oracle, error) {
	if cfg.GrantsFile == "" {
		logger.Warn("No grants file configured, every page origin is denied")
		oracle, err := permissions.NewOracle(nil)
		if err != nil {
			return nil, err
		}
		return oracle.WithLogger(logger), nil
	}

	oracle, err := permissions.Load(cfg.GrantsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load grants: %w", err)
	}
	logger.Info("Grants loaded", zap.String("path", cfg.GrantsFile), zap.Int("grants", oracle.Len()))
	return oracle.WithLogger(logger), nil
}

// Handler returns the HTTP handler serving /ws, /health and /metrics
func (s *Server) Handler() http.Handler {
	return s.router
}

// Broker returns the broker
func (s *Server) Broker() *broker.Broker {
	return s.broker
}

// Reload re-reads the grants file
func (s *Server) Reload() error {
	return s.oracle.Reload()
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.sweep(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		// pending requests are rejected before their ports go away
		s.broker.Close()
		s.mux.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// ServeNative serves one trusted native messaging port over r and w until
// the browser closes the pipe or ctx is cancelled
func (s *Server) ServeNative(ctx context.Context, r io.Reader, w io.Writer, origin string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.sweep(ctx)

	conn := nativemsg.NewConn(r, w, s.config.Broker.MaxFrameBytes)
	info := transport.PortInfo{
		Transport: "native",
		Trusted:   true,
		Origin:    origin,
		Tag:       uuid.NewString(),
	}
	s.logger.Info("Serving native messaging port", zap.String("origin", origin), zap.String("conn", info.Tag))
	return s.mux.Serve(ctx, conn, info)
}

// sweep drops idle rate limit buckets until ctx is done
func (s *Server) sweep(ctx context.Context) {
	if s.limiter == nil {
		return
	}
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.Sweep(); n > 0 {
				s.logger.Debug("Rate limit buckets swept", zap.Int("removed", n))
			}
		}
	}
}

// Close rejects every pending request and releases connections
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	s.mux.Close()
	s.broker.Close()
	s.rpc.Close()
	s.tracer.Close()

	_ = s.logger.Sync()
	return nil
}
