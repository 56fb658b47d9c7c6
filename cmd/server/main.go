package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/config"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/server"
)

func main() {
	// Parse flags
	port := flag.String("port", "", "HTTP port (overrides PORT)")
	grants := flag.String("grants", "", "Permission grants file, YAML or TOML (overrides BROKER_GRANTS_FILE)")
	native := flag.Bool("native", false, "Serve Chrome Native Messaging on stdio instead of HTTP")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *grants != "" {
		cfg.Broker.GrantsFile = *grants
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	// Chrome starts a native host with the calling extension's origin as
	// the first argument
	origin := ""
	if flag.NArg() > 0 && strings.HasPrefix(flag.Arg(0), "chrome-extension://") {
		origin = strings.TrimSuffix(flag.Arg(0), "/")
		cfg.Native.Enabled = true
	}
	if *native {
		cfg.Native.Enabled = true
	}

	logger, err := logging.New(logging.ConfigFor(cfg.Logging.Level, cfg.Logging.Development, cfg.Native.Enabled))
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reloadOnHangup(ctx, srv, logger)

	if cfg.Native.Enabled {
		err = srv.ServeNative(ctx, os.Stdin, os.Stdout, origin)
	} else {
		err = srv.Run(ctx)
	}
	if err != nil {
		logger.Error("Server error", zap.Error(err))
	}

	if closeErr := srv.Close(); closeErr != nil {
		log.Printf("Error during shutdown: %v", closeErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

// reloadOnHangup re-reads the grants file on SIGHUP
func reloadOnHangup(ctx context.Context, srv *server.Server, logger *logging.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := srv.Reload(); err != nil {
				logger.Error("Failed to reload grants", zap.Error(err))
			}
		}
	}
}
