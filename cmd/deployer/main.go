package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	sealKey := flag.Bool("seal-key", false, "Print chain.private_key sealed with chain.key_passphrase and exit")
	flag.Parse()

	// Handle version flag
	if *showVersion {
		fmt.Printf("deployer %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	// Load configuration
	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	if *sealKey {
		sealed, err := SealPrivateKey(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seal key: %v\n", err)
			return ExitConfigError
		}
		fmt.Println(sealed)
		return ExitSuccess
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	// Setup logger
	logger := SetupLogger(cfg, os.Stderr)
	logger.Info("starting deployer",
		"version", Version,
		"config", *configPath,
		"chain_mode", cfg.Chain.Mode,
	)

	// Interrupts cancel the wait for finalization; submitted transactions
	// stay with the network.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, cfg, logger, os.Stdout)
	if err != nil {
		return exitCode(logger, "failed to prepare deployment", err)
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil {
		return exitCode(logger, "deployment failed", err)
	}

	return ExitSuccess
}

func exitCode(logger *slog.Logger, msg string, err error) int {
	var rErr *RunnerError
	if errors.As(err, &rErr) {
		logger.Error(msg,
			"error", rErr.Err,
			"operation", rErr.Op,
		)
		return rErr.ExitCode
	}
	logger.Error(msg, "error", err)
	return ExitConfigError
}
