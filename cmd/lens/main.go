// X1-Lens: program account explorer for LLM agents
//
// This is the main entry point for X1-Lens, an MCP server that derives
// program addresses and reads Anchor program accounts over JSON-RPC. The MCP
// stream runs on stdin/stdout; logs go to stderr.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fortiblox/X1-Lens/pkg/accounts"
	"github.com/fortiblox/X1-Lens/pkg/config"
	"github.com/fortiblox/X1-Lens/pkg/programcache"
	"github.com/fortiblox/X1-Lens/pkg/rpcfetch"
	"github.com/fortiblox/X1-Lens/pkg/tools"
)

// Version information
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

// Flags override the matching LENS_* environment variables.
var (
	rpcURLs        = flag.String("rpc-urls", "", "Comma or semicolon separated JSON-RPC endpoints")
	commitment     = flag.String("commitment", "", "Commitment level: processed, confirmed, finalized")
	logLevel       = flag.String("log-level", "", "Log level: debug, info, warn, error")
	cacheDir       = flag.String("cache-dir", "", "Directory for the persistent IDL cache (empty = memory only)")
	healthInterval = flag.Duration("health-interval", 30*time.Second, "Endpoint health check interval (0 = disabled)")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("X1-Lens %s (%s)\n", Version, GitCommit)
		os.Exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "x1-lens: %v\n", err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "x1-lens: build logger: %v\n", err)
		os.Exit(1)
	}
	os.Exit(shutdown(logger, run(cfg, logger)))
}

// shutdown logs how run ended, flushes the logger and returns the exit code.
func shutdown(logger *zap.Logger, err error) int {
	code := 0
	if err != nil {
		logger.Error("x1-lens stopped", zap.Error(err))
		code = 1
	} else {
		logger.Info("x1-lens stopped")
	}
	_ = logger.Sync()
	return code
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if *rpcURLs != "" {
		cfg.SetRPCURLs(*rpcURLs)
	}
	if *commitment != "" {
		cfg.Commitment = *commitment
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *cacheDir != "" {
		cfg.IDLCacheDir = *cacheDir
	}
	return cfg, cfg.Validate()
}

func run(cfg config.Config, logger *zap.Logger) error {
	logger.Info("starting x1-lens",
		zap.String("version", Version),
		zap.String("commit", GitCommit),
		zap.Strings("rpc_urls", cfg.RPCURLs),
		zap.String("commitment", cfg.Commitment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
		cancel()
	}()

	pool := rpcfetch.NewSimplePool(cfg.RPCURLs)

	client := rpcfetch.NewRPCClient(pool, cfg.RequestTimeout,
		rpcfetch.WithRateLimit(cfg.RPS, burstFor(cfg.RPS)),
		rpcfetch.WithCommitment(cfg.Commitment),
		rpcfetch.WithEncoding(rpcfetch.ParseEncoding(cfg.AccountEncoding)),
		rpcfetch.WithLogger(logger.Named("rpc")),
	)

	probeCtx, probeCancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	if slot, err := client.GetSlot(probeCtx); err != nil {
		logger.Warn("rpc endpoint not reachable at startup", zap.Error(err))
	} else {
		logger.Info("connected to rpc", zap.Uint64("slot", slot))
	}
	probeCancel()

	if *healthInterval > 0 {
		checker := newHealthChecker(pool, cfg.RequestTimeout, cfg.Commitment, logger.Named("health"))
		go checker.run(ctx, *healthInterval)
	}

	cache, err := programcache.New(client, programcache.Options{
		Dir:    cfg.IDLCacheDir,
		TTL:    cfg.IDLCacheTTL,
		Logger: logger.Named("programcache"),
	})
	if err != nil {
		return errors.Wrap(err, "open program cache")
	}
	defer cache.Close()

	gateway := accounts.NewGateway(client, cache, accounts.Options{
		BatchSize:        cfg.BatchSize,
		BatchConcurrency: cfg.BatchConcurrency,
		MaxScanAccounts:  cfg.MaxScanAccounts,
		Logger:           logger.Named("accounts"),
	})

	svc := tools.New(client, cache, gateway, logger.Named("tools"))
	srv := tools.NewServer(svc, Version)

	stdio := server.NewStdioServer(srv)
	stdio.SetErrorLogger(zap.NewStdLog(logger.Named("stdio")))

	logger.Info("serving MCP on stdio", zap.Int("tools", len(svc.Tools())))
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "serve stdio")
	}
	return nil
}

func burstFor(rps float64) int {
	if rps < 1 {
		return 1
	}
	return int(rps)
}
