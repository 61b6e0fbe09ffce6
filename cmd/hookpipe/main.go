package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hookpipe/hookpipe/internal/config"
	"github.com/hookpipe/hookpipe/internal/dispatch"
	"github.com/hookpipe/hookpipe/internal/hook"
	"github.com/hookpipe/hookpipe/internal/listener"
	"github.com/hookpipe/hookpipe/internal/lock"
	"github.com/hookpipe/hookpipe/internal/log"
	"github.com/hookpipe/hookpipe/internal/server"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "start":
		os.Exit(runStart(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "version":
		fmt.Printf("hookpipe version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`hookpipe - Pipe webhook request bodies into external programs

Usage:
  hookpipe <command> [flags]

Commands:
  start         Start the dispatch daemon in the foreground
  config check  Validate config syntax, semantics, and integrity
  config lock   Authorize the current config (update integrity hashes)
  version       Show version information
  help          Show this help message

The config file defaults to ./hookpipe.yaml; override with --config.
`)
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: hookpipe config <check|lock> [--config PATH]")
		return 1
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		return runConfigCheck(actionArgs)
	case "lock":
		return runConfigLock(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func parseConfigPath(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultFileName, "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return *configPath, nil
}

func runConfigCheck(args []string) int {
	path, err := parseConfigPath("check", args)
	if err != nil {
		return 1
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration check FAILED: %v\n", err)
		return 1
	}

	if resolved, rerr := config.ResolvePath(path); rerr == nil {
		if errors.Is(config.VerifyChecksums(resolved), config.ErrNoChecksums) {
			fmt.Println("Warning: no integrity manifest; run 'hookpipe config lock' to enable verification.")
		}
	}

	fmt.Printf("Configuration check PASSED (%d hooks).\n", len(cfg.Hooks))
	return 0
}

func runConfigLock(args []string) int {
	path, err := parseConfigPath("lock", args)
	if err != nil {
		return 1
	}

	// Refuse to authorize a config that does not parse or validate.
	if _, err := config.LoadUnverified(path); err != nil {
		fmt.Fprintf(os.Stderr, "Refusing to lock an invalid config: %v\n", err)
		return 1
	}

	resolved, err := config.ResolvePath(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve config: %v\n", err)
		return 1
	}

	manifestPath, err := config.WriteChecksums(resolved)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write checksums: %v\n", err)
		return 1
	}
	fmt.Printf("Integrity manifest written: %s\n", manifestPath)
	return 0
}

func runStart(args []string) int {
	configPath, err := parseConfigPath("start", args)
	if err != nil {
		return 1
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("hookpipe starting", "version", version, "config", configPath)

	if cfg.Service.LockFile != "" {
		pidLock, err := lock.Acquire(cfg.Service.LockFile)
		if err != nil {
			logger.Error("failed to acquire PID lock (another instance may be running)",
				"path", cfg.Service.LockFile, "error", err)
			return 1
		}
		defer pidLock.Release()
		logger.Info("acquired PID lock", "path", pidLock.Path())
	}

	registry, overwritten := hook.NewRegistry(hooksFromConfig(cfg))
	for _, path := range overwritten {
		logger.Warn("duplicate hook path, later entry wins", "path", path)
	}
	for _, h := range registry.All() {
		log.WithHook(h.Path).Info("hook registered",
			"command", h.CommandLine(),
			"authenticated", h.Authenticated(),
		)
	}

	ln, kind, err := listener.Listen(listener.Config{Bind: cfg.Listen, Socket: cfg.Socket})
	if err != nil {
		logger.Error("failed to open listener", "error", err)
		return 1
	}
	defer ln.Close()
	logger.Info("listening", "kind", kind.String(), "addr", ln.Addr().String())

	runner := dispatch.NewRunner(cfg.TimeoutDuration())
	srv := server.New(registry, runner, log.WithComponent("server"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx, ln); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server failed", "error", err)
		return 1
	}

	logger.Info("hookpipe stopped")
	return 0
}

// hooksFromConfig converts config entries into registry hooks. An empty
// secret string means the hook is unauthenticated.
func hooksFromConfig(cfg *config.Config) []hook.Hook {
	hooks := make([]hook.Hook, 0, len(cfg.Hooks))
	for _, hc := range cfg.Hooks {
		h := hook.Hook{
			Path:    hc.Path,
			Program: hc.Program,
			Args:    hc.Args,
		}
		if hc.Secret != "" {
			h.Secret = []byte(hc.Secret)
		}
		hooks = append(hooks, h)
	}
	return hooks
}
