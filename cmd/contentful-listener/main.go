package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/contentful-listener/internal/config"
	"github.com/mattjoyce/contentful-listener/internal/events"
	"github.com/mattjoyce/contentful-listener/internal/log"
	"github.com/mattjoyce/contentful-listener/internal/metrics"
	"github.com/mattjoyce/contentful-listener/internal/webhook"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "start":
		return runStart(args)
	case "config":
		return runConfigNoun(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: contentful-listener <command> [flags]

Commands:
  start             Run the webhook listener
  config check      Validate configuration
  config show       Print effective configuration (secrets redacted)
  version           Show version information
  help              Show this help

Flags:
  --config PATH     Configuration file or directory (default: discovered)`)
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: contentful-listener version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("contentful-listener %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		if len(commit) > 12 {
			commit = commit[:12]
		}
		info.Commit = commit
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}

	return info
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: contentful-listener config <check|show> [--config PATH]")
		return 1
	}

	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	case "show":
		return runConfigShow(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		return 1
	}
}

// loadConfigFromFlags parses --config and loads the file, discovering it when unset.
func loadConfigFromFlags(name string, args []string) (*config.Config, string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return nil, "", fmt.Errorf("failed to parse flags: %w", err)
	}

	if *configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return nil, "", fmt.Errorf("failed to discover config: %w", err)
		}
		*configPath = discovered
		fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", *configPath)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, *configPath, nil
}

func runConfigCheck(args []string) int {
	_, path, err := loadConfigFromFlags("config check", args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fingerprint, err := config.Fingerprint(resolveConfigFile(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to fingerprint config: %v\n", err)
		return 1
	}
	fmt.Printf("Configuration valid: %s (blake3 %s)\n", path, fingerprint)
	return 0
}

func runConfigShow(args []string) int {
	cfg, _, err := loadConfigFromFlags("config show", args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if cfg.Webhook.Auth != "" {
		cfg.Webhook.Auth = "<redacted>"
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render config: %v\n", err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}

func resolveConfigFile(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path + string(os.PathSeparator) + "config.yaml"
	}
	return path
}

func runStart(args []string) int {
	cfg, path, err := loadConfigFromFlags("start", args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")

	fingerprint, err := config.Fingerprint(resolveConfigFile(path))
	if err != nil {
		logger.Warn("could not fingerprint config", "config", path, "error", err)
		fingerprint = "unknown"
	}
	logger.Info("contentful-listener starting", "version", version, "config", path, "config_blake3", fingerprint)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("contentful-listener failed", "error", err)
		return 1
	}

	logger.Info("contentful-listener stopped")
	return 0
}

// run wires the bus, metrics and gateway and blocks until ctx is cancelled or
// a component fails. A fail-fast halt is reported as an error.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	bus := events.NewBus()
	subscribeLogging(bus, log.WithComponent("events"))
	defer func() {
		dispatched, failed := bus.Stats()
		logger.Info("event bus drained", "dispatched", dispatched, "failed", failed)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	webhookConfig, err := webhook.FromGlobalConfig(&cfg.Webhook)
	if err != nil {
		return fmt.Errorf("configure webhook: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	if cfg.Metrics.Enabled {
		metricsServer := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics: %w", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
		logger.Info("metrics server enabled", "listen", cfg.Metrics.Listen)
	}

	server := webhook.New(webhookConfig, bus, log.WithComponent("webhook"), webhook.WithMetrics(m))
	go func() {
		errCh <- server.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		// Wait for the gateway to drain.
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

// subscribeLogging logs every dispatched event and gateway failure.
func subscribeLogging(bus *events.Bus, logger *slog.Logger) {
	bus.OnAny(func(name string, ev events.Event) {
		logger.Info("contentful event",
			"event", name,
			"origin", ev.Origin,
			"kind", ev.Kind,
			"id", ev.ID,
			"space", ev.Space,
			"content_type", ev.ContentType,
			"webhook_name", ev.WebhookName,
		)
	})
	bus.OnError(func(err error) {
		logger.Error("contentful webhook failure", "error", err)
	})
}
