// Ladle is a self-hosted meal planning service for households.
//
// It serves a JSON API for recipes, a weekly meal planner, shared
// grocery lists, and an LLM-backed sous chef that can read and — with
// explicit approval — modify all of them. Configuration is loaded from
// a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	ladle serve              Start the API server
//	ladle version            Print version and build information
//	ladle -o json version    Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ladle-app/ladle/internal/agent"
	"github.com/ladle-app/ladle/internal/auth"
	"github.com/ladle-app/ladle/internal/buildinfo"
	"github.com/ladle-app/ladle/internal/config"
	"github.com/ladle-app/ladle/internal/email"
	"github.com/ladle-app/ladle/internal/events"
	"github.com/ladle-app/ladle/internal/grocery"
	"github.com/ladle-app/ladle/internal/household"
	"github.com/ladle-app/ladle/internal/llm"
	"github.com/ladle-app/ladle/internal/mqtt"
	"github.com/ladle-app/ladle/internal/planner"
	"github.com/ladle-app/ladle/internal/prefs"
	"github.com/ladle-app/ladle/internal/recipes"
	"github.com/ladle-app/ladle/internal/tools"
	"github.com/ladle-app/ladle/internal/web"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run], keeping
// os.Exit and os.Args out of the application logic so the full
// startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the ladle command. Arguments are
// parsed by hand: the flag package relies on package-level globals
// (flag.CommandLine), which makes it impossible to call run()
// concurrently from tests, and our argument surface is tiny.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Ladle - Household Meal Planning Service")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: ladle [flags] <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	return nil
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// runServe handles the "ladle serve" subcommand: load config, open the
// database, wire the agent loop and tool registry, start the API
// server, and block until a shutdown signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting Ladle", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	path, err := config.FindConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	// Reconfigure the logger now that we know the desired level. The
	// initial Info-level logger covers only the startup banner.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}
	logger.Info("config loaded", "path", path, "port", cfg.Listen.Port, "data_dir", cfg.DataDir)

	if cfg.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is not set (set ANTHROPIC_API_KEY and reference it in the config)")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(cfg.DataDir, "ladle.db")

	// Every store shares the one SQLite file; each manages its own
	// tables and migrations.
	authStore, err := auth.NewStore(dbPath, logger)
	if err != nil {
		return fmt.Errorf("open auth store: %w", err)
	}
	defer authStore.Close()

	householdStore, err := household.NewStore(dbPath, logger)
	if err != nil {
		return fmt.Errorf("open household store: %w", err)
	}
	defer householdStore.Close()

	recipeStore, err := recipes.NewStore(dbPath, logger)
	if err != nil {
		return fmt.Errorf("open recipe store: %w", err)
	}
	defer recipeStore.Close()

	plannerStore, err := planner.NewStore(dbPath, logger)
	if err != nil {
		return fmt.Errorf("open planner store: %w", err)
	}
	defer plannerStore.Close()

	groceryStore, err := grocery.NewStore(dbPath, logger)
	if err != nil {
		return fmt.Errorf("open grocery store: %w", err)
	}
	defer groceryStore.Close()

	prefsStore, err := prefs.NewStore(dbPath, logger)
	if err != nil {
		return fmt.Errorf("open preferences store: %w", err)
	}
	defer prefsStore.Close()

	bus := events.New()

	registry := tools.NewSousChefRegistry(tools.Deps{
		Recipes: recipeStore,
		Planner: plannerStore,
		Grocery: groceryStore,
		Prefs:   prefsStore,
		Logger:  logger,
	})
	logger.Info("sous chef tools registered", "tools", len(registry.Names()))

	model := llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, logger)
	loop := agent.New(model, registry, logger, bus)

	importer := recipes.NewImporter(buildinfo.UserAgent(), logger)

	sender := email.NewSender(cfg.Email, logger)
	if sender.Enabled() {
		logger.Info("email delivery enabled", "smtp_host", cfg.Email.SMTPHost, "from", cfg.Email.From)
	} else {
		logger.Info("email delivery disabled (not configured)")
	}

	server := web.NewServer(cfg, web.Stores{
		Auth:       authStore,
		Households: householdStore,
		Recipes:    recipeStore,
		Planner:    plannerStore,
		Grocery:    groceryStore,
		Prefs:      prefsStore,
	}, loop, importer, sender, bus, logger)

	// --- MQTT publisher ---
	// Optional: publishes HA MQTT discovery messages and periodic sensor
	// state so a kitchen dashboard can show today's plan.
	var mqttPub *mqtt.Publisher
	if cfg.MQTT.Enabled && cfg.MQTT.Broker != "" {
		instanceID, err := mqtt.LoadOrCreateInstanceID(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("load mqtt instance id: %w", err)
		}

		stats := &statsAdapter{
			planner: plannerStore,
			grocery: groceryStore,
			auth:    authStore,
			logger:  logger,
		}
		mqttPub = mqtt.New(cfg.MQTT, instanceID, stats, logger)
		go func() {
			if err := mqttPub.Start(ctx); err != nil {
				logger.Error("mqtt publisher failed", "error", err)
			}
		}()
		logger.Info("mqtt publishing enabled",
			"broker", cfg.MQTT.Broker,
			"device_name", cfg.MQTT.DeviceName,
			"interval", cfg.MQTT.PublishIntervalSec,
		)
	} else {
		logger.Info("mqtt publishing disabled (not configured)")
	}

	// --- Signal handling and graceful shutdown ---
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		if mqttPub != nil {
			offlineCtx, offlineCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer offlineCancel()
			if err := mqttPub.Stop(offlineCtx); err != nil {
				logger.Error("mqtt shutdown failed", "error", err)
			}
		}

		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("Ladle stopped")
	return nil
}

// newLogger creates the structured logger used everywhere. Custom level
// names (TRACE) are mapped through config.ReplaceLogLevelNames.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}
