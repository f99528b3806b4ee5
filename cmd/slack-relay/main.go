package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/slack-relay/internal/config"
	"github.com/mattjoyce/slack-relay/internal/doctor"
	"github.com/mattjoyce/slack-relay/internal/lock"
	"github.com/mattjoyce/slack-relay/internal/log"
	"github.com/mattjoyce/slack-relay/internal/observability/tracing"
	"github.com/mattjoyce/slack-relay/internal/relay"
	"github.com/mattjoyce/slack-relay/internal/slackapi"
	"github.com/mattjoyce/slack-relay/internal/webhook"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	loadDotEnv()

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	// --- NOUNS ---
	case "system":
		os.Exit(runSystemNoun(args))
	case "config":
		os.Exit(runConfigNoun(args))

	// --- ROOT ALIASES ---
	case "start":
		os.Exit(runStart(args))
	case "doctor":
		os.Exit(runConfigCheck(args))
	case "version":
		fmt.Printf("slack-relay version %s\n", version)
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
	fmt.Print(`slack-relay - Webhook to Slack direct message relay

Usage:
  slack-relay <noun> <action> [flags]

Core Resources (Nouns):
  system    Relay lifecycle
  config    Configuration and integrity

System Commands:
  system start      Start the relay in the foreground

Config Commands:
  config check      Validate configuration and report every problem
  config lock       Record the config file's BLAKE3 hash in .checksums
  config show       Print the resolved configuration with secrets masked

General:
  version           Show version information
  help              Show this help message

Environment:
  SLACK_BOT_TOKEN       Bot token (xoxb-...), overrides slack.bot_token
  SLACK_SIGNING_SECRET  Signing secret, overrides slack.signing_secret
  PORT                  Listen port, overrides server.listen
  LOG_LEVEL             Overrides service.log_level
  SLACK_RELAY_CONFIG    Config file or directory

A .env file in the working directory is loaded first when present.

Use 'slack-relay <noun> help' for resource-specific flags.
`)
}

// loadDotEnv loads ./.env without overriding variables already set.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printSystemNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSystemNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "start":
		if hasHelpFlag(actionArgs) {
			printSystemStartHelp()
			return 0
		}
		return runStart(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "lock":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return 0
		}
		return runConfigLock(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printSystemNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: slack-relay system <action>")
	fmt.Fprintln(w, "Actions: start")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: slack-relay config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, lock, show")
}

func printSystemStartHelp() {
	fmt.Println("Usage: slack-relay system start [--config PATH]")
	fmt.Println("Start the relay in the foreground. Without a config file the relay runs on")
	fmt.Println("defaults and environment variables.")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: slack-relay config check [--config PATH] [--json] [--strict]")
	fmt.Println("Validate configuration. Exit 1 on errors, 2 on warnings with --strict.")
}

func printConfigLockHelp() {
	fmt.Println("Usage: slack-relay config lock [--config PATH] [--dry-run]")
	fmt.Println("Write the config file's BLAKE3 hash to .checksums beside it.")
}

func printConfigShowHelp() {
	fmt.Println("Usage: slack-relay config show [--config PATH] [--json]")
	fmt.Println("Print the resolved configuration with secrets masked.")
}

// resolveConfigPath returns the explicit path, a discovered one, or "" for
// environment-only mode.
func resolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	discovered, err := config.DiscoverConfigPath()
	if errors.Is(err, config.ErrNoConfig) {
		return "", nil
	}
	return discovered, err
}

// --- ACTION IMPLEMENTATIONS ---

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	path, err := resolveConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return 1
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	if path == "" {
		logger.Info("slack-relay starting", "version", version, "config", "environment only")
	} else {
		logger.Info("slack-relay starting", "version", version, "config", cfg.SourcePath)
	}

	if cfg.Service.PIDFile != "" {
		pidLock, err := lock.AcquirePIDLock(cfg.Service.PIDFile)
		if err != nil {
			logger.Error("failed to acquire PID lock (another instance may be running)", "path", cfg.Service.PIDFile, "error", err)
			return 1
		}
		defer pidLock.Release()
		logger.Info("acquired PID lock", "path", pidLock.Path())
	}

	if cfg.Tracing.Enabled {
		shutdown := tracing.Setup(log.WithComponent("tracing"))
		defer func() { _ = shutdown(context.Background()) }()
		logger.Info("tracing enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := slackapi.New(cfg.Slack.BotToken, slackapi.Options{
		APIURL:  cfg.Slack.APIURL,
		Timeout: cfg.Slack.HTTPTimeout,
	})
	if err != nil {
		logger.Error("failed to create slack client", "error", err)
		return 1
	}

	if cfg.ShouldVerifyToken() {
		verifyCtx, verifyCancel := context.WithTimeout(ctx, cfg.Slack.HTTPTimeout+5*time.Second)
		id, err := client.Verify(verifyCtx)
		verifyCancel()
		if err != nil {
			logger.Error("slack token verification failed", "error", err)
			return 1
		}
		logger.Info("slack token verified", "team", id.Team, "team_id", id.TeamID, "bot_user_id", id.UserID)
	}

	serverConfig, err := webhook.FromGlobalConfig(cfg, version)
	if err != nil {
		logger.Error("failed to configure server", "error", err)
		return 1
	}

	service := relay.NewService(client, log.WithComponent("relay"))
	server := webhook.New(serverConfig, service, log.WithComponent("webhook"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	logger.Info("slack-relay running (press Ctrl+C to stop)", "listen", serverConfig.Listen)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("shutdown failed", "error", err)
			return 1
		}
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		return 1
	}

	logger.Info("slack-relay stopped")
	return 0
}

func runConfigCheck(args []string) int {
	var configPath string
	var strict, jsonOut bool
	var format string

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	fs.StringVar(&format, "format", "human", "Output format (human, json)")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if jsonOut {
		format = "json"
	}

	path, err := resolveConfigPath(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return 1
	}

	// Read skips validation so that doctor can report every problem.
	cfg, err := config.Read(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	result := doctor.New(cfg).Validate()

	switch format {
	case "json":
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	default:
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	if strict && len(result.Warnings) > 0 {
		return 2
	}
	return 0
}

func runConfigLock(args []string) int {
	var configPath string
	var dryRun bool

	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&dryRun, "dry-run", false, "Compute the hash without writing .checksums")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	path, err := resolveConfigPath(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return 1
	}
	if path == "" {
		fmt.Fprintf(os.Stderr, "Error: %v\n", config.ErrNoConfig)
		return 1
	}

	report, err := config.LockConfig(path, dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}

	fmt.Printf("HASH %s: %s\n", report.ConfigPath, report.Hash)
	if report.Written {
		fmt.Printf("WROTE %s: %s\n", config.ChecksumFile, report.ChecksumPath)
	} else {
		fmt.Printf("DRY-RUN %s: %s (not written)\n", config.ChecksumFile, report.ChecksumPath)
	}
	return 0
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	path, err := resolveConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return 1
	}

	cfg, err := config.Read(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	shown := cfg.Redacted()

	if *jsonOut {
		data, err := json.MarshalIndent(shown, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	data, err := yaml.Marshal(shown)
	if err != nil {
		fmt.Fprintf(os.Stderr, "YAML format error: %v\n", err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}
