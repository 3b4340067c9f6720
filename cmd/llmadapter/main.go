package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/aschepis/backscratcher/llmadapter/config"
	"github.com/aschepis/backscratcher/llmadapter/llm/registry"
	"github.com/aschepis/backscratcher/llmadapter/migrations"
	"github.com/aschepis/backscratcher/llmadapter/usage"
)

const usageText = `Usage: llmadapter <command> [flags]

Commands:
  chat     send one conversation to a provider
  models   list registry models and prices
  usage    summarize the usage ledger

Run "llmadapter <command> -h" for command flags.
`

func main() {
	// A missing .env file is not an error
	_ = godotenv.Load(".env")

	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usageText)
		return fmt.Errorf("no command given")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "chat":
		return runChat(ctx, args[1:], stdin, stdout)
	case "models":
		return runModels(args[1:], stdout)
	case "usage":
		return runUsage(ctx, args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText)
		return nil
	default:
		fmt.Fprint(os.Stderr, usageText)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// logFlags registers the logging flags shared by all commands.
func logFlags(fs *flag.FlagSet) (logFile *string, pretty *bool) {
	logFile = fs.String("logfile", "", "Path to log file. If not set, logs to stderr")
	pretty = fs.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
	return logFile, pretty
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.GetConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// loadRegistry returns the registry named by the config, or the embedded one.
func loadRegistry(cfg *config.Config) (*registry.Spec, error) {
	if cfg.RegistryPath == "" {
		return registry.Default()
	}
	return registry.Load(cfg.RegistryPath)
}

// openLedger opens the SQLite ledger at path and brings its schema up to date.
func openLedger(path string, logger zerolog.Logger) (*sql.DB, *usage.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	if err := migrations.RunMigrations(db, logger); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, usage.NewStore(db), nil
}
