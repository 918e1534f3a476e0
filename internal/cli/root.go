// Package cli provides the command-line interface for the trading journal.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trading-journal/internal/config"
	"trading-journal/internal/journal"
	"trading-journal/internal/logging"
	"trading-journal/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	store   store.DataStore
	service *journal.Service
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "journal",
		Short: "Trading journal and performance analytics",
		Long: `Journal records trades with their plan, checklist and outcome, and turns
them into performance analytics: win rate, expectancy, streaks, drawdowns,
loss patterns and strategy adherence.

Trades can be grouped into fund accounts whose balances follow the P&L
of the trades assigned to them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/trading-journal)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("owner", "", "journal owner (default: journal.owner from config)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addTradeCommands(rootCmd, app)
	addStrategyCommands(rootCmd, app)
	addAccountCommands(rootCmd, app)
	addStatsCommands(rootCmd, app)
	addExportCommands(rootCmd, app)

	return rootCmd
}

// setup applies the global flags before any command runs.
func (a *App) setup(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		dir, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}
		a.Config = cfg
		a.Logger = logging.NewLoggerWithConfig(cfg.LogConfig())
	}

	if owner, _ := cmd.Flags().GetString("owner"); owner != "" {
		a.Config.Journal.Owner = owner
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.WithLogger(ctx, a.Logger))
	return nil
}

// Service opens the configured store on first use and returns the journal
// service on top of it.
func (a *App) Service(ctx context.Context) (*journal.Service, error) {
	if a.service != nil {
		return a.service, nil
	}

	start := time.Now()
	ds, err := a.openStore(ctx)
	logging.LogStoreCall(a.Logger, "open "+a.Config.Store.Backend, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	a.store = ds
	a.service = journal.NewService(ds, a.Logger)
	return a.service, nil
}

func (a *App) openStore(ctx context.Context) (store.DataStore, error) {
	switch a.Config.Store.Backend {
	case config.BackendDynamoDB:
		d := a.Config.Store.DynamoDB
		client, err := store.NewDynamoClient(ctx, store.DynamoOptions{
			Region:   d.Region,
			Endpoint: d.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return store.NewDynamoStore(client, store.DynamoTables{
			Trades:       d.TradesTable,
			Strategies:   d.StrategiesTable,
			FundAccounts: d.FundAccountsTable,
		}), nil

	default:
		path := a.Config.SQLitePath()
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return store.NewSQLiteStore(path)
	}
}

// Close releases the store, if one was opened.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store, a.service = nil, nil
	return err
}

// Owner returns the journal owner for this invocation.
func (a *App) Owner() string {
	return a.Config.Journal.Owner
}

// Location returns the configured timezone, falling back to local time.
func (a *App) Location() *time.Location {
	loc, err := a.Config.Location()
	if err != nil {
		return time.Local
	}
	return loc
}

// output builds an Output honouring the UI section of the config.
func (a *App) output(cmd *cobra.Command) *Output {
	output := NewOutput(cmd)
	if !a.Config.UI.ColorEnabled {
		output.colorEnabled = false
	}
	if a.Config.UI.Currency != "" {
		output.currency = a.Config.UI.Currency
	}
	return output
}

// formatTime renders t in the journal timezone using the UI layouts.
func (a *App) formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(a.Location()).Format(a.Config.UI.DateFormat + " " + a.Config.UI.TimeFormat)
}

// reportedError marks an error that has already been printed.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// fail prints err and returns it so cobra exits non-zero.
func fail(output *Output, err error) error {
	output.Error("Error: %v", err)
	return reportedError{err}
}

// Reported reports whether err was already shown to the user.
func Reported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Trading Journal v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the journal configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := app.output(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.Config.Path()})
			} else {
				output.Println(app.Config.Path())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			if err := app.Config.Validate(); err != nil {
				return fail(output, fmt.Errorf("configuration validation failed: %w", err))
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Journal")
	output.Printf("  Owner:           %s\n", cfg.Journal.Owner)
	output.Printf("  Timezone:        %s\n", cfg.Journal.Timezone)
	output.Println()

	output.Bold("Store")
	output.Printf("  Backend:         %s\n", cfg.Store.Backend)
	switch cfg.Store.Backend {
	case config.BackendDynamoDB:
		d := cfg.Store.DynamoDB
		output.Printf("  Region:          %s\n", d.Region)
		if d.Endpoint != "" {
			output.Printf("  Endpoint:        %s\n", d.Endpoint)
		}
		output.Printf("  Tables:          %s, %s, %s\n", d.TradesTable, d.StrategiesTable, d.FundAccountsTable)
	default:
		output.Printf("  Database:        %s\n", cfg.SQLitePath())
	}
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  Console:         %v\n", cfg.Logging.Console)
	output.Printf("  File:            %v\n", cfg.Logging.File)
	if cfg.Logging.File {
		output.Printf("  File Path:       %s\n", cfg.LogConfig().FilePath)
	}
	output.Println()

	output.Bold("UI")
	output.Printf("  Color:           %v\n", cfg.UI.ColorEnabled)
	output.Printf("  Date Format:     %s\n", cfg.UI.DateFormat)
	output.Printf("  Time Format:     %s\n", cfg.UI.TimeFormat)
	output.Printf("  Currency:        %s\n", cfg.UI.Currency)
}
