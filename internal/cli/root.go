package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"metawatch/internal/config"
	"metawatch/internal/logging"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "metawatch",
		Short: "Metawatch - trading account watcher with Telegram notifications",
		Long: `Metawatch watches a MetaTrader account through MetaApi and notifies a
Telegram channel about trading activity: opened and closed positions,
triggered and cancelled pending orders, plus a pinned daily overview.

Use 'metawatch run' to start watching.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/metawatch)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newJournalCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("Metawatch v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Monitor Configuration")
	output.Printf("  Poll Interval:       %s\n", cfg.Monitor.PollInterval)
	output.Printf("  Confirmation Delay:  %s\n", cfg.Monitor.ConfirmationDelay)
	output.Printf("  Summary Interval:    %s\n", cfg.Monitor.SummaryMinInterval)
	output.Printf("  Reconnect Delay:     %s\n", cfg.Monitor.ReconnectDelay)
	output.Printf("  Symbol Suffix:       %q\n", cfg.Monitor.SymbolSuffix)
	output.Println()

	output.Bold("Journal")
	output.Printf("  Enabled:             %v\n", cfg.Journal.Enabled)
	output.Printf("  Database:            %s\n", cfg.Journal.DBPath)
	output.Println()

	output.Bold("Credentials")
	output.Printf("  Broker configured:   %v\n", cfg.HasBrokerCredentials())
	output.Printf("  Telegram configured: %v\n", cfg.HasTelegramCredentials())

	return nil
}
