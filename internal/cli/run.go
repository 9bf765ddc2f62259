package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"metawatch/internal/broker"
	"metawatch/internal/monitor"
	"metawatch/internal/store"
	"metawatch/internal/telegram"
)

func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start watching the trading account",
		Long: `Start the reconciliation loop: poll the terminal, detect opened and
closed positions and triggered or cancelled pending orders, and notify the
configured Telegram channel. Runs until interrupted.`,
		Example: `  metawatch run
  metawatch run --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if !app.Config.HasBrokerCredentials() {
				output.Error("Broker credentials not configured. Edit credentials.toml first.")
				return fmt.Errorf("broker credentials not configured")
			}
			if !app.Config.HasTelegramCredentials() {
				output.Error("Telegram credentials not configured. Edit credentials.toml first.")
				return fmt.Errorf("telegram credentials not configured")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			terminal := broker.NewMetaAPITerminal(broker.MetaAPIConfig{
				Token:        app.Config.Credentials.Broker.Token,
				AccountID:    app.Config.Credentials.Broker.AccountID,
				BaseURL:      app.Config.Credentials.Broker.BaseURL,
				SymbolSuffix: app.Config.Monitor.SymbolSuffix,
			}, app.Logger)

			bot := telegram.NewBot(telegram.BotConfig{
				BotToken: app.Config.Credentials.Telegram.BotToken,
				ChatID:   app.Config.Credentials.Telegram.ChatID,
			}, app.Logger)

			var journal store.Journal
			if app.Config.Journal.Enabled {
				j, err := store.NewSQLiteJournal(app.Config.Journal.DBPath)
				if err != nil {
					app.Logger.Warn().Err(err).Msg("Failed to open journal, archiving disabled")
				} else {
					journal = j
					defer j.Close()
				}
			}

			mon := monitor.New(monitor.Config{
				PollInterval:       app.Config.Monitor.PollInterval,
				ConfirmationDelay:  app.Config.Monitor.ConfirmationDelay,
				SummaryMinInterval: app.Config.Monitor.SummaryMinInterval,
				ReconnectDelay:     app.Config.Monitor.ReconnectDelay,
			}, terminal, bot, journal, app.Logger)

			output.Info("Watching account %s", app.Config.Credentials.Broker.AccountID)

			err := mon.Run(ctx)
			if ctx.Err() != nil {
				output.Println()
				output.Info("Stopped.")
				return nil
			}
			return err
		},
	}
}
