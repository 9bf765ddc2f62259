package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"metawatch/internal/store"
)

func newJournalCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "journal [date]",
		Short: "Show archived activity for a day",
		Long: `Show the archived closed positions and cancelled orders for a day.
The date is given as YYYY-MM-DD and defaults to today.`,
		Example: `  metawatch journal
  metawatch journal 2026-08-29`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			day := time.Now()
			if len(args) == 1 {
				parsed, err := time.Parse("2006-01-02", args[0])
				if err != nil {
					output.Error("Invalid date %q, expected YYYY-MM-DD", args[0])
					return err
				}
				day = parsed
			}

			if !app.Config.Journal.Enabled {
				output.Warning("Journal is disabled in config.toml")
				return nil
			}

			j, err := store.NewSQLiteJournal(app.Config.Journal.DBPath)
			if err != nil {
				output.Error("Failed to open journal: %v", err)
				return err
			}
			defer j.Close()

			closes, err := j.Closes(cmd.Context(), day)
			if err != nil {
				return err
			}
			cancels, err := j.Cancellations(cmd.Context(), day)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"day":              day.Format("2006-01-02"),
					"closed_positions": closes,
					"cancelled_orders": cancels,
				})
			}

			output.Bold("Journal for %s", day.Format("2006-01-02"))
			output.Println()

			output.Bold("Closed Positions (%d)", len(closes))
			var total float64
			for _, c := range closes {
				total += c.Points
				output.Printf("  %s  %-10s %-7s %+.5f  %s\n",
					c.ClosedAt.Format("15:04:05"), c.Symbol, c.Reason, c.Points, c.ID)
			}
			if len(closes) > 0 {
				output.Printf("  Total: %s points\n", formatPoints(total))
			}
			output.Println()

			output.Bold("Cancelled Orders (%d)", len(cancels))
			for _, c := range cancels {
				output.Printf("  %s  %-10s %-10s @ %v  %s\n",
					c.CancelledAt.Format("15:04:05"), c.Symbol, c.Kind.Label(), c.Price, c.ID)
			}

			return nil
		},
	}
}

func formatPoints(p float64) string {
	return fmt.Sprintf("%+.5f", p)
}
