package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridhound/gridhound/internal/store"
)

var (
	sweepWindowDays int
	sweepPurge      bool
)

// sweepCmd runs the retention pass, decoupled from ingestion so it can run
// on its own cadence. Archiving is the default; physical deletion is
// opt-in.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Archive or purge records not seen within the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.Open(cfg.Store.Driver, cfg.Store.DatabaseURL, cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		days := sweepWindowDays
		if days <= 0 {
			days = cfg.Retention.WindowDays
		}
		window := time.Duration(days) * 24 * time.Hour

		if sweepPurge {
			n, err := st.PurgeOlderThan(ctx, window)
			if err != nil {
				return err
			}
			fmt.Printf("purged %d records older than %d days\n", n, days)
			return nil
		}

		n, err := st.ArchiveStale(ctx, window)
		if err != nil {
			return err
		}
		fmt.Printf("archived %d records not seen in %d days\n", n, days)
		return nil
	},
}

func init() {
	sweepCmd.Flags().IntVar(&sweepWindowDays, "window-days", 0, "retention window in days (default from config)")
	sweepCmd.Flags().BoolVar(&sweepPurge, "purge", false, "physically delete instead of archiving")
	rootCmd.AddCommand(sweepCmd)
}
