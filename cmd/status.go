package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridhound/gridhound/internal/model"
	"github.com/gridhound/gridhound/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest run and store counts",
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

		active, err := st.CountProjects(ctx, store.Filter{})
		if err != nil {
			return err
		}
		suspects, err := st.CountProjects(ctx, store.Filter{MinScore: cfg.Scorer.Cutoff})
		if err != nil {
			return err
		}
		total, err := st.CountProjects(ctx, store.Filter{IncludeArchived: true})
		if err != nil {
			return err
		}

		fmt.Printf("projects: %d active (%d total), %d at or above cutoff %d\n",
			active, total, suspects, cfg.Scorer.Cutoff)

		run, err := st.LatestRun(ctx)
		if err != nil {
			return err
		}
		if run == nil {
			fmt.Println("no runs recorded")
			return nil
		}
		printRun(run)

		// A failed latest attempt should not hide the statistics of the
		// last run that actually ingested something.
		if run.Status == model.RunFailed {
			runs, err := st.ListRuns(ctx, statusRunLookback)
			if err != nil {
				return err
			}
			if good := lastGoodRun(runs); good != nil {
				fmt.Println("last good run:")
				printRun(good)
			}
		}
		return nil
	},
}

// statusRunLookback bounds how far back status searches for a good run.
const statusRunLookback = 50

// lastGoodRun returns the most recent run that was not a total failure,
// assuming runs are ordered newest first.
func lastGoodRun(runs []model.RunRecord) *model.RunRecord {
	for i := range runs {
		if runs[i].Status != model.RunFailed {
			return &runs[i]
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
