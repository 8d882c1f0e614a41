package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gridhound/gridhound/internal/model"
	"github.com/gridhound/gridhound/internal/pipeline"
)

var (
	runSources []string
	runForce   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one ingestion run across the configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Runner.Run(ctx, pipeline.RunOptions{
			Sources: runSources,
			Force:   runForce,
		})
		if err != nil {
			return err
		}

		printRun(run)
		return nil
	},
}

func printRun(run *model.RunRecord) {
	fmt.Printf("run %s: %s\n", run.ID, run.Status)
	fmt.Printf("  sources checked: %d\n", run.SourcesChecked)
	fmt.Printf("  projects found:  %d\n", run.ProjectsFound)
	fmt.Printf("  projects stored: %d\n", run.ProjectsStored)
	fmt.Printf("  duration:        %.1fs\n", run.Duration)

	names := make([]string, 0, len(run.BySource))
	for name := range run.BySource {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		outcome := run.BySource[name]
		if outcome.OK {
			fmt.Printf("  %-8s %d records\n", name, outcome.Records)
		} else {
			fmt.Printf("  %-8s FAILED: %s\n", name, outcome.Error)
		}
	}
}

func init() {
	runCmd.Flags().StringSliceVar(&runSources, "sources", nil, "restrict to a subset of sources (default all)")
	runCmd.Flags().BoolVar(&runForce, "force", false, "ignore cadence gating for slow sources")
	rootCmd.AddCommand(runCmd)
}
