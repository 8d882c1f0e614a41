package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridhound/gridhound/internal/pipeline"
	"github.com/gridhound/gridhound/internal/store"
)

var (
	exportOut      string
	exportMinScore int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump active records as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		n, err := pipeline.ExportCSV(ctx, env.Store, out, store.Filter{MinScore: exportMinScore})
		if err != nil {
			return err
		}
		if exportOut != "" {
			fmt.Printf("wrote %d records to %s\n", n, exportOut)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
	exportCmd.Flags().IntVar(&exportMinScore, "min-score", 0, "only export records at or above this score")
	rootCmd.AddCommand(exportCmd)
}
