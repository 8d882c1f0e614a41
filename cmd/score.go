package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridhound/gridhound/internal/scorer"
)

var scoreIn scorer.Input

// scoreCmd scores a single hypothetical record without touching the store
// or the network, for backfill checks and rule-table audits.
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one record from flags, without fetching or storing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ruleCfg, err := scorer.LoadConfig(cfg.Pipeline.RulesFile)
		if err != nil {
			return err
		}
		sc, err := scorer.New(ruleCfg)
		if err != nil {
			return err
		}

		result := sc.Score(scoreIn)

		out := struct {
			scorer.Result
			ProjectType string `json:"project_type"`
			Suspect     bool   `json:"suspect"`
			Strict      bool   `json:"suspect_strict"`
		}{
			Result:      result,
			ProjectType: string(scorer.ClassifyType(scoreIn)),
			Suspect:     result.Suspect(cfg.Scorer.Cutoff),
			Strict:      result.Suspect(cfg.Scorer.StrictCutoff),
		}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreIn.Name, "name", "", "project name")
	scoreCmd.Flags().StringVar(&scoreIn.Customer, "customer", "", "customer or requesting entity")
	scoreCmd.Flags().StringVar(&scoreIn.Developer, "developer", "", "developer or utility")
	scoreCmd.Flags().StringVar(&scoreIn.County, "county", "", "county")
	scoreCmd.Flags().StringVar(&scoreIn.State, "state", "", "state")
	scoreCmd.Flags().StringVar(&scoreIn.FuelType, "fuel", "", "fuel or request type")
	scoreCmd.Flags().Float64Var(&scoreIn.CapacityMW, "capacity", 0, "capacity in MW")
	rootCmd.AddCommand(scoreCmd)
}
