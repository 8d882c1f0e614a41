package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gridhound/gridhound/internal/pipeline"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the pipeline on a schedule until interrupted",
	Long:  "Runs an ingestion pass every interval_hours plus once at the daily anchor time, until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		anchorSpec, err := anchorToCron(cfg.Watch.AnchorTime)
		if err != nil {
			return err
		}

		tick := func() {
			run, err := env.Runner.Run(ctx, pipeline.RunOptions{})
			if err != nil {
				zap.L().Error("scheduled run failed", zap.Error(err))
				return
			}
			zap.L().Info("scheduled run finished",
				zap.String("run_id", run.ID),
				zap.String("status", string(run.Status)),
			)
		}

		c := cron.New()
		if _, err := c.AddFunc(fmt.Sprintf("@every %dh", cfg.Watch.IntervalHours), tick); err != nil {
			return eris.Wrap(err, "watch: interval schedule")
		}
		if _, err := c.AddFunc(anchorSpec, tick); err != nil {
			return eris.Wrap(err, "watch: anchor schedule")
		}

		zap.L().Info("watch started",
			zap.Int("interval_hours", cfg.Watch.IntervalHours),
			zap.String("anchor", cfg.Watch.AnchorTime),
		)
		c.Start()
		defer c.Stop()

		// One pass immediately so a fresh deployment is not empty until the
		// first tick.
		tick()

		<-ctx.Done()
		zap.L().Info("watch stopped")
		return nil
	},
}

// anchorToCron converts "HH:MM" into a daily cron spec.
func anchorToCron(anchor string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(anchor), ":", 2)
	if len(parts) != 2 {
		return "", eris.Errorf("watch: invalid anchor time %q (want HH:MM)", anchor)
	}
	var hour, minute int
	if _, err := fmt.Sscanf(parts[0], "%d", &hour); err != nil || hour < 0 || hour > 23 {
		return "", eris.Errorf("watch: invalid anchor hour %q", parts[0])
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &minute); err != nil || minute < 0 || minute > 59 {
		return "", eris.Errorf("watch: invalid anchor minute %q", parts[1])
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
