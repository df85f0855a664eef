package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aegisops/aegis/internal/config"
	"github.com/aegisops/aegis/internal/models"
	"github.com/aegisops/aegis/internal/utils"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive synthetic traffic through an in-process control loop",
	Long: `Generate fake telemetry, web3 and log events and run them through the
full control loop. Storage, cache and Kafka are replaced with in-memory
stand-ins unless the config enables them.

Examples:
  aegis simulate --batches 10 --events 50
  aegis simulate --anomaly-rate 0.3 --mode suggest`,
	RunE: func(cmd *cobra.Command, args []string) error {
		batches, _ := cmd.Flags().GetInt("batches")
		events, _ := cmd.Flags().GetInt("events")
		rate, _ := cmd.Flags().GetFloat64("anomaly-rate")
		seed, _ := cmd.Flags().GetUint64("seed")
		mode, _ := cmd.Flags().GetString("mode")
		verbose, _ := cmd.Flags().GetBool("verbose")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg.Monitor.Enabled = false
		cfg.Healer.SimulateDelays = false
		if mode != "" {
			cfg.Policy.Mode = mode
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		var logOut io.Writer = io.Discard
		if verbose {
			logOut = os.Stderr
		}
		logger := utils.NewLoggerTo(logOut, cfg.Logging.Level, cfg.Logging.JSON)
		return simulate(cmd.Context(), cmd.OutOrStdout(), cfg, logger, simulation{
			batches: batches,
			events:  events,
			gen:     newGenerator(seed, rate),
		})
	},
}

func init() {
	simulateCmd.Flags().Int("batches", 5, "number of batches per source")
	simulateCmd.Flags().Int("events", 40, "events per telemetry batch")
	simulateCmd.Flags().Float64("anomaly-rate", 0.15, "fraction of events carrying an anomalous signal")
	simulateCmd.Flags().Uint64("seed", 42, "faker seed")
	simulateCmd.Flags().String("mode", "", "override policy mode (autonomous|suggest)")
	simulateCmd.Flags().Bool("verbose", false, "print loop logs to stderr")
	rootCmd.AddCommand(simulateCmd)
}

type simulation struct {
	batches int
	events  int
	gen     *generator
}

func simulate(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger, sim simulation) error {
	if ctx == nil {
		ctx = context.Background()
	}
	l, err := buildLoop(ctx, cfg, logger, loopOptions{inMemoryCache: true})
	if err != nil {
		return err
	}
	defer l.close()
	svc := l.service

	start := time.Now()
	for i := 0; i < sim.batches; i++ {
		if _, err := svc.IngestTelemetry(ctx, sim.gen.telemetry(sim.events)); err != nil {
			return err
		}
		if _, err := svc.IngestWeb3(ctx, sim.gen.web3(max(1, sim.events/10))); err != nil {
			return err
		}
		if _, err := svc.IngestLogs(ctx, sim.gen.logs(max(1, sim.events/5))); err != nil {
			return err
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := svc.Stop(stopCtx); err != nil {
		return err
	}

	printSummary(out, svc.Stats(), svc.RecentDecisions(0), l.memory.Alerts(), time.Since(start))
	return nil
}

func printSummary(out io.Writer, stats models.Stats, decisions []models.Decision, alerts []models.Alert, elapsed time.Duration) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(out, "\n%s %s\n\n", cyan("aegis simulation"), gray(elapsed.Round(time.Millisecond)))

	fmt.Fprintf(out, "%s\n", cyan("Scorer"))
	fmt.Fprintf(out, "  predictions:        %d\n", stats.Scorer.Predictions)
	fmt.Fprintf(out, "  anomalies detected: %d\n\n", stats.Scorer.AnomaliesDetected)

	fmt.Fprintf(out, "%s\n", cyan("Decisions"))
	fmt.Fprintf(out, "  made:      %d\n", stats.Decisions.DecisionsMade)
	fmt.Fprintf(out, "  triggered: %s\n", green(stats.Decisions.HealingsTriggered))
	fmt.Fprintf(out, "  mode:      %s\n", stats.Decisions.Mode)

	outcomes := map[models.Outcome]int{}
	for _, d := range decisions {
		outcomes[d.Outcome]++
	}
	names := make([]string, 0, len(outcomes))
	for o := range outcomes {
		names = append(names, string(o))
	}
	sort.Strings(names)
	for _, name := range names {
		n := outcomes[models.Outcome(name)]
		switch models.Outcome(name) {
		case models.OutcomeTriggered:
			fmt.Fprintf(out, "    %-14s %s\n", name, green(n))
		case models.OutcomeRateLimited, models.OutcomePeakHour:
			fmt.Fprintf(out, "    %-14s %s\n", name, yellow(n))
		default:
			fmt.Fprintf(out, "    %-14s %d\n", name, n)
		}
	}

	fmt.Fprintf(out, "\n%s\n", cyan("Healer"))
	fmt.Fprintf(out, "  total:        %d\n", stats.Healer.TotalHealings)
	fmt.Fprintf(out, "  successful:   %s\n", green(stats.Healer.SuccessfulHealings))
	fmt.Fprintf(out, "  failed:       %s\n", red(stats.Healer.FailedHealings))
	fmt.Fprintf(out, "  success rate: %.1f%%\n", stats.Healer.SuccessRate*100)

	if len(alerts) > 0 {
		fmt.Fprintf(out, "\n%s\n", cyan("Alerts"))
		for _, a := range alerts {
			fmt.Fprintf(out, "  %s %s\n", yellow(a.Kind), a.Message)
		}
	}
	fmt.Fprintln(out)
}
