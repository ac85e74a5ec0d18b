package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stressguard/internal/alert"
	"github.com/felixgeelhaar/stressguard/internal/log"
	"github.com/felixgeelhaar/stressguard/internal/metrics"
	"github.com/felixgeelhaar/stressguard/internal/sensor"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate a wrist sensor sending stress alerts",
	Long: `Generate BVP, EDA and temperature readings that drift between relaxed and
stressed episodes. Every tick whose EDA is in the stress zone is sent to the
alert receiver started with "stressguard listen".

Example:
  stressguard simulate
  stressguard simulate --interval 500ms --count 40 --seed 7`,
	Args: cobra.NoArgs,
	RunE: instrumented(runSimulate),
}

var (
	simulateAddr        string
	simulateInterval    time.Duration
	simulateCount       int
	simulateSeed        uint64
	simulateProbability float64
)

func init() {
	defaults := sensor.DefaultConfig()
	simulateCmd.Flags().StringVar(&simulateAddr, "addr", "", "alert receiver address (default from config, "+alert.DefaultAddr+")")
	simulateCmd.Flags().DurationVar(&simulateInterval, "interval", defaults.Interval, "time between readings")
	simulateCmd.Flags().IntVar(&simulateCount, "count", 0, "stop after this many readings, 0 runs until interrupted")
	simulateCmd.Flags().Uint64Var(&simulateSeed, "seed", 0, "random seed for a reproducible run, 0 for a random one")
	simulateCmd.Flags().Float64Var(&simulateProbability, "stress-probability", defaults.StressProbability, "chance per reading of switching between relaxed and stressed")

	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	addr := simulateAddr
	if addr == "" {
		addr = appConfig.Alerts.Addr
	}

	sim := sensor.New(sensor.Config{
		Addr:              addr,
		Interval:          simulateInterval,
		Count:             simulateCount,
		Seed:              simulateSeed,
		StressProbability: simulateProbability,
	}, observedSend(alert.Send), log.DefaultLogger())

	fmt.Fprintf(out, "Enviando lecturas a %s cada %s\n", addr, simulateInterval)
	stats, err := sim.Run(cmd.Context())
	fmt.Fprintf(out, "Lecturas: %d  Alertas enviadas: %d  Fallidas: %d\n", stats.Ticks, stats.Sent, stats.Failed)
	if err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// observedSend counts every delivery attempt in the alert metrics
func observedSend(send sensor.Sender) sensor.Sender {
	return func(ctx context.Context, addr string, r alert.Reading) error {
		err := send(ctx, addr, r)
		metrics.GetDefault().ObserveAlertSent(err)
		return err
	}
}
