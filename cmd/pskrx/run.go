package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) runCommand() *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Demodulate samples and serve the constellation panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			r, err := newReceiver(cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return r.run(ctx)
		},
	}
	flags := cmd.Flags()
	flags.DurationVar(&duration, "duration", 0, "stop after provided duration, zero runs until interrupted")
	flags.String("source", "", "input source: generator, file or wav")
	flags.String("input", "", "input file path")
	flags.Bool("loop", false, "restart input file at the end")
	flags.Float64("input-rate", 0, "input sample rate in Hz")
	flags.Int("order", 0, "modulation order: 2, 4 or 8")
	flags.Float64("symbol-rate", 0, "symbol rate in Hz")
	flags.String("capture", "", "capture mode: ring or gated")
	flags.String("record", "", "record symbols to file, extension selects format")
	flags.String("network", "", "stream symbols to host:port over UDP")
	flags.Bool("rtp", false, "wrap streamed symbols in RTP")
	flags.String("listen", "", "panel http address")

	for key, flag := range map[string]string{
		"source.kind":                  "source",
		"source.path":                  "input",
		"source.loop":                  "loop",
		"source.input_rate":            "input-rate",
		"demodulator.modulation_order": "order",
		"demodulator.symbol_rate":      "symbol-rate",
		"capture.mode":                 "capture",
		"sinks.record":                 "record",
		"sinks.network":                "network",
		"sinks.rtp":                    "rtp",
		"server.listen":                "listen",
	} {
		a.v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}
