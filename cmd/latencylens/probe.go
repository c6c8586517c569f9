package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/latencylens/internal/probe"
)

func (a *app) newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Measure broker round trips and append them to the sample file",
		Args:  cobra.NoArgs,
		RunE:  a.runProbeCmd,
	}
	addKafkaFlags(cmd)

	flags := cmd.Flags()
	flags.Int("samples", 100, "round trips to measure, 0 runs until interrupted")
	flags.Duration("interval", time.Second, "pause between round trips")
	flags.Duration("timeout", 3*time.Second, "give up waiting for a message after this long")
	flags.String("output", "data.txt", "sample file to append to")
	flags.Bool("create-topic", false, "create the topic before probing")

	return cmd
}

func (a *app) runProbeCmd(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := a.setup(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := cfg.Probe.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if cfg.Probe.CreateTopic {
		if err := probe.EnsureTopic(ctx, cfg.Probe, logger.Named("topic")); err != nil {
			return err
		}
	}

	p, err := probe.New(cfg.Probe, a.fs, logger.Named("probe"))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			logger.Warn("Failed to close probe cleanly", zap.Error(cerr))
		}
	}()

	return finish(logger, "Probe", p.Run(ctx))
}
