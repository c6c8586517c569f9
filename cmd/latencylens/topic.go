package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/latencylens/internal/config"
	"github.com/sanspareilsmyn/latencylens/internal/probe"
)

func (a *app) newTopicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topic",
		Short: "Create or delete the probe topic",
	}
	addKafkaFlags(cmd)

	cmd.AddCommand(a.newTopicActionCmd("create", "Create the probe topic", probe.EnsureTopic))
	cmd.AddCommand(a.newTopicActionCmd("delete", "Delete the probe topic", probe.DeleteTopic))
	return cmd
}

type topicAction func(ctx context.Context, cfg config.ProbeConfig, logger *zap.Logger) error

func (a *app) newTopicActionCmd(use, short string, action topicAction) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			return finish(logger, "Topic "+use, action(cmd.Context(), cfg.Probe, logger.Named("topic")))
		},
	}
}
