package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/latencylens/internal/config"
	"github.com/sanspareilsmyn/latencylens/internal/logging"
)

// app carries what every subcommand shares.
type app struct {
	fs         afero.Fs
	configFile string
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	rootCmd := newRootCmd(afero.NewOsFs())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(fsys afero.Fs) *cobra.Command {
	a := &app{fs: fsys}

	rootCmd := &cobra.Command{
		Use:           "latencylens",
		Short:         "Summarize and chart latency samples",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "path to a YAML, TOML or JSON config file")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "console", "log format: console, json, none")

	rootCmd.AddCommand(a.newAnalyzeCmd())
	rootCmd.AddCommand(a.newProbeCmd())
	rootCmd.AddCommand(a.newTopicCmd())

	return rootCmd
}

// setup loads the configuration for cmd and builds the logger.
func (a *app) setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(a.configFile, cmd.Flags())
	if err != nil {
		if errors.Is(err, config.ErrConfigFileMissing) {
			return nil, nil, fmt.Errorf("%w: %s", err, a.configFile)
		}
		return nil, nil, err
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Debug("Configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("config", a.configFile),
	)
	return cfg, logger, nil
}

// finish logs how a long-running command ended. Cancellation by signal is a
// clean shutdown.
func finish(logger *zap.Logger, name string, err error) error {
	switch {
	case err == nil:
		logger.Info(name + " completed")
		return nil
	case errors.Is(err, context.Canceled):
		logger.Info(name + " cancelled, shutting down")
		return nil
	default:
		logger.Error(name+" stopped unexpectedly", zap.Error(err))
		return err
	}
}

func addKafkaFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringSlice("brokers", []string{"localhost:9092"}, "kafka bootstrap brokers")
	flags.String("topic", "latencylens-probe", "probe topic")
	flags.Int("partitions", 1, "partitions when creating the topic")
	flags.Int("replication", 1, "replication factor when creating the topic")
}
