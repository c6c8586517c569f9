package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/latencylens/internal/config"
)

// controllerConn is the subset of *kafka.Conn used for topic administration.
type controllerConn interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	DeleteTopics(topics ...string) error
	Close() error
}

type dialFunc func(ctx context.Context, brokers []string) (controllerConn, error)

// EnsureTopic creates the probe topic with the configured layout. An
// existing topic is left as is.
func EnsureTopic(ctx context.Context, cfg config.ProbeConfig, logger *zap.Logger) error {
	return ensureTopic(ctx, dialController, cfg, logger)
}

// DeleteTopic removes the probe topic. A missing topic is not an error.
func DeleteTopic(ctx context.Context, cfg config.ProbeConfig, logger *zap.Logger) error {
	return deleteTopic(ctx, dialController, cfg, logger)
}

func ensureTopic(ctx context.Context, dial dialFunc, cfg config.ProbeConfig, logger *zap.Logger) error {
	conn, err := dial(ctx, cfg.Brokers)
	if err != nil {
		return err
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.Topic,
		NumPartitions:     cfg.Partitions,
		ReplicationFactor: cfg.ReplicationFactor,
	})
	switch {
	case errors.Is(err, kafka.TopicAlreadyExists):
		logger.Info("Topic already exists", zap.String("topic", cfg.Topic))
		return nil
	case err != nil:
		return fmt.Errorf("%w: %s: %w", ErrTopicCreate, cfg.Topic, err)
	}
	logger.Info("Topic created",
		zap.String("topic", cfg.Topic),
		zap.Int("partitions", cfg.Partitions),
		zap.Int("replicationFactor", cfg.ReplicationFactor),
	)
	return nil
}

func deleteTopic(ctx context.Context, dial dialFunc, cfg config.ProbeConfig, logger *zap.Logger) error {
	conn, err := dial(ctx, cfg.Brokers)
	if err != nil {
		return err
	}
	defer conn.Close()

	err = conn.DeleteTopics(cfg.Topic)
	switch {
	case errors.Is(err, kafka.UnknownTopicOrPartition):
		logger.Info("Topic does not exist", zap.String("topic", cfg.Topic))
		return nil
	case err != nil:
		return fmt.Errorf("%w: %s: %w", ErrTopicDelete, cfg.Topic, err)
	}
	logger.Info("Topic deleted", zap.String("topic", cfg.Topic))
	return nil
}

// dialController connects to the first reachable broker, asks it for the
// cluster controller and returns a connection to the controller.
func dialController(ctx context.Context, brokers []string) (controllerConn, error) {
	var errs []error
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		controller, err := conn.Controller()
		_ = conn.Close()
		if err != nil {
			errs = append(errs, err)
			continue
		}

		addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
		ctrl, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return ctrl, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrNoReachableNode, errors.Join(errs...))
}
