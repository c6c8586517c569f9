package probe

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeController struct {
	created   []kafka.TopicConfig
	deleted   []string
	createErr error
	deleteErr error
	closed    bool
}

func (c *fakeController) CreateTopics(topics ...kafka.TopicConfig) error {
	c.created = append(c.created, topics...)
	return c.createErr
}

func (c *fakeController) DeleteTopics(topics ...string) error {
	c.deleted = append(c.deleted, topics...)
	return c.deleteErr
}

func (c *fakeController) Close() error {
	c.closed = true
	return nil
}

func dialTo(c *fakeController) dialFunc {
	return func(context.Context, []string) (controllerConn, error) {
		return c, nil
	}
}

func TestEnsureTopic(t *testing.T) {
	cfg := testProbeConfig()
	cfg.Partitions = 3
	cfg.ReplicationFactor = 2

	tests := []struct {
		name      string
		createErr error
		wantErr   error
	}{
		{name: "created"},
		{name: "already exists", createErr: kafka.TopicAlreadyExists},
		{name: "rejected", createErr: kafka.InvalidReplicationFactor, wantErr: ErrTopicCreate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{createErr: tt.createErr}
			err := ensureTopic(context.Background(), dialTo(ctrl), cfg, zap.NewNop())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Len(t, ctrl.created, 1)
			assert.Equal(t, kafka.TopicConfig{Topic: cfg.Topic, NumPartitions: 3, ReplicationFactor: 2}, ctrl.created[0])
			assert.True(t, ctrl.closed)
		})
	}
}

func TestDeleteTopic(t *testing.T) {
	cfg := testProbeConfig()

	ctrl := &fakeController{}
	require.NoError(t, deleteTopic(context.Background(), dialTo(ctrl), cfg, zap.NewNop()))
	assert.Equal(t, []string{cfg.Topic}, ctrl.deleted)

	missing := &fakeController{deleteErr: kafka.UnknownTopicOrPartition}
	require.NoError(t, deleteTopic(context.Background(), dialTo(missing), cfg, zap.NewNop()))

	denied := &fakeController{deleteErr: kafka.TopicAuthorizationFailed}
	require.ErrorIs(t, deleteTopic(context.Background(), dialTo(denied), cfg, zap.NewNop()), ErrTopicDelete)
}

func TestTopicDialFailure(t *testing.T) {
	dialErr := errors.New("connection refused")
	dial := func(context.Context, []string) (controllerConn, error) {
		return nil, dialErr
	}
	require.ErrorIs(t, ensureTopic(context.Background(), dial, testProbeConfig(), zap.NewNop()), dialErr)
	require.ErrorIs(t, deleteTopic(context.Background(), dial, testProbeConfig(), zap.NewNop()), dialErr)
}
