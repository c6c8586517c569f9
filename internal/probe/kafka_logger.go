package probe

import (
	"fmt"

	"go.uber.org/zap"
)

// kafkaZapLogger adapts zap to kafka.Logger. kafka-go is chatty, so its
// informational output goes to debug.
type kafkaZapLogger struct {
	log *zap.Logger
}

func (l kafkaZapLogger) Printf(msg string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(msg, args...))
}

type kafkaZapErrorLogger struct {
	log *zap.Logger
}

func (l kafkaZapErrorLogger) Printf(msg string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(msg, args...))
}
