// Package probe measures broker round-trip latency and records it as samples.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/latencylens/internal/config"
	"github.com/sanspareilsmyn/latencylens/internal/samples"
)

// Payload is the body of every probe message. ID doubles as the message key.
type Payload struct {
	ID     string    `json:"id"`
	SentAt time.Time `json:"sent_at"`
	Seq    int       `json:"seq"`
}

// Sample is one measured round trip. A timed out trip still carries the
// time waited, which is at least the configured timeout.
type Sample struct {
	Elapsed  time.Duration
	TimedOut bool
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	SetOffset(offset int64) error
	Close() error
}

var (
	_ messageWriter = (*kafka.Writer)(nil)
	_ messageReader = (*kafka.Reader)(nil)
)

// tailFunc returns the offset the next message on partition 0 will get.
type tailFunc func(ctx context.Context) (int64, error)

// partitionZero sends every message to partition 0, where the reader waits.
type partitionZero struct{}

func (partitionZero) Balance(kafka.Message, ...int) int { return 0 }

// Probe publishes one message at a time and waits for it to come back.
type Probe struct {
	cfg    config.ProbeConfig
	fs     afero.Fs
	writer messageWriter
	reader messageReader
	tail   tailFunc
	logger *zap.Logger
	seq    int
	seeked bool
}

// New creates a probe connected to cfg.Brokers. Before the first message is
// sent the reader is moved to the tail of partition 0, so only messages sent
// by this probe are seen.
func New(cfg config.ProbeConfig, fsys afero.Fs, logger *zap.Logger) (*Probe, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               partitionZero{},
		RequiredAcks:           kafka.RequireAll,
		BatchSize:              1,
		BatchTimeout:           time.Millisecond,
		AllowAutoTopicCreation: false,
		Logger:                 kafkaZapLogger{logger.Named("kafka-writer").WithOptions(zap.AddCallerSkip(1))},
		ErrorLogger:            kafkaZapErrorLogger{logger.Named("kafka-writer-error").WithOptions(zap.AddCallerSkip(1))},
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		Partition:   0,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     50 * time.Millisecond,
		Logger:      kafkaZapLogger{logger.Named("kafka-reader").WithOptions(zap.AddCallerSkip(1))},
		ErrorLogger: kafkaZapErrorLogger{logger.Named("kafka-reader-error").WithOptions(zap.AddCallerSkip(1))},
	})
	logger.Info("Kafka probe created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.Duration("timeout", cfg.Timeout),
		zap.String("output", cfg.Output),
	)
	return newProbe(cfg, fsys, w, r, leaderTail(cfg.Brokers, cfg.Topic), logger), nil
}

func newProbe(cfg config.ProbeConfig, fsys afero.Fs, w messageWriter, r messageReader, tail tailFunc, logger *zap.Logger) *Probe {
	return &Probe{
		cfg:    cfg,
		fs:     fsys,
		writer: w,
		reader: r,
		tail:   tail,
		logger: logger,
	}
}

// leaderTail asks the leader of partition 0 for its last offset.
// kafka.LastOffset would only be resolved on the first fetch, which comes
// after the first write.
func leaderTail(brokers []string, topic string) tailFunc {
	return func(ctx context.Context) (int64, error) {
		var errs []error
		for _, broker := range brokers {
			conn, err := kafka.DialLeader(ctx, "tcp", broker, topic, 0)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			offset, err := conn.ReadLastOffset()
			_ = conn.Close()
			if err != nil {
				errs = append(errs, err)
				continue
			}
			return offset, nil
		}
		return 0, fmt.Errorf("%w: %w", ErrNoReachableNode, errors.Join(errs...))
	}
}

// seekTail positions the reader once, before anything is written.
func (p *Probe) seekTail(ctx context.Context) error {
	if p.seeked {
		return nil
	}
	offset, err := p.tail(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReaderSetup, err)
	}
	if err := p.reader.SetOffset(offset); err != nil {
		return fmt.Errorf("%w: %w", ErrReaderSetup, err)
	}
	p.seeked = true
	p.logger.Debug("Probe reader positioned", zap.Int64("offset", offset))
	return nil
}

// Measure sends one payload and fetches until a message with the same key
// arrives or the timeout elapses. Only cancellation of ctx and broker
// failures are errors.
func (p *Probe) Measure(ctx context.Context) (Sample, error) {
	if err := p.seekTail(ctx); err != nil {
		return Sample{}, err
	}

	p.seq++
	payload := Payload{ID: uuid.NewString(), SentAt: time.Now().UTC(), Seq: p.seq}
	value, err := json.Marshal(payload)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}

	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	err = p.writer.WriteMessages(waitCtx, kafka.Message{Key: []byte(payload.ID), Value: value})
	if err != nil {
		if timedOut(ctx, waitCtx) {
			return p.timeout(payload, start), nil
		}
		if ctx.Err() != nil {
			return Sample{}, ctx.Err()
		}
		return Sample{}, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	for {
		msg, err := p.reader.FetchMessage(waitCtx)
		if err != nil {
			if timedOut(ctx, waitCtx) {
				return p.timeout(payload, start), nil
			}
			if ctx.Err() != nil {
				return Sample{}, ctx.Err()
			}
			return Sample{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		if string(msg.Key) != payload.ID {
			p.logger.Debug("Skipping foreign message", zap.ByteString("key", msg.Key), zap.Int64("offset", msg.Offset))
			continue
		}

		elapsed := time.Since(start)
		var echoed Payload
		if err := json.Unmarshal(msg.Value, &echoed); err != nil || echoed.Seq != payload.Seq {
			p.logger.Warn("Probe message came back altered", zap.String("id", payload.ID), zap.Error(err))
		}
		p.logger.Debug("Probe message received",
			zap.String("id", payload.ID),
			zap.Int("seq", payload.Seq),
			zap.Duration("elapsed", elapsed),
		)
		return Sample{Elapsed: elapsed}, nil
	}
}

// timedOut reports whether waitCtx expired on its own deadline while the
// parent is still live.
func timedOut(parent, waitCtx context.Context) bool {
	return parent.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded)
}

func (p *Probe) timeout(payload Payload, start time.Time) Sample {
	elapsed := time.Since(start)
	p.logger.Warn("Probe message timed out",
		zap.String("id", payload.ID),
		zap.Int("seq", payload.Seq),
		zap.Duration("elapsed", elapsed),
	)
	return Sample{Elapsed: elapsed, TimedOut: true}
}

// Run measures cfg.Samples round trips (forever when zero), appending each to
// cfg.Output and pausing cfg.Interval between them. It returns ctx.Err() when
// cancelled.
func (p *Probe) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	sugar.Infow("Starting probe loop", "samples", p.cfg.Samples, "interval", p.cfg.Interval)

	var recorded, timeouts int
	defer func() {
		sugar.Infow("Probe loop stopped", "recorded", recorded, "timeouts", timeouts)
	}()

	for i := 0; p.cfg.Samples == 0 || i < p.cfg.Samples; i++ {
		if i > 0 {
			if err := pause(ctx, p.cfg.Interval); err != nil {
				return err
			}
		}

		sample, err := p.Measure(ctx)
		if err != nil {
			return err
		}
		if err := samples.Append(p.fs, p.cfg.Output, sample.Elapsed); err != nil {
			return fmt.Errorf("%w: %w", ErrRecordFailed, err)
		}
		recorded++
		if sample.TimedOut {
			timeouts++
		}
	}
	return nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close releases the writer and the reader.
func (p *Probe) Close() error {
	return errors.Join(p.writer.Close(), p.reader.Close())
}
