package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"geyserRelay/internal/fanout"
)

// Sink drains one distribution channel into a Writer, batching writes. It
// is one of the independent fan-out consumers; a broken writer stops only
// this sink, never the producer or the other consumers.
type Sink struct {
	name      string
	ch        *fanout.Channel
	writer    Writer
	batchSize int
	logger    *zap.Logger
}

func NewSink(name string, ch *fanout.Channel, writer Writer, batchSize int, logger *zap.Logger) *Sink {
	if batchSize <= 0 {
		batchSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{name: name, ch: ch, writer: writer, batchSize: batchSize, logger: logger}
}

// Run consumes the channel until it closes and drains, flushing a batch
// whenever it fills. On a write failure the sink stops its channel so the
// dispatcher drops it, and returns the error.
func (s *Sink) Run(ctx context.Context) error {
	batch := make([]Envelope, 0, s.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.writer.WriteEvents(ctx, batch); err != nil {
			return fmt.Errorf("sink %s: %w", s.name, err)
		}
		batch = batch[:0]
		return nil
	}

	for {
		ev, ok := s.ch.Recv()
		if !ok {
			if err := flush(); err != nil {
				s.fail(err)
				return err
			}
			s.logger.Info("sink drained, channel closed", zap.String("sink", s.name))
			return nil
		}

		envelope, err := NewEnvelope(ev, time.Now())
		if err != nil {
			s.logger.Error("envelope encode failed, dropping event",
				zap.String("sink", s.name),
				zap.Stringer("kind", ev.Kind()),
				zap.Error(err),
			)
			continue
		}
		batch = append(batch, envelope)

		if len(batch) >= s.batchSize || s.ch.Len() == 0 {
			if err := flush(); err != nil {
				s.fail(err)
				return err
			}
		}
	}
}

func (s *Sink) fail(err error) {
	s.logger.Error("sink stopped", zap.String("sink", s.name), zap.Error(err))
	s.ch.Stop()
}
