package relay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"geyserRelay/internal/event"
	"geyserRelay/internal/fanout"
)

// DefaultReconnectDelay separates reconnect attempts. The loop retries
// indefinitely at this fixed rate until its channel closes.
const DefaultReconnectDelay = 5 * time.Second

// LoopConfig holds the publisher loop settings.
type LoopConfig struct {
	URL            string
	ReconnectDelay time.Duration
	// ConfirmTimeout bounds the wait for one publish confirmation.
	// Zero means wait indefinitely, matching broker semantics where a
	// confirmation always arrives or the connection dies.
	ConfirmTimeout time.Duration
}

// Encoder turns an event into its broker payload.
type Encoder func(event.Event) ([]byte, error)

// Loop drains one distribution channel and ships each event to the broker
// on the queue selected by its kind. It owns the broker session exclusively
// and survives connection loss, declare failures, and per-publish rejection
// by reconnecting; a payload that fails to serialize is dropped locally
// without touching the connection. The loop terminates only when its
// channel closes and the remaining queue is drained.
type Loop struct {
	cfg     LoopConfig
	dialer  Dialer
	ch      *fanout.Channel
	router  *TopicRouter
	logger  *zap.Logger
	metrics *Metrics
	encode  Encoder

	state   State
	session Session
	// pending is the in-flight event, retained across reconnects so a
	// publish failure republishes it instead of losing it.
	pending event.Event
}

// LoopOption customizes a Loop.
type LoopOption func(*Loop)

// WithEncoder replaces the default payload encoder.
func WithEncoder(enc Encoder) LoopOption {
	return func(l *Loop) { l.encode = enc }
}

// WithMetrics attaches publish counters.
func WithMetrics(m *Metrics) LoopOption {
	return func(l *Loop) { l.metrics = m }
}

func NewLoop(cfg LoopConfig, dialer Dialer, ch *fanout.Channel, router *TopicRouter, logger *zap.Logger, opts ...LoopOption) *Loop {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if router == nil {
		router = NewTopicRouter()
	}
	l := &Loop{
		cfg:    cfg,
		dialer: dialer,
		ch:     ch,
		router: router,
		logger: logger,
		state:  StateDisconnected,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.encode == nil {
		l.encode = event.Marshal
	}
	if l.metrics == nil {
		l.metrics = NewMetrics(nil)
	}
	return l
}

// State returns the current lifecycle position.
func (l *Loop) State() State { return l.state }

// Run drives the state machine until the channel closes and drains, then
// releases the broker session. Broker failures never escape: the only error
// Run returns is context cancellation.
func (l *Loop) Run(ctx context.Context) error {
	defer l.closeSession()
	for l.state != StateTerminated {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.state = l.step(ctx)
	}
	l.logger.Info("publisher loop terminated, channel drained")
	return nil
}

// step performs the entry action of the current state and returns the next
// one. Keeping all transitions here makes the nack-versus-serialization
// policy testable with a fake broker.
func (l *Loop) step(ctx context.Context) State {
	switch l.state {
	case StateDisconnected:
		return StateConnecting

	case StateConnecting:
		session, err := l.dialer.Dial(ctx, l.cfg.URL)
		if err != nil {
			l.logger.Error("broker connect failed", zap.Error(err))
			return l.retry(ctx)
		}
		l.session = session
		return StateDeclaringTopics

	case StateDeclaringTopics:
		for _, queue := range l.router.Queues() {
			if err := l.session.DeclareQueue(ctx, queue); err != nil {
				l.logger.Error("queue declare failed", zap.String("queue", queue), zap.Error(err))
				l.closeSession()
				return l.retry(ctx)
			}
		}
		return StateReady

	case StateReady:
		if l.pending == nil {
			ev, ok := l.ch.Recv()
			if !ok {
				return StateTerminated
			}
			l.pending = ev
		}
		return StatePublishing

	case StatePublishing:
		return l.publish(ctx)

	default:
		return StateTerminated
	}
}

func (l *Loop) publish(ctx context.Context) State {
	ev := l.pending

	queue, ok := l.router.Route(ev.Kind())
	if !ok {
		// No queue assigned for this kind; configured as broker-exempt.
		l.logger.Debug("no queue for event kind, skipping", zap.Stringer("kind", ev.Kind()))
		l.pending = nil
		return StateReady
	}

	body, err := l.encode(ev)
	if err != nil {
		// Local, per-event problem: drop it and keep the connection.
		l.logger.Error("event serialization failed, dropping event",
			zap.Stringer("kind", ev.Kind()),
			zap.Error(err),
		)
		l.metrics.EncodeDrops.Inc()
		l.pending = nil
		return StateReady
	}

	pubCtx := ctx
	if l.cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		pubCtx, cancel = context.WithTimeout(ctx, l.cfg.ConfirmTimeout)
		defer cancel()
	}

	acked, err := l.session.Publish(pubCtx, queue, body)
	if err != nil || !acked {
		if err != nil {
			l.logger.Error("publish failed", zap.String("queue", queue), zap.Error(err))
		} else {
			l.logger.Error("broker nacked publish", zap.String("queue", queue))
		}
		l.metrics.PublishFailures.Inc()
		l.closeSession()
		// The in-flight event stays pending and is republished once the
		// connection is rebuilt; retry abandons it only if the producer
		// side has already closed.
		return l.retry(ctx)
	}

	l.metrics.Published.WithLabelValues(queue).Inc()
	l.pending = nil
	return StateReady
}

// retry waits the fixed delay and re-enters the connect path. When the
// channel has already closed the loop terminates instead of retrying,
// abandoning whatever could not be delivered.
func (l *Loop) retry(ctx context.Context) State {
	if l.ch.Closed() {
		if remaining := l.ch.Len(); remaining > 0 || l.pending != nil {
			l.logger.Warn("abandoning undelivered events, channel closed",
				zap.Int("queued", remaining))
		}
		l.pending = nil
		return StateTerminated
	}
	l.metrics.Reconnects.Inc()
	timer := time.NewTimer(l.cfg.ReconnectDelay)
	select {
	case <-ctx.Done():
		timer.Stop()
	case <-timer.C:
	}
	return StateConnecting
}

func (l *Loop) closeSession() {
	if l.session == nil {
		return
	}
	if err := l.session.Close(); err != nil {
		l.logger.Warn("broker session close failed", zap.Error(err))
	}
	l.session = nil
}
