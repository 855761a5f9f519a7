package fanout

import (
	"sync"

	"go.uber.org/zap"

	"geyserRelay/internal/event"
)

// Predicate decides whether an account or transaction event is interesting
// to a filtered output. It must be safe for concurrent calls.
type Predicate func(event.Event) bool

type output struct {
	name     string
	ch       *Channel
	filtered bool
	match    Predicate
}

// OutputOption configures a registered output.
type OutputOption func(*output)

// WithFilter gates account-update and transaction events on the given
// predicate. Transactions that failed on-chain execution never reach a
// filtered output regardless of the predicate. Other event kinds pass
// unconditionally. This is the broker-bound delivery policy; unfiltered
// outputs receive every event.
func WithFilter(match Predicate) OutputOption {
	return func(o *output) {
		o.filtered = true
		o.match = match
	}
}

// Dispatcher fans each event out to every registered output. Dispatch never
// blocks the calling context: sends are non-blocking and a dead output is
// dropped from the registry without affecting delivery to the others.
type Dispatcher struct {
	mu      sync.RWMutex
	outputs []*output
	logger  *zap.Logger
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{logger: logger}
}

// Register adds a named output channel. Outputs registered with WithFilter
// receive only events matching the broker delivery policy.
func (d *Dispatcher) Register(name string, ch *Channel, opts ...OutputOption) {
	out := &output{name: name, ch: ch}
	for _, opt := range opts {
		opt(out)
	}
	d.mu.Lock()
	d.outputs = append(d.outputs, out)
	d.mu.Unlock()
}

// Dispatch forwards an event to every live output. Nothing is reported back
// to the producer; a failed send is logged and the dead output unregistered.
func (d *Dispatcher) Dispatch(ev event.Event) {
	d.mu.RLock()
	outputs := d.outputs
	d.mu.RUnlock()

	var dead []*output
	for _, out := range outputs {
		if out.filtered && !wants(out, ev) {
			continue
		}
		if err := out.ch.Send(ev); err != nil {
			d.logger.Warn("output consumer gone, dropping it",
				zap.String("output", out.name),
				zap.Stringer("kind", ev.Kind()),
			)
			dead = append(dead, out)
		}
	}

	if len(dead) > 0 {
		d.unregister(dead)
	}
}

// Close drops the producer handles: every registered output channel is
// closed so its consumer drains and terminates.
func (d *Dispatcher) Close() {
	d.mu.RLock()
	outputs := d.outputs
	d.mu.RUnlock()
	for _, out := range outputs {
		out.ch.Close()
	}
}

func wants(out *output, ev event.Event) bool {
	switch e := ev.(type) {
	case *event.Transaction:
		if e.Meta.Failed() {
			return false
		}
		return out.match == nil || out.match(ev)
	case *event.AccountUpdate:
		return out.match == nil || out.match(ev)
	default:
		return true
	}
}

func (d *Dispatcher) unregister(dead []*output) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.outputs[:0:0]
	for _, out := range d.outputs {
		alive := true
		for _, gone := range dead {
			if out == gone {
				alive = false
				break
			}
		}
		if alive {
			kept = append(kept, out)
		}
	}
	d.outputs = kept
}
