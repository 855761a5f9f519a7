package relay

import (
	"sort"

	"geyserRelay/internal/event"
)

// Queue names on the broker, one per published event kind.
const (
	QueueTransactions   = "transactions"
	QueueAccountChanges = "accountChanges"
	QueueBlockMeta      = "blockMeta"
	QueueSlotStatus     = "slotStatus"
)

// TopicRouter maps event kinds to broker queues. Slot status events carry
// no route by default: publishing them is opt-in via WithSlotStatusTopic,
// and an unrouted event is dropped by the loop rather than treated as an
// error.
type TopicRouter struct {
	routes map[event.Kind]string
}

// RouterOption extends the default routing table.
type RouterOption func(*TopicRouter)

// WithSlotStatusTopic routes slot status events to the slotStatus queue.
func WithSlotStatusTopic() RouterOption {
	return func(r *TopicRouter) {
		r.routes[event.KindSlotStatus] = QueueSlotStatus
	}
}

func NewTopicRouter(opts ...RouterOption) *TopicRouter {
	r := &TopicRouter{routes: map[event.Kind]string{
		event.KindTransaction:   QueueTransactions,
		event.KindAccountUpdate: QueueAccountChanges,
		event.KindBlockMeta:     QueueBlockMeta,
	}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route returns the queue for a kind and whether one is assigned.
func (r *TopicRouter) Route(k event.Kind) (string, bool) {
	queue, ok := r.routes[k]
	return queue, ok
}

// Queues lists every routed queue in stable order for declaration.
func (r *TopicRouter) Queues() []string {
	queues := make([]string, 0, len(r.routes))
	for _, q := range r.routes {
		queues = append(queues, q)
	}
	sort.Strings(queues)
	return queues
}
