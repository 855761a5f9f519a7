package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"geyserRelay/internal/event"
	"geyserRelay/internal/fanout"
)

type published struct {
	queue string
	body  []byte
}

// fakeBroker scripts dial, declare, and publish outcomes and records what
// the loop did.
type fakeBroker struct {
	mu              sync.Mutex
	dialFailures    int
	declareFailures int
	nacks           int
	publishErrs     int

	dials     int
	declared  []string
	published []published
}

func (b *fakeBroker) Dial(_ context.Context, _ string) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	if b.dialFailures > 0 {
		b.dialFailures--
		return nil, errors.New("connection refused")
	}
	return &fakeSession{b: b}, nil
}

func (b *fakeBroker) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

func (b *fakeBroker) publishedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func (b *fakeBroker) publishedAll() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.published...)
}

type fakeSession struct {
	b *fakeBroker
}

func (s *fakeSession) DeclareQueue(_ context.Context, name string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.b.declareFailures > 0 {
		s.b.declareFailures--
		return errors.New("access refused")
	}
	s.b.declared = append(s.b.declared, name)
	return nil
}

func (s *fakeSession) Publish(_ context.Context, queue string, body []byte) (bool, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.b.publishErrs > 0 {
		s.b.publishErrs--
		return false, errors.New("channel closed")
	}
	if s.b.nacks > 0 {
		s.b.nacks--
		return false, nil
	}
	s.b.published = append(s.b.published, published{queue: queue, body: body})
	return true, nil
}

func (s *fakeSession) Close() error { return nil }

func newTestLoop(b *fakeBroker, ch *fanout.Channel, opts ...LoopOption) *Loop {
	cfg := LoopConfig{URL: "amqp://test", ReconnectDelay: time.Millisecond}
	return NewLoop(cfg, b, ch, NewTopicRouter(), nil, opts...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not reached in time")
}

func TestTopicRouting(t *testing.T) {
	b := &fakeBroker{}
	ch := fanout.NewChannel()
	loop := newTestLoop(b, ch)

	ch.Send(&event.Transaction{Slot: 1})
	ch.Send(&event.AccountUpdate{Slot: 2})
	ch.Send(&event.BlockMeta{Slot: 3})
	ch.Send(&event.SlotStatus{Slot: 4})
	ch.Close()

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got := b.publishedAll()
	want := []string{QueueTransactions, QueueAccountChanges, QueueBlockMeta}
	if len(got) != len(want) {
		t.Fatalf("published %d events, want %d (slot status must be broker-exempt)", len(got), len(want))
	}
	for i, queue := range want {
		if got[i].queue != queue {
			t.Fatalf("event %d routed to %q, want %q", i, got[i].queue, queue)
		}
	}
	if b.dialCount() != 1 {
		t.Fatalf("dialed %d times, want 1", b.dialCount())
	}
}

func TestDeclaresAllQueuesBeforeReady(t *testing.T) {
	b := &fakeBroker{}
	ch := fanout.NewChannel()
	loop := newTestLoop(b, ch)
	ch.Close()

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	want := map[string]bool{QueueAccountChanges: true, QueueBlockMeta: true, QueueTransactions: true}
	if len(b.declared) != len(want) {
		t.Fatalf("declared %v, want the three default queues", b.declared)
	}
	for _, queue := range b.declared {
		if !want[queue] {
			t.Fatalf("unexpected queue declared: %q", queue)
		}
	}
}

func TestReconnectConvergence(t *testing.T) {
	const failures = 3
	b := &fakeBroker{dialFailures: failures}
	ch := fanout.NewChannel()
	loop := newTestLoop(b, ch)

	for slot := uint64(1); slot <= 3; slot++ {
		ch.Send(&event.BlockMeta{Slot: slot})
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	waitFor(t, func() bool { return b.publishedCount() == 3 })
	if b.dialCount() != failures+1 {
		t.Fatalf("dialed %d times, want %d", b.dialCount(), failures+1)
	}

	ch.Close()
	if err := <-done; err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for i, p := range b.publishedAll() {
		var meta event.BlockMeta
		if err := json.Unmarshal(p.body, &meta); err != nil {
			t.Fatalf("payload %d unparseable: %v", i, err)
		}
		if meta.Slot != uint64(i+1) {
			t.Fatalf("event order lost across retries: got slot %d at %d", meta.Slot, i)
		}
	}
}

func TestNackTriggersReconnectAndRedelivery(t *testing.T) {
	b := &fakeBroker{nacks: 1}
	ch := fanout.NewChannel()
	loop := newTestLoop(b, ch)

	ch.Send(&event.BlockMeta{Slot: 7})

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	waitFor(t, func() bool { return b.publishedCount() == 1 })
	if b.dialCount() != 2 {
		t.Fatalf("nack must force a full reconnect: dialed %d times, want 2", b.dialCount())
	}

	var meta event.BlockMeta
	if err := json.Unmarshal(b.publishedAll()[0].body, &meta); err != nil {
		t.Fatalf("payload unparseable: %v", err)
	}
	if meta.Slot != 7 {
		t.Fatalf("nacked event was not redelivered: got slot %d", meta.Slot)
	}

	ch.Close()
	if err := <-done; err != nil {
		t.Fatalf("run failed: %v", err)
	}
}

func TestPublishErrorTriggersReconnectAndRedelivery(t *testing.T) {
	b := &fakeBroker{publishErrs: 1}
	ch := fanout.NewChannel()
	loop := newTestLoop(b, ch)

	ch.Send(&event.Transaction{Slot: 11})

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	waitFor(t, func() bool { return b.publishedCount() == 1 })
	if b.dialCount() != 2 {
		t.Fatalf("publish error must force a reconnect: dialed %d times, want 2", b.dialCount())
	}

	ch.Close()
	if err := <-done; err != nil {
		t.Fatalf("run failed: %v", err)
	}
}

func TestSerializationFailureSkipsEventWithoutReconnect(t *testing.T) {
	b := &fakeBroker{}
	ch := fanout.NewChannel()

	failing := func(ev event.Event) ([]byte, error) {
		if ev.Kind() == event.KindAccountUpdate {
			return nil, fmt.Errorf("unencodable account")
		}
		return event.Marshal(ev)
	}
	loop := newTestLoop(b, ch, WithEncoder(failing))

	ch.Send(&event.AccountUpdate{Slot: 1})
	ch.Send(&event.BlockMeta{Slot: 2})
	ch.Close()

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got := b.publishedAll()
	if len(got) != 1 || got[0].queue != QueueBlockMeta {
		t.Fatalf("expected only the block meta to be published, got %+v", got)
	}
	if b.dialCount() != 1 {
		t.Fatalf("serialization failure must not reconnect: dialed %d times", b.dialCount())
	}
}

func TestDeclareFailureForcesFullReconnect(t *testing.T) {
	b := &fakeBroker{declareFailures: 1}
	ch := fanout.NewChannel()
	loop := newTestLoop(b, ch)

	ch.Send(&event.BlockMeta{Slot: 1})

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	waitFor(t, func() bool { return b.publishedCount() == 1 })
	if b.dialCount() != 2 {
		t.Fatalf("declare failure must redial, not just redeclare: dialed %d times", b.dialCount())
	}

	ch.Close()
	if err := <-done; err != nil {
		t.Fatalf("run failed: %v", err)
	}
}

func TestBlockMetaRoundTrip(t *testing.T) {
	b := &fakeBroker{}
	ch := fanout.NewChannel()
	loop := newTestLoop(b, ch)

	height := uint64(50)
	ch.Send(&event.BlockMeta{
		Slot:                     100,
		BlockHeight:              &height,
		ExecutedTransactionCount: 10,
		Blockhash:                "abc",
		ParentBlockhash:          "xyz",
		Rewards:                  []event.Reward{},
		BlockTime:                1000,
	})
	ch.Close()

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got := b.publishedAll()
	if len(got) != 1 || got[0].queue != QueueBlockMeta {
		t.Fatalf("expected one blockMeta publish, got %+v", got)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(got[0].body, &payload); err != nil {
		t.Fatalf("payload unparseable: %v", err)
	}
	checks := map[string]interface{}{
		"slot":                     float64(100),
		"blockHeight":              float64(50),
		"executedTransactionCount": float64(10),
		"blockhash":                "abc",
		"parentBlockhash":          "xyz",
		"blockTime":                float64(1000),
	}
	for field, want := range checks {
		if payload[field] != want {
			t.Fatalf("payload field %q = %v, want %v", field, payload[field], want)
		}
	}
}

func TestClosedChannelDrainsThenTerminates(t *testing.T) {
	b := &fakeBroker{}
	ch := fanout.NewChannel()
	loop := newTestLoop(b, ch)

	for slot := uint64(1); slot <= 5; slot++ {
		ch.Send(&event.Transaction{Slot: slot})
	}
	ch.Close()

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("loop hung instead of terminating on closed channel")
	}

	if b.publishedCount() != 5 {
		t.Fatalf("published %d events before terminating, want 5", b.publishedCount())
	}
	if loop.State() != StateTerminated {
		t.Fatalf("loop state %v, want terminated", loop.State())
	}
}

func TestFailureAfterCloseAbandonsAndTerminates(t *testing.T) {
	b := &fakeBroker{publishErrs: 1}
	ch := fanout.NewChannel()
	loop := newTestLoop(b, ch)

	ch.Send(&event.Transaction{Slot: 1})
	ch.Close()

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if b.publishedCount() != 0 {
		t.Fatalf("expected the in-flight event to be abandoned, got %d publishes", b.publishedCount())
	}
	if loop.State() != StateTerminated {
		t.Fatalf("loop state %v, want terminated", loop.State())
	}
}

func TestNackEntersConnecting(t *testing.T) {
	b := &fakeBroker{nacks: 1}
	ch := fanout.NewChannel()
	loop := newTestLoop(b, ch)

	loop.session = &fakeSession{b: b}
	loop.state = StatePublishing
	loop.pending = &event.BlockMeta{Slot: 1}

	if next := loop.step(context.Background()); next != StateConnecting {
		t.Fatalf("after nack next state is %v, want connecting", next)
	}
	if loop.pending == nil {
		t.Fatalf("nacked event must stay pending for redelivery")
	}
}

func TestSerializationFailureStaysReady(t *testing.T) {
	b := &fakeBroker{}
	ch := fanout.NewChannel()
	loop := newTestLoop(b, ch, WithEncoder(func(event.Event) ([]byte, error) {
		return nil, fmt.Errorf("boom")
	}))

	loop.session = &fakeSession{b: b}
	loop.state = StatePublishing
	loop.pending = &event.BlockMeta{Slot: 1}

	if next := loop.step(context.Background()); next != StateReady {
		t.Fatalf("after serialization failure next state is %v, want ready", next)
	}
	if loop.pending != nil {
		t.Fatalf("unencodable event must be dropped, not retried")
	}
	if b.dialCount() != 0 {
		t.Fatalf("serialization failure must not touch the connection")
	}
}
