package events

import (
	"context"
	"errors"
	"testing"
)

type countingNotifier struct {
	seen []Event
	err  error
}

func (n *countingNotifier) Notify(_ context.Context, ev Event) error {
	n.seen = append(n.seen, ev)
	return n.err
}

func TestEmitRecordsAndNotifies(t *testing.T) {
	store := NewMemoryStore(10)
	n := &countingNotifier{}
	bus := &Bus{Store: store, Notifiers: []Notifier{n}}

	ev, err := bus.Emit(context.Background(), TopicSaleFinalized, "sale-1", map[string]any{"grandTotal": 2700})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if ev.Topic != TopicSaleFinalized || ev.ID == "" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if len(n.seen) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(n.seen))
	}
	if got := store.Recent(1); len(got) != 1 || got[0].AggregateID != "sale-1" {
		t.Fatalf("store did not retain event: %+v", got)
	}
}

func TestEmitRequiresTopicAndAggregate(t *testing.T) {
	bus := &Bus{Store: NewMemoryStore(1)}
	if _, err := bus.Emit(context.Background(), "", "x", nil); err == nil {
		t.Fatal("expected error for empty topic")
	}
	if _, err := bus.Emit(context.Background(), "t", " ", nil); err == nil {
		t.Fatal("expected error for empty aggregate id")
	}
}

func TestEmitRejectsInvalidRawPayload(t *testing.T) {
	bus := &Bus{Store: NewMemoryStore(1)}
	if _, err := bus.Emit(context.Background(), "t", "a", []byte("not-json")); err == nil {
		t.Fatal("expected invalid payload error")
	}
}

func TestNotifierErrorsAreJoinedNotFatal(t *testing.T) {
	n := &countingNotifier{err: errors.New("printer jam")}
	bus := &Bus{Store: NewMemoryStore(1), Notifiers: []Notifier{n}}
	ev, err := bus.Emit(context.Background(), "t", "a", nil)
	if err == nil {
		t.Fatal("expected joined notifier error")
	}
	if ev.ID == "" {
		t.Fatal("event should still be recorded")
	}
}

func TestMemoryStoreRetentionLimit(t *testing.T) {
	store := NewMemoryStore(2)
	bus := &Bus{Store: store}
	for _, id := range []string{"a", "b", "c"} {
		if _, err := bus.Emit(context.Background(), "t", id, nil); err != nil {
			t.Fatalf("emit %s: %v", id, err)
		}
	}
	recent := store.Recent(0)
	if len(recent) != 2 || recent[0].AggregateID != "b" || recent[1].AggregateID != "c" {
		t.Fatalf("unexpected retained events: %+v", recent)
	}
}
