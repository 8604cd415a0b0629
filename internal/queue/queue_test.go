package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemory_PublishConsume(t *testing.T) {
	q := NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, k := range []string{"a/2026-10-19/lunch", "b/2026-10-19/dinner"} {
		if err := q.Publish(ctx, Message{Type: TypeObjectOrphaned, Key: k}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if q.Len() != 2 {
		t.Fatalf("Len = %d", q.Len())
	}
	ch, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	for _, want := range []string{"a/2026-10-19/lunch", "b/2026-10-19/dinner"} {
		select {
		case msg := <-ch:
			if msg.Key != want {
				t.Fatalf("got %q, want %q", msg.Key, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed after cancel")
	}
}

func TestInMemory_PublishHonoursContext(t *testing.T) {
	q := NewInMemory(1)
	_ = q.Publish(context.Background(), Message{Key: "x"})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Publish(ctx, Message{Key: "y"}); err == nil {
		t.Fatalf("expected full queue to block until deadline")
	}
}
