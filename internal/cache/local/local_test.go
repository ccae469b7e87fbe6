package local

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parlay-labs/poolroom/internal/domain"
)

func TestLockAcquireConflictAndRelease(t *testing.T) {
	lm := NewLockManager()
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "room:a", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if _, err := lm.Acquire(ctx, "room:a", time.Minute); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("second acquire: got %v, want ErrLockHeld", err)
	}

	// A different key is independent.
	unlockB, err := lm.Acquire(ctx, "room:b", time.Minute)
	if err != nil {
		t.Fatalf("acquire other key: %v", err)
	}
	unlockB()

	unlock()
	unlock() // double unlock is a no-op

	if _, err := lm.Acquire(ctx, "room:a", time.Minute); err != nil {
		t.Fatalf("reacquire after unlock: %v", err)
	}
}

func TestLockExpiresAfterTTL(t *testing.T) {
	lm := NewLockManager()
	ctx := context.Background()

	if _, err := lm.Acquire(ctx, "room:a", time.Millisecond); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := lm.Acquire(ctx, "room:a", time.Minute); err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
}

func TestPublishReachesPatternSubscribers(t *testing.T) {
	sb := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exact, err := sb.Subscribe(ctx, "ch:rooms:abc")
	if err != nil {
		t.Fatalf("subscribe exact: %v", err)
	}
	pattern, err := sb.Subscribe(ctx, "ch:rooms:*")
	if err != nil {
		t.Fatalf("subscribe pattern: %v", err)
	}
	other, err := sb.Subscribe(ctx, "ch:rooms:xyz")
	if err != nil {
		t.Fatalf("subscribe other: %v", err)
	}

	if err := sb.Publish(ctx, "ch:rooms:abc", []byte("hi")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for name, ch := range map[string]<-chan []byte{"exact": exact, "pattern": pattern} {
		select {
		case got := <-ch:
			if string(got) != "hi" {
				t.Errorf("%s: payload = %q", name, got)
			}
		case <-time.After(time.Second):
			t.Errorf("%s: no message", name)
		}
	}

	select {
	case got := <-other:
		t.Errorf("other channel received %q", got)
	default:
	}
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	sb := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := sb.Subscribe(ctx, "ch:rooms")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestStreamAppendAndRead(t *testing.T) {
	sb := NewSignalBus()
	ctx := context.Background()

	for _, p := range []string{"one", "two", "three"} {
		if err := sb.StreamAppend(ctx, "stream:rooms", []byte(p)); err != nil {
			t.Fatalf("append %s: %v", p, err)
		}
	}

	msgs, err := sb.StreamRead(ctx, "stream:rooms", "0", 2)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msgs) != 2 || string(msgs[0].Payload) != "one" {
		t.Fatalf("first read = %v", msgs)
	}

	rest, err := sb.StreamRead(ctx, "stream:rooms", msgs[1].ID, 10)
	if err != nil {
		t.Fatalf("read rest: %v", err)
	}
	if len(rest) != 1 || string(rest[0].Payload) != "three" {
		t.Fatalf("rest = %v", rest)
	}

	empty, err := sb.StreamRead(ctx, "stream:rooms", rest[0].ID, 10)
	if err != nil {
		t.Fatalf("read empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no messages, got %v", empty)
	}
}
