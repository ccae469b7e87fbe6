// Package local provides in-process implementations of domain.LockManager
// and domain.SignalBus for dev mode, where no Redis is available. The redis
// package provides the production implementations.
package local

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/parlay-labs/poolroom/internal/domain"
)

// LockManager implements domain.LockManager with a plain mutex-guarded set.
// TTLs are honored so an unlock leak cannot wedge a room forever.
type LockManager struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// NewLockManager creates an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]time.Time)}
}

// Acquire takes the lock for key or returns domain.ErrLockHeld. The returned
// unlock function is safe to call multiple times.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if expiry, ok := lm.held[key]; ok && time.Now().Before(expiry) {
		return nil, domain.ErrLockHeld
	}
	lm.held[key] = time.Now().Add(ttl)

	released := false
	unlock := func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		if released {
			return
		}
		released = true
		delete(lm.held, key)
	}
	return unlock, nil
}

// SignalBus implements domain.SignalBus with channels and slices. Pattern
// subscriptions support a trailing "*" wildcard, which is the only pattern
// form the service uses.
type SignalBus struct {
	mu      sync.Mutex
	subs    map[string][]chan []byte
	streams map[string][]domain.StreamMessage
}

// NewSignalBus creates an empty signal bus.
func NewSignalBus() *SignalBus {
	return &SignalBus{
		subs:    make(map[string][]chan []byte),
		streams: make(map[string][]domain.StreamMessage),
	}
}

// Publish fans payload out to every subscription matching channel. Slow
// subscribers drop messages rather than block the publisher.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	for pattern, chans := range sb.subs {
		if !channelMatches(pattern, channel) {
			continue
		}
		for _, ch := range chans {
			select {
			case ch <- payload:
			default:
			}
		}
	}
	return nil
}

// Subscribe registers for channel (optionally a trailing-"*" pattern) and
// returns a channel closed when ctx is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)

	sb.mu.Lock()
	sb.subs[channel] = append(sb.subs[channel], ch)
	sb.mu.Unlock()

	go func() {
		<-ctx.Done()
		sb.mu.Lock()
		chans := sb.subs[channel]
		for i, c := range chans {
			if c == ch {
				sb.subs[channel] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		sb.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// StreamAppend appends payload to a named in-memory stream.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	id := strconv.Itoa(len(sb.streams[stream]) + 1)
	sb.streams[stream] = append(sb.streams[stream], domain.StreamMessage{ID: id, Payload: payload})
	return nil
}

// StreamRead returns up to count messages after lastID ("" or "0" for the
// beginning).
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	start := 0
	if lastID != "" && lastID != "0" {
		n, err := strconv.Atoi(lastID)
		if err != nil {
			return nil, err
		}
		start = n
	}

	msgs := sb.streams[stream]
	if start >= len(msgs) {
		return nil, nil
	}
	out := msgs[start:]
	if count > 0 && len(out) > count {
		out = out[:count]
	}
	return append([]domain.StreamMessage(nil), out...), nil
}

func channelMatches(pattern, channel string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(channel, prefix)
	}
	return pattern == channel
}

// Compile-time interface checks.
var (
	_ domain.LockManager = (*LockManager)(nil)
	_ domain.SignalBus   = (*SignalBus)(nil)
)
