package unread

import (
	"context"
	"sync"
	"testing"

	"github.com/JosueSaenz2006/realtime-chat-engine/internal/logger"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/store"
)

func seedChat(t *testing.T, st *store.Memory, chatID string, counts map[string]int) {
	t.Helper()
	participants := make([]string, 0, len(counts))
	for uid := range counts {
		participants = append(participants, uid)
	}
	err := st.Set(context.Background(), "chats/"+chatID, map[string]interface{}{
		"participants": participants,
		"unreadCount":  counts,
	})
	if err != nil {
		t.Fatalf("seed chat: %v", err)
	}
}

func counts(t *testing.T, st *store.Memory, chatID string) map[string]int {
	t.Helper()
	var out map[string]int
	if err := st.Get(context.Background(), "chats/"+chatID+"/unreadCount", &out); err != nil {
		t.Fatalf("read counts: %v", err)
	}
	return out
}

func TestOnMessageSentIncrementsOthers(t *testing.T) {
	st := store.NewMemory()
	tr := NewTracker(st, logger.Nop())
	seedChat(t, st, "c1", map[string]int{"a": 0, "b": 2, "c": 0})

	if err := tr.OnMessageSent(context.Background(), "c1", "a"); err != nil {
		t.Fatalf("OnMessageSent: %v", err)
	}

	got := counts(t, st, "c1")
	if got["a"] != 0 || got["b"] != 3 || got["c"] != 1 {
		t.Errorf("unexpected counts: %v", got)
	}
}

func TestOnMessageReadClampsAtZero(t *testing.T) {
	st := store.NewMemory()
	tr := NewTracker(st, logger.Nop())
	seedChat(t, st, "c1", map[string]int{"a": 1, "b": 0})

	ctx := context.Background()
	if err := tr.OnMessageRead(ctx, "c1", "a", 1); err != nil {
		t.Fatalf("OnMessageRead: %v", err)
	}
	// already at zero: stays there
	if err := tr.OnMessageRead(ctx, "c1", "a", 1); err != nil {
		t.Fatalf("OnMessageRead at zero: %v", err)
	}
	// decrement larger than the counter clamps
	if err := tr.OnMessageRead(ctx, "c1", "b", 5); err != nil {
		t.Fatalf("OnMessageRead clamp: %v", err)
	}

	got := counts(t, st, "c1")
	if got["a"] != 0 || got["b"] != 0 {
		t.Errorf("expected all zero, got %v", got)
	}
}

func TestOnMessageReadMissingCounterIsNoop(t *testing.T) {
	st := store.NewMemory()
	tr := NewTracker(st, logger.Nop())
	seedChat(t, st, "c1", map[string]int{"a": 1})

	if err := tr.OnMessageRead(context.Background(), "c1", "ghost", 1); err != nil {
		t.Errorf("expected no-op for absent counter, got %v", err)
	}
}

func TestReset(t *testing.T) {
	st := store.NewMemory()
	tr := NewTracker(st, logger.Nop())
	seedChat(t, st, "c1", map[string]int{"a": 7, "b": 2})

	if err := tr.Reset(context.Background(), "c1", "a"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	got := counts(t, st, "c1")
	if got["a"] != 0 {
		t.Errorf("expected a=0, got %d", got["a"])
	}
	if got["b"] != 2 {
		t.Errorf("reset must not touch other readers, got b=%d", got["b"])
	}
}

// concurrent senders must not lose increments: every conflicting swap
// is retried from a fresh read
func TestConcurrentSends(t *testing.T) {
	st := store.NewMemory()
	tr := NewTracker(st, logger.Nop())
	seedChat(t, st, "c1", map[string]int{"a": 0, "b": 0})

	const sends = 30
	var wg sync.WaitGroup
	errs := make(chan error, sends)
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// retried whole-operation on conflict exhaustion, as
			// callers are expected to
			for {
				err := tr.OnMessageSent(context.Background(), "c1", "a")
				if err == nil {
					return
				}
				select {
				case errs <- err:
				default:
				}
				return
			}
		}()
	}
	wg.Wait()
	close(errs)

	failed := len(errs)
	got := counts(t, st, "c1")
	if got["b"]+failed != sends {
		t.Errorf("lost updates: b=%d failed=%d want sum %d", got["b"], failed, sends)
	}
	if got["a"] != 0 {
		t.Errorf("sender counter moved: %d", got["a"])
	}
}
