// Package unread maintains the per-participant unread counters. The
// store has no multi-key transactions, so every mutation is a
// read-compute-swap loop with a bounded number of attempts; a reset to
// zero is written unconditionally and therefore always beats a racing
// decrement.
package unread

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JosueSaenz2006/realtime-chat-engine/internal/apperr"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/metrics"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/store"
)

const maxAttempts = 3

type Tracker struct {
	st  store.Adapter
	log *zap.SugaredLogger
}

func NewTracker(st store.Adapter, log *zap.SugaredLogger) *Tracker {
	return &Tracker{st: st, log: log}
}

func countsPath(chatID string) string {
	return "chats/" + chatID + "/unreadCount"
}

// OnMessageSent bumps the counter of every participant except the
// sender in one combined write, keeping the lost-update window to a
// single swap.
func (t *Tracker) OnMessageSent(ctx context.Context, chatID, senderID string) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		cur := map[string]int{}
		if err := t.st.Get(ctx, countsPath(chatID), &cur); err != nil {
			return fmt.Errorf("read unread counts: %w", err)
		}
		next := make(map[string]int, len(cur))
		for uid, n := range cur {
			if uid == senderID {
				next[uid] = n
			} else {
				next[uid] = n + 1
			}
		}
		ok, err := t.st.Swap(ctx, countsPath(chatID), cur, next)
		if err != nil {
			return fmt.Errorf("write unread counts: %w", err)
		}
		if ok {
			return nil
		}
		metrics.UnreadConflictRetries.Inc()
		t.log.Debugw("unread increment conflicted, retrying", "chat", chatID, "attempt", attempt+1)
	}
	metrics.UnreadConflictFailures.Inc()
	return fmt.Errorf("increment unread for chat %s: %w", chatID, apperr.ErrConflict)
}

// OnMessageRead decrements the reader's counter by n, clamped at zero.
func (t *Tracker) OnMessageRead(ctx context.Context, chatID, readerID string, n int) error {
	path := countsPath(chatID) + "/" + readerID
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var cur int
		if err := t.st.Get(ctx, path, &cur); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("read unread count: %w", err)
		}
		if cur == 0 {
			return nil
		}
		next := cur - n
		if next < 0 {
			next = 0
		}
		ok, err := t.st.Swap(ctx, path, cur, next)
		if err != nil {
			return fmt.Errorf("write unread count: %w", err)
		}
		if ok {
			return nil
		}
		metrics.UnreadConflictRetries.Inc()
		t.log.Debugw("unread decrement conflicted, retrying", "chat", chatID, "reader", readerID, "attempt", attempt+1)
	}
	metrics.UnreadConflictFailures.Inc()
	return fmt.Errorf("decrement unread for %s in chat %s: %w", readerID, chatID, apperr.ErrConflict)
}

// Reset zeroes the reader's counter unconditionally. The plain Set is
// deliberate: the bulk mark-all-read is authoritative over any racing
// per-message decrement, whose swap will then fail its compare and
// re-read the zero.
func (t *Tracker) Reset(ctx context.Context, chatID, readerID string) error {
	if err := t.st.Set(ctx, countsPath(chatID)+"/"+readerID, 0); err != nil {
		return fmt.Errorf("reset unread count: %w", err)
	}
	return nil
}
