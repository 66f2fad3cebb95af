// Package messagelog owns the per-chat append-only message record and
// drives the compensating updates to the chat's denormalized preview
// and unread counters after every mutation.
package messagelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JosueSaenz2006/realtime-chat-engine/internal/apperr"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/identity"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/metrics"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/models"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/registry"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/store"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/unread"
)

type Log struct {
	st      store.Adapter
	reg     *registry.Registry
	ids     identity.Provider
	tracker *unread.Tracker
	log     *zap.SugaredLogger

	mu       sync.Mutex
	lastTick int64
}

func New(st store.Adapter, reg *registry.Registry, ids identity.Provider, tracker *unread.Tracker, log *zap.SugaredLogger) *Log {
	return &Log{st: st, reg: reg, ids: ids, tracker: tracker, log: log}
}

func collectionPath(chatID string) string { return "messages/" + chatID }

func messagePath(chatID, msgID string) string { return "messages/" + chatID + "/" + msgID }

// tick hands out epoch-millisecond timestamps that never decrease as
// seen by this writer. Cross-writer order is settled by the stable
// (timestamp, id) sort, not by arrival.
func (l *Log) tick() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UnixMilli()
	if now <= l.lastTick {
		now = l.lastTick + 1
	}
	l.lastTick = now
	return now
}

type MediaRef struct {
	URL  string
	Name string
	Size int64
}

type SendInput struct {
	ChatID   string
	SenderID string
	Type     string
	Content  string
	Media    *MediaRef
}

// Send persists the message, then attempts both projection updates.
// Projection failures never roll the message back: the message is
// returned together with an error wrapping apperr.ErrProjection.
func (l *Log) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	if in.SenderID == "" {
		return nil, apperr.ErrNotAuthenticated
	}
	if in.Type == "" {
		in.Type = models.TypeText
	}
	if !models.ValidMessageType(in.Type) {
		return nil, fmt.Errorf("unknown message type %q: %w", in.Type, apperr.ErrValidation)
	}

	// membership is re-checked against the live chat so a removed
	// participant cannot keep sending
	chat, err := l.reg.GetChat(ctx, in.ChatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(in.SenderID) {
		return nil, apperr.ErrNotMember
	}

	sender, err := l.ids.Lookup(ctx, in.SenderID)
	if err != nil {
		return nil, fmt.Errorf("resolve sender: %w", err)
	}

	msg := &models.Message{
		ID:             uuid.NewString(),
		ChatID:         in.ChatID,
		SenderID:       in.SenderID,
		SenderName:     sender.DisplayName,
		SenderPhotoURL: sender.PhotoURL,
		Type:           in.Type,
		Content:        in.Content,
		Timestamp:      l.tick(),
	}
	if in.Media != nil {
		msg.MediaURL = in.Media.URL
		msg.MediaName = in.Media.Name
		msg.MediaSize = in.Media.Size
	}
	if err := l.st.Set(ctx, messagePath(in.ChatID, msg.ID), msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	// both side effects are attempted even when one fails
	var soft []error
	if err := l.applyPreview(ctx, in.ChatID, msg); err != nil {
		soft = append(soft, fmt.Errorf("preview: %w", err))
	}
	if err := l.tracker.OnMessageSent(ctx, in.ChatID, in.SenderID); err != nil {
		soft = append(soft, fmt.Errorf("unread counters: %w", err))
	}
	if len(soft) > 0 {
		metrics.ProjectionFailures.Inc()
		l.log.Errorw("message persisted but projections failed",
			"chat", in.ChatID, "message", msg.ID, "errs", soft)
		return msg, fmt.Errorf("%w: %s", apperr.ErrProjection, errors.Join(soft...))
	}
	return msg, nil
}

// applyPreview installs msg as the chat's preview unless a newer
// message already owns it. The registry itself overwrites blindly;
// ordering is this log's job.
func (l *Log) applyPreview(ctx context.Context, chatID string, msg *models.Message) error {
	chat, err := l.reg.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.LastMessageAt > msg.Timestamp {
		return nil
	}
	return l.reg.ApplyLastMessage(ctx, chatID, msg)
}

func (l *Log) getMessage(ctx context.Context, chatID, msgID string) (*models.Message, error) {
	var m models.Message
	if err := l.st.Get(ctx, messagePath(chatID, msgID), &m); err != nil {
		return nil, err
	}
	m.ID = msgID
	m.ChatID = chatID
	return &m, nil
}

func (l *Log) Edit(ctx context.Context, chatID, messageID, newContent, actorID string) error {
	if actorID == "" {
		return apperr.ErrNotAuthenticated
	}
	msg, err := l.getMessage(ctx, chatID, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != actorID {
		return fmt.Errorf("only the sender can edit a message: %w", apperr.ErrPermission)
	}

	now := l.tick()
	fields := map[string]interface{}{
		"content":  newContent,
		"isEdited": true,
		"editedAt": now,
	}
	if err := l.st.Update(ctx, messagePath(chatID, messageID), fields); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}

	newest, err := l.newestMessage(ctx, chatID)
	if err != nil {
		return fmt.Errorf("%w: locate newest after edit: %s", apperr.ErrProjection, err)
	}
	if newest != nil && newest.ID == messageID {
		msg.Content = newContent
		if err := l.reg.ApplyLastMessage(ctx, chatID, msg); err != nil {
			return fmt.Errorf("%w: refresh preview after edit: %s", apperr.ErrProjection, err)
		}
	}
	return nil
}

func (l *Log) Delete(ctx context.Context, chatID, messageID, actorID string) error {
	if actorID == "" {
		return apperr.ErrNotAuthenticated
	}
	msg, err := l.getMessage(ctx, chatID, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != actorID && !l.isModerator(ctx, actorID) {
		return fmt.Errorf("only the sender or a moderator can delete: %w", apperr.ErrPermission)
	}

	if err := l.st.Delete(ctx, messagePath(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	l.log.Infow("message deleted", "chat", chatID, "message", messageID, "actor", actorID)

	newest, err := l.newestMessage(ctx, chatID)
	if err != nil {
		return fmt.Errorf("%w: recompute preview after delete: %s", apperr.ErrProjection, err)
	}
	// only a deletion at the head forces the preview to move
	if newest == nil || newest.Before(msg) {
		if err := l.reg.ApplyLastMessage(ctx, chatID, newest); err != nil {
			return fmt.Errorf("%w: recompute preview after delete: %s", apperr.ErrProjection, err)
		}
	}
	return nil
}

// MarkRead flips the read flag and decrements the reader's unread
// counter. Re-reading an already-read message, or a sender reading
// their own message, is a silent no-op.
func (l *Log) MarkRead(ctx context.Context, chatID, messageID, readerID string) error {
	if readerID == "" {
		return apperr.ErrNotAuthenticated
	}
	msg, err := l.getMessage(ctx, chatID, messageID)
	if err != nil {
		return err
	}
	if msg.IsRead || msg.SenderID == readerID {
		return nil
	}
	fields := map[string]interface{}{
		"isRead": true,
		"readAt": l.tick(),
	}
	if err := l.st.Update(ctx, messagePath(chatID, messageID), fields); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if err := l.tracker.OnMessageRead(ctx, chatID, readerID, 1); err != nil {
		return fmt.Errorf("%w: unread decrement: %s", apperr.ErrProjection, err)
	}
	return nil
}

// MarkAllRead marks every unread message from other senders, then
// resets the reader's counter to zero in one authoritative write.
func (l *Log) MarkAllRead(ctx context.Context, chatID, readerID string) error {
	if readerID == "" {
		return apperr.ErrNotAuthenticated
	}
	msgs, err := l.allMessages(ctx, chatID)
	if err != nil {
		return err
	}
	now := l.tick()
	for _, m := range msgs {
		if m.SenderID == readerID || m.IsRead {
			continue
		}
		fields := map[string]interface{}{
			"isRead": true,
			"readAt": now,
		}
		if err := l.st.Update(ctx, messagePath(chatID, m.ID), fields); err != nil {
			return fmt.Errorf("mark read %s: %w", m.ID, err)
		}
	}
	if err := l.tracker.Reset(ctx, chatID, readerID); err != nil {
		return fmt.Errorf("%w: unread reset: %s", apperr.ErrProjection, err)
	}
	return nil
}

// ListMessages returns up to limit most recent messages, oldest first.
func (l *Log) ListMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error) {
	msgs, err := l.allMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Before(&msgs[j]) })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// WatchMessages streams the chat's message window, recomputed after
// every store change under the chat's collection.
func (l *Log) WatchMessages(ctx context.Context, chatID string, limit int) (<-chan []models.Message, func(), error) {
	out := make(chan []models.Message, 1)
	kick := make(chan struct{}, 1)
	done := make(chan struct{})

	unsub, err := l.st.Subscribe(ctx, collectionPath(chatID), func() {
		select {
		case kick <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return nil, nil, err
	}

	push := func() {
		msgs, err := l.ListMessages(ctx, chatID, limit)
		if err != nil {
			l.log.Warnw("message window recompute failed", "chat", chatID, "err", err)
			return
		}
		select {
		case <-out:
		default:
		}
		out <- msgs
	}

	go func() {
		defer close(out)
		push()
		for {
			select {
			case <-kick:
				push()
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	stop := func() {
		unsub()
		close(done)
	}
	return out, stop, nil
}

func (l *Log) allMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	raw, err := l.st.List(ctx, collectionPath(chatID))
	if err != nil {
		return nil, err
	}
	msgs := make([]models.Message, 0, len(raw))
	for id, b := range raw {
		var m models.Message
		if err := json.Unmarshal(b, &m); err != nil {
			l.log.Warnw("skipping undecodable message", "chat", chatID, "message", id, "err", err)
			continue
		}
		m.ID = id
		m.ChatID = chatID
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (l *Log) newestMessage(ctx context.Context, chatID string) (*models.Message, error) {
	msgs, err := l.allMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	var newest *models.Message
	for i := range msgs {
		if newest == nil || newest.Before(&msgs[i]) {
			newest = &msgs[i]
		}
	}
	return newest, nil
}

func (l *Log) isModerator(ctx context.Context, uid string) bool {
	p, err := l.ids.Lookup(ctx, uid)
	if err != nil {
		return false
	}
	return identity.CanModerate(p.Role)
}
