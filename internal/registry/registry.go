// Package registry owns chat creation, membership and the denormalized
// per-chat summary fields (last-message preview, unread counters).
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JosueSaenz2006/realtime-chat-engine/internal/apperr"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/identity"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/models"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/store"
)

type Registry struct {
	st  store.Adapter
	ids identity.Provider
	log *zap.SugaredLogger
	now func() int64
}

func New(st store.Adapter, ids identity.Provider, log *zap.SugaredLogger) *Registry {
	return &Registry{
		st:  st,
		ids: ids,
		log: log,
		now: func() int64 { return time.Now().UnixMilli() },
	}
}

func chatPath(chatID string) string { return "chats/" + chatID }

type CreateChatInput struct {
	Participants  []string
	CreatedBy     string
	IsGroup       bool
	GroupName     string
	GroupPhotoURL string
}

func (r *Registry) CreateChat(ctx context.Context, in CreateChatInput) (*models.Chat, error) {
	if in.CreatedBy == "" {
		return nil, apperr.ErrNotAuthenticated
	}

	seen := map[string]bool{}
	var participants []string
	for _, uid := range in.Participants {
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		participants = append(participants, uid)
	}
	if len(participants) < 2 {
		return nil, fmt.Errorf("chat needs at least 2 participants: %w", apperr.ErrValidation)
	}
	if !seen[in.CreatedBy] {
		return nil, fmt.Errorf("creator must be a participant: %w", apperr.ErrValidation)
	}

	now := r.now()
	info := make(map[string]models.ParticipantInfo, len(participants))
	counts := make(map[string]int, len(participants))
	for _, uid := range participants {
		p, err := r.ids.Lookup(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("resolve participant %s: %w", uid, err)
		}
		info[uid] = models.ParticipantInfo{
			UID:         p.UID,
			DisplayName: p.DisplayName,
			PhotoURL:    p.PhotoURL,
			Role:        p.Role,
			JoinedAt:    now,
		}
		counts[uid] = 0
	}

	chat := &models.Chat{
		ID:               uuid.NewString(),
		Participants:     participants,
		ParticipantsInfo: info,
		CreatedBy:        in.CreatedBy,
		CreatedAt:        now,
		IsGroup:          in.IsGroup,
		GroupName:        in.GroupName,
		GroupPhotoURL:    in.GroupPhotoURL,
		UnreadCount:      counts,
	}
	if err := r.st.Set(ctx, chatPath(chat.ID), chat); err != nil {
		return nil, fmt.Errorf("persist chat: %w", err)
	}
	r.log.Infow("chat created", "chat", chat.ID, "participants", len(participants), "group", in.IsGroup)
	return chat, nil
}

func (r *Registry) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	var c models.Chat
	if err := r.st.Get(ctx, chatPath(chatID), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChatsFor returns every chat the user participates in, newest
// activity first (creation time when no message has been sent yet).
func (r *Registry) ListChatsFor(ctx context.Context, userID string) ([]models.Chat, error) {
	raw, err := r.st.List(ctx, "chats")
	if err != nil {
		return nil, err
	}
	chats := make([]models.Chat, 0, len(raw))
	for id, b := range raw {
		var c models.Chat
		if err := json.Unmarshal(b, &c); err != nil {
			r.log.Warnw("skipping undecodable chat", "chat", id, "err", err)
			continue
		}
		c.ID = id
		if c.HasParticipant(userID) {
			chats = append(chats, c)
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		a, b := chats[i].SortKey(), chats[j].SortKey()
		if a != b {
			return a > b
		}
		return chats[i].ID < chats[j].ID
	})
	return chats, nil
}

// Watch streams the user's chat list, recomputed after every store
// change under chats/. The consumer always sees the latest snapshot;
// intermediate ones are dropped when it lags.
func (r *Registry) Watch(ctx context.Context, userID string) (<-chan []models.Chat, func(), error) {
	out := make(chan []models.Chat, 1)
	kick := make(chan struct{}, 1)
	done := make(chan struct{})

	unsub, err := r.st.Subscribe(ctx, "chats", func() {
		select {
		case kick <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return nil, nil, err
	}

	push := func() {
		chats, err := r.ListChatsFor(ctx, userID)
		if err != nil {
			r.log.Warnw("chat list recompute failed", "user", userID, "err", err)
			return
		}
		select {
		case <-out:
		default:
		}
		out <- chats
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

func (r *Registry) AddParticipant(ctx context.Context, chatID, userID, actorID string) error {
	if actorID == "" {
		return apperr.ErrNotAuthenticated
	}
	chat, err := r.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.IsGroup {
		return apperr.ErrNotGroup
	}
	if !chat.HasParticipant(actorID) && !r.isModerator(ctx, actorID) {
		return apperr.ErrPermission
	}
	if chat.HasParticipant(userID) {
		return apperr.ErrAlreadyMember
	}

	p, err := r.ids.Lookup(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve participant %s: %w", userID, err)
	}
	info := models.ParticipantInfo{
		UID:         p.UID,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
		Role:        p.Role,
		JoinedAt:    r.now(),
	}
	fields := map[string]interface{}{
		"participants":               append(chat.Participants, userID),
		"participantsInfo/" + userID: info,
		"unreadCount/" + userID:      0,
	}
	if err := r.st.Update(ctx, chatPath(chatID), fields); err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	r.log.Infow("participant added", "chat", chatID, "user", userID, "actor", actorID)
	return nil
}

func (r *Registry) RemoveParticipant(ctx context.Context, chatID, userID, actorID string) error {
	if actorID == "" {
		return apperr.ErrNotAuthenticated
	}
	chat, err := r.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.IsGroup {
		return apperr.ErrNotGroup
	}
	if actorID != chat.CreatedBy && actorID != userID && !r.isModerator(ctx, actorID) {
		return apperr.ErrPermission
	}
	if !chat.HasParticipant(userID) {
		return apperr.ErrNotMember
	}

	participants := make([]string, 0, len(chat.Participants)-1)
	for _, uid := range chat.Participants {
		if uid != userID {
			participants = append(participants, uid)
		}
	}
	info := make(map[string]models.ParticipantInfo, len(participants))
	counts := make(map[string]int, len(participants))
	for uid, pi := range chat.ParticipantsInfo {
		if uid != userID {
			info[uid] = pi
		}
	}
	for uid, n := range chat.UnreadCount {
		if uid != userID {
			counts[uid] = n
		}
	}

	// all three mappings replaced in the same update call
	fields := map[string]interface{}{
		"participants":     participants,
		"participantsInfo": info,
		"unreadCount":      counts,
	}
	if err := r.st.Update(ctx, chatPath(chatID), fields); err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	r.log.Infow("participant removed", "chat", chatID, "user", userID, "actor", actorID)
	return nil
}

// ApplyLastMessage overwrites the chat's preview unconditionally; the
// message log decides whether a message may become the preview. A nil
// message clears it.
func (r *Registry) ApplyLastMessage(ctx context.Context, chatID string, msg *models.Message) error {
	fields := map[string]interface{}{
		"lastMessage":   nil,
		"lastMessageAt": 0,
	}
	if msg != nil {
		fields["lastMessage"] = models.LastMessage{
			SenderID:   msg.SenderID,
			SenderName: msg.SenderName,
			Content:    msg.Content,
			Type:       msg.Type,
			Timestamp:  msg.Timestamp,
		}
		fields["lastMessageAt"] = msg.Timestamp
	}
	return r.st.Update(ctx, chatPath(chatID), fields)
}

func (r *Registry) isModerator(ctx context.Context, uid string) bool {
	p, err := r.ids.Lookup(ctx, uid)
	if err != nil {
		return false
	}
	return identity.CanModerate(p.Role)
}
