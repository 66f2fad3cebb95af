// Package search is a stateless query layer over the registry's
// current chat snapshot.
package search

import (
	"context"
	"strings"

	"github.com/JosueSaenz2006/realtime-chat-engine/internal/models"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/registry"
)

type Index struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Index {
	return &Index{reg: reg}
}

// Search filters the caller's chats by case-insensitive substring
// match on the group name (for groups) or any participant's display
// name. Pure function over a snapshot; nothing is persisted.
func (s *Index) Search(ctx context.Context, term, userID string) ([]models.Chat, error) {
	chats, err := s.reg.ListChatsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(term)
	out := make([]models.Chat, 0, len(chats))
	for _, c := range chats {
		if matches(&c, needle) {
			out = append(out, c)
		}
	}
	return out, nil
}

func matches(c *models.Chat, needle string) bool {
	if needle == "" {
		return true
	}
	if c.IsGroup && strings.Contains(strings.ToLower(c.GroupName), needle) {
		return true
	}
	for _, p := range c.ParticipantsInfo {
		if strings.Contains(strings.ToLower(p.DisplayName), needle) {
			return true
		}
	}
	return false
}
