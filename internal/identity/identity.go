// Package identity resolves user profiles and caller roles. Identity
// issuance lives in an external provider; the engine only looks users
// up and checks capabilities.
package identity

import (
	"context"
	"fmt"

	"github.com/JosueSaenz2006/realtime-chat-engine/internal/apperr"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/models"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/store"
)

type Provider interface {
	Lookup(ctx context.Context, uid string) (*models.UserProfile, error)
}

// CanModerate is the single capability predicate for privileged
// actions (deleting others' messages, group membership overrides).
func CanModerate(role string) bool {
	return role == models.RoleAdmin
}

// Directory resolves profiles from the users/ tree of the store, the
// same documents the auth provider maintains.
type Directory struct {
	st store.Adapter
}

func NewDirectory(st store.Adapter) *Directory {
	return &Directory{st: st}
}

func (d *Directory) Lookup(ctx context.Context, uid string) (*models.UserProfile, error) {
	var u models.User
	if err := d.st.Get(ctx, "users/"+uid, &u); err != nil {
		return nil, fmt.Errorf("lookup %s: %w", uid, err)
	}
	return &models.UserProfile{
		UID:         u.UID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		Role:        u.Role,
	}, nil
}

// Static serves a fixed set of profiles, used by tests and local runs.
type Static struct {
	users map[string]models.UserProfile
}

func NewStatic(users ...models.UserProfile) *Static {
	m := make(map[string]models.UserProfile, len(users))
	for _, u := range users {
		m[u.UID] = u
	}
	return &Static{users: m}
}

func (s *Static) Lookup(ctx context.Context, uid string) (*models.UserProfile, error) {
	u, ok := s.users[uid]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &u, nil
}
