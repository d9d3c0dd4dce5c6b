package user

import (
	"context"
	"slices"
)

// Service answers identity questions for the booking engine.
type Service interface {
	GetByID(ctx context.Context, id string) (*User, error)

	// Require loads an active user holding role. An empty role accepts any role.
	Require(ctx context.Context, id string, role Role) (*User, error)

	// DisplayNames maps each known id to its display name. Unknown ids are omitted.
	DisplayNames(ctx context.Context, ids []string) (map[string]string, error)
}

type service struct {
	repo Repository
}

// NewService creates a new user Service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) Require(ctx context.Context, id string, role Role) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInactiveUser
	}
	if role != "" && u.Role != role {
		return nil, ErrRoleMismatch.WithDetail("%s is %s, not %s", id, u.Role, role)
	}
	return u, nil
}

func (s *service) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	unique := slices.Compact(slices.Sorted(slices.Values(ids)))
	users, err := s.repo.ListByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name()
	}
	return names, nil
}
