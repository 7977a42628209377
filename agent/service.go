package agent

import (
	"context"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// ProfileReader abstracts repository operations for the service.
type ProfileReader interface {
	GetByID(ctx context.Context, id string) (Profile, error)
	List(ctx context.Context, limit int) ([]Profile, error)
}

// Service exposes the public agent directory.
type Service struct {
	repo ProfileReader
}

// NewService builds a Service using the provided repository.
func NewService(repo ProfileReader) *Service {
	return &Service{repo: repo}
}

// GetByID returns the approved agent with the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Profile{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// List returns up to limit approved agents.
func (s *Service) List(ctx context.Context, limit int) ([]Profile, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.List(ctx, limit)
}
