package lead

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"homelinka/auth"
)

// ErrValidation signals malformed lead input.
var ErrValidation = errors.New("lead: validation failed")

const maxMessageLength = 2000

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create records a visitor enquiry on an APPROVED listing.
func (s *Service) Create(ctx context.Context, params CreateParams) (Record, error) {
	if _, err := uuid.Parse(params.ListingID); err != nil {
		return Record{}, ErrNotFound
	}
	params.Name = strings.TrimSpace(params.Name)
	params.Phone = strings.TrimSpace(params.Phone)
	params.Message = strings.TrimSpace(params.Message)
	switch {
	case params.Name == "":
		return Record{}, fmt.Errorf("%w: name is required", ErrValidation)
	case params.Phone == "":
		return Record{}, fmt.Errorf("%w: phone is required", ErrValidation)
	case len(params.Message) > maxMessageLength:
		return Record{}, fmt.Errorf("%w: message is too long", ErrValidation)
	}
	return s.store.Create(ctx, params)
}

// List returns leads on listings the caller owns, optionally for one listing.
func (s *Service) List(ctx context.Context, identity auth.Identity, listingID string) ([]Record, error) {
	if err := auth.RequireRole(identity, auth.CapAgent); err != nil {
		return nil, err
	}
	if listingID != "" {
		if _, err := uuid.Parse(listingID); err != nil {
			return []Record{}, nil
		}
	}
	return s.store.List(ctx, ownerScope(identity), listingID)
}

// MarkHandled closes a lead on a listing the caller owns.
func (s *Service) MarkHandled(ctx context.Context, identity auth.Identity, leadID string) (Record, error) {
	if err := auth.RequireRole(identity, auth.CapAgent); err != nil {
		return Record{}, err
	}
	if _, err := uuid.Parse(leadID); err != nil {
		return Record{}, ErrNotFoundOrForbidden
	}
	return s.store.MarkHandled(ctx, ownerScope(identity), leadID)
}

func ownerScope(identity auth.Identity) string {
	if identity.IsAdmin() {
		return ""
	}
	return identity.SubjectID
}
