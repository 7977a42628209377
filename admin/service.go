package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"homelinka/auth"
	"homelinka/db"
	"homelinka/listing"
	"homelinka/moderation"
)

// ErrProtectedAccount signals an attempt to moderate an admin account.
var ErrProtectedAccount = errors.New("admin: admin accounts cannot be moderated")

type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AgentQueue lists accounts by moderation state.
type AgentQueue interface {
	ListByStatus(ctx context.Context, role auth.Role, status moderation.UserStatus) ([]auth.User, error)
}

// ListingQueue lists listings by moderation state.
type ListingQueue interface {
	ListByStatus(ctx context.Context, status moderation.ListingStatus) ([]listing.Detail, error)
}

// Service applies admin moderation decisions. Each decision locks the row,
// validates the transition, writes the new status and appends a moderation
// event in one transaction.
type Service struct {
	pool     TxBeginner
	store    Store
	agents   AgentQueue
	listings ListingQueue
	timeout  time.Duration
	now      func() time.Time
}

func NewService(pool TxBeginner, store Store, agents AgentQueue, listings ListingQueue) *Service {
	return &Service{
		pool:     pool,
		store:    store,
		agents:   agents,
		listings: listings,
		timeout:  db.DefaultTimeout,
		now:      time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// PendingAgents lists agents awaiting approval, oldest first.
func (s *Service) PendingAgents(ctx context.Context, actor auth.Identity) ([]auth.User, error) {
	if err := auth.RequireRole(actor, auth.CapAdmin); err != nil {
		return nil, err
	}
	return s.agents.ListByStatus(ctx, auth.RoleAgent, moderation.UserPending)
}

// PendingListings lists listings awaiting review, oldest first.
func (s *Service) PendingListings(ctx context.Context, actor auth.Identity) ([]listing.Detail, error) {
	if err := auth.RequireRole(actor, auth.CapAdmin); err != nil {
		return nil, err
	}
	return s.listings.ListByStatus(ctx, moderation.ListingPending)
}

// SetAgentStatus moves an agent account to the requested status. Setting the
// current status again is a no-op and records no event.
func (s *Service) SetAgentStatus(ctx context.Context, actor auth.Identity, d Decision) (auth.User, error) {
	if err := auth.RequireRole(actor, auth.CapAdmin); err != nil {
		return auth.User{}, err
	}
	next, err := moderation.ParseUserStatus(d.Status)
	if err != nil {
		return auth.User{}, err
	}
	if _, err := uuid.Parse(d.SubjectID); err != nil {
		return auth.User{}, ErrNotFound
	}

	var result auth.User
	err = s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.store.LockUser(ctx, tx, d.SubjectID)
		if err != nil {
			return err
		}
		if current.Role == auth.RoleAdmin {
			return ErrProtectedAccount
		}
		if err := moderation.ValidateUserTransition(moderation.ActorAdmin, current.Status, next); err != nil {
			return err
		}
		if current.Status == next {
			result = current
			return errNoChange
		}

		updated, err := s.store.SetUserStatus(ctx, tx, d.SubjectID, next)
		if err != nil {
			return err
		}
		if _, err := s.store.AppendEvent(ctx, tx, Event{
			SubjectKind:    moderation.SubjectUser,
			SubjectID:      d.SubjectID,
			PreviousStatus: string(current.Status),
			NextStatus:     string(next),
			ActorID:        &actor.SubjectID,
			Reason:         cleanReason(d.Reason),
			CreatedAt:      s.now().UTC(),
		}); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return auth.User{}, err
	}
	return result, nil
}

// SetListingStatus approves or rejects a listing and stamps reviewed_at.
func (s *Service) SetListingStatus(ctx context.Context, actor auth.Identity, d Decision) (listing.Listing, error) {
	if err := auth.RequireRole(actor, auth.CapAdmin); err != nil {
		return listing.Listing{}, err
	}
	next, err := moderation.ParseListingStatus(d.Status)
	if err != nil {
		return listing.Listing{}, err
	}
	if _, err := uuid.Parse(d.SubjectID); err != nil {
		return listing.Listing{}, ErrNotFound
	}

	var result listing.Listing
	err = s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.store.LockListing(ctx, tx, d.SubjectID)
		if err != nil {
			return err
		}
		if err := moderation.ValidateListingTransition(moderation.ActorAdmin, current.Status, next); err != nil {
			return err
		}
		if current.Status == next {
			result = current
			return errNoChange
		}

		now := s.now().UTC()
		updated, err := s.store.SetListingStatus(ctx, tx, d.SubjectID, next, now)
		if err != nil {
			return err
		}
		if _, err := s.store.AppendEvent(ctx, tx, Event{
			SubjectKind:    moderation.SubjectListing,
			SubjectID:      d.SubjectID,
			PreviousStatus: string(current.Status),
			NextStatus:     string(next),
			ActorID:        &actor.SubjectID,
			Reason:         cleanReason(d.Reason),
			CreatedAt:      now,
		}); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return listing.Listing{}, err
	}
	return result, nil
}

// History returns moderation events, newest first.
func (s *Service) History(ctx context.Context, actor auth.Identity, filter EventFilter) ([]Event, error) {
	if err := auth.RequireRole(actor, auth.CapAdmin); err != nil {
		return nil, err
	}
	if filter.SubjectKind != "" && filter.SubjectKind != moderation.SubjectUser && filter.SubjectKind != moderation.SubjectListing {
		return nil, fmt.Errorf("%w: subject kind %q", moderation.ErrUnknownStatus, filter.SubjectKind)
	}
	if filter.SubjectID != "" {
		if _, err := uuid.Parse(filter.SubjectID); err != nil {
			return []Event{}, nil
		}
	}
	return s.store.ListEvents(ctx, filter)
}

var errNoChange = errors.New("admin: no change")

// inTx runs fn in a transaction bounded by the store timeout. errNoChange
// rolls back without reporting an error.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return db.Bounded(ctx, s.timeout, func(ctx context.Context) error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("admin: begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(ctx, tx); err != nil {
			if errors.Is(err, errNoChange) {
				return nil
			}
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("admin: commit tx: %w", err)
		}
		return nil
	})
}

func cleanReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*reason)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
