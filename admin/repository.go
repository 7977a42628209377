package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"homelinka/auth"
	"homelinka/db"
	"homelinka/listing"
	"homelinka/moderation"
)

// ErrNotFound signals the moderated subject does not exist.
var ErrNotFound = errors.New("admin: subject not found")

// Store runs the row-level reads and writes of a moderation decision inside
// the caller's transaction.
type Store interface {
	LockUser(ctx context.Context, tx pgx.Tx, id string) (auth.User, error)
	SetUserStatus(ctx context.Context, tx pgx.Tx, id string, status moderation.UserStatus) (auth.User, error)
	LockListing(ctx context.Context, tx pgx.Tx, id string) (listing.Listing, error)
	SetListingStatus(ctx context.Context, tx pgx.Tx, id string, status moderation.ListingStatus, reviewedAt time.Time) (listing.Listing, error)
	AppendEvent(ctx context.Context, tx pgx.Tx, event Event) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
}

// PGStore implements Store backed by PostgreSQL.
type PGStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewStore(pool *pgxpool.Pool, timeout time.Duration) *PGStore {
	return &PGStore{pool: pool, timeout: timeout}
}

const listingColumns = `id::text, agent_id::text, title, description, price::float8, property_type, listing_type,
	state, city, area, images, status, views, contacts, created_at, updated_at, reviewed_at, edited_at`

func (s *PGStore) LockUser(ctx context.Context, tx pgx.Tx, id string) (auth.User, error) {
	const query = `
		SELECT id::text, email, full_name, phone, whatsapp, business_name, role, status, created_at, updated_at
		FROM users
		WHERE id = $1::uuid
		FOR UPDATE
	`
	user, err := scanUser(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.User{}, ErrNotFound
		}
		return auth.User{}, fmt.Errorf("admin: lock user: %w", err)
	}
	return user, nil
}

func (s *PGStore) SetUserStatus(ctx context.Context, tx pgx.Tx, id string, status moderation.UserStatus) (auth.User, error) {
	const query = `
		UPDATE users
		SET status = $2, updated_at = now()
		WHERE id = $1::uuid
		RETURNING id::text, email, full_name, phone, whatsapp, business_name, role, status, created_at, updated_at
	`
	user, err := scanUser(tx.QueryRow(ctx, query, id, status))
	if err != nil {
		return auth.User{}, fmt.Errorf("admin: set user status: %w", err)
	}
	return user, nil
}

func (s *PGStore) LockListing(ctx context.Context, tx pgx.Tx, id string) (listing.Listing, error) {
	const query = `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE id = $1::uuid
		FOR UPDATE
	`
	l, err := scanListing(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return listing.Listing{}, ErrNotFound
		}
		return listing.Listing{}, fmt.Errorf("admin: lock listing: %w", err)
	}
	return l, nil
}

func (s *PGStore) SetListingStatus(ctx context.Context, tx pgx.Tx, id string, status moderation.ListingStatus, reviewedAt time.Time) (listing.Listing, error) {
	const query = `
		UPDATE listings
		SET status = $2, reviewed_at = $3, updated_at = $3
		WHERE id = $1::uuid
		RETURNING ` + listingColumns
	l, err := scanListing(tx.QueryRow(ctx, query, id, status, reviewedAt))
	if err != nil {
		return listing.Listing{}, fmt.Errorf("admin: set listing status: %w", err)
	}
	return l, nil
}

func (s *PGStore) AppendEvent(ctx context.Context, tx pgx.Tx, event Event) (Event, error) {
	const query = `
		INSERT INTO moderation_events (subject_kind, subject_id, previous_status, next_status, actor_id, reason, created_at)
		VALUES ($1, $2::uuid, $3, $4, $5::uuid, $6, $7)
		RETURNING id, subject_kind, subject_id::text, previous_status, next_status, actor_id::text, reason, created_at
	`
	created, err := scanEvent(tx.QueryRow(ctx, query,
		event.SubjectKind,
		event.SubjectID,
		event.PreviousStatus,
		event.NextStatus,
		event.ActorID,
		event.Reason,
		event.CreatedAt,
	))
	if err != nil {
		return Event{}, fmt.Errorf("admin: append event: %w", err)
	}
	return created, nil
}

func (s *PGStore) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()

	where := []string{"1=1"}
	args := []any{}
	if filter.SubjectKind != "" {
		where = append(where, fmt.Sprintf("subject_kind = $%d", len(args)+1))
		args = append(args, filter.SubjectKind)
	}
	if filter.SubjectID != "" {
		where = append(where, fmt.Sprintf("subject_id = $%d::uuid", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT id, subject_kind, subject_id::text, previous_status, next_status, actor_id::text, reason, created_at
		FROM moderation_events
		WHERE %s
		ORDER BY id DESC
		LIMIT %d`, strings.Join(where, " AND "), limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("admin: list events: %w", db.Classify(err))
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("admin: scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("admin: iterate events: %w", db.Classify(err))
	}
	return events, nil
}

func scanUser(row pgx.Row) (auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &u.WhatsApp, &u.BusinessName, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func scanListing(row pgx.Row) (listing.Listing, error) {
	var l listing.Listing
	err := row.Scan(&l.ID, &l.AgentID, &l.Title, &l.Description, &l.Price, &l.PropertyType, &l.ListingType,
		&l.Location.State, &l.Location.City, &l.Location.Area, &l.Images, &l.Status, &l.Views, &l.Contacts,
		&l.CreatedAt, &l.UpdatedAt, &l.ReviewedAt, &l.EditedAt)
	return l, err
}

func scanEvent(row pgx.Row) (Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.SubjectKind, &e.SubjectID, &e.PreviousStatus, &e.NextStatus, &e.ActorID, &e.Reason, &e.CreatedAt)
	return e, err
}
