package lead

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"homelinka/db"
)

var (
	ErrNotFound            = errors.New("lead: listing not found")
	ErrNotFoundOrForbidden = errors.New("lead: not found or not owned")
	ErrAlreadyHandled      = errors.New("lead: already handled")
)

// Store persists leads. ownerID scopes reads and writes to listings the agent
// owns; an empty ownerID is reserved for admins.
type Store interface {
	Create(ctx context.Context, params CreateParams) (Record, error)
	List(ctx context.Context, ownerID, listingID string) ([]Record, error)
	MarkHandled(ctx context.Context, ownerID, leadID string) (Record, error)
}

type Repository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewRepository(pool *pgxpool.Pool, timeout time.Duration) *Repository {
	return &Repository{pool: pool, timeout: timeout}
}

const leadColumns = `id::text, listing_id::text, name, phone, message, status, created_at, updated_at, handled_at`

func (r *Repository) List(ctx context.Context, ownerID, listingID string) ([]Record, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ld.id::text, ld.listing_id::text, ld.name, ld.phone, ld.message, ld.status, ld.created_at, ld.updated_at, ld.handled_at
		FROM leads ld
		JOIN listings l ON l.id = ld.listing_id
		WHERE ($1::uuid IS NULL OR l.agent_id = $1::uuid)
	`
	args := []any{nullable(ownerID)}
	if listingID != "" {
		query += " AND ld.listing_id = $2::uuid"
		args = append(args, listingID)
	}
	query += " ORDER BY ld.created_at DESC, ld.id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lead: list: %w", db.Classify(err))
	}
	defer rows.Close()

	out := make([]Record, 0, 8)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("lead: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lead: iterate: %w", db.Classify(err))
	}
	return out, nil
}

// Create stores a lead only when the listing is publicly visible.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Record, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		INSERT INTO leads (listing_id, name, phone, message, status)
		SELECT l.id, $2, $3, $4, 'NEW'
		FROM listings l
		WHERE l.id = $1::uuid AND l.status = 'APPROVED'
		RETURNING ` + leadColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, params.ListingID, params.Name, params.Phone, params.Message))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("lead: create: %w", db.Classify(err))
	}
	return rec, nil
}

func (r *Repository) MarkHandled(ctx context.Context, ownerID, leadID string) (Record, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		UPDATE leads ld
		SET status = 'HANDLED', handled_at = now(), updated_at = now()
		FROM listings l
		WHERE ld.id = $1::uuid
		  AND ld.listing_id = l.id
		  AND ($2::uuid IS NULL OR l.agent_id = $2::uuid)
		  AND ld.status <> 'HANDLED'
		RETURNING ld.id::text, ld.listing_id::text, ld.name, ld.phone, ld.message, ld.status, ld.created_at, ld.updated_at, ld.handled_at
	`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, leadID, nullable(ownerID)))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("lead: mark handled: %w", db.Classify(err))
	}

	const check = `
		SELECT ld.status
		FROM leads ld
		JOIN listings l ON l.id = ld.listing_id
		WHERE ld.id = $1::uuid AND ($2::uuid IS NULL OR l.agent_id = $2::uuid)
	`
	var status Status
	if err := r.pool.QueryRow(ctx, check, leadID, nullable(ownerID)).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFoundOrForbidden
		}
		return Record{}, fmt.Errorf("lead: mark handled fetch: %w", db.Classify(err))
	}
	if status == StatusHandled {
		return Record{}, ErrAlreadyHandled
	}
	return Record{}, ErrNotFoundOrForbidden
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.ListingID, &rec.Name, &rec.Phone, &rec.Message, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt, &rec.HandledAt)
	return rec, err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
