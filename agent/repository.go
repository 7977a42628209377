package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"homelinka/db"
)

// ErrNotFound signals the agent does not exist or is not approved.
var ErrNotFound = errors.New("agent: not found")

// Repository provides read access to approved agent profiles.
type Repository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool, timeout time.Duration) *Repository {
	return &Repository{pool: pool, timeout: timeout}
}

const profileQuery = `
	SELECT u.id::text, u.full_name, u.business_name, u.phone, COALESCE(NULLIF(u.whatsapp, ''), u.phone), u.created_at,
	       (SELECT COUNT(*) FROM listings l WHERE l.agent_id = u.id AND l.status = 'APPROVED')
	FROM users u
	WHERE u.role = 'AGENT' AND u.status = 'APPROVED'`

// GetByID fetches an approved agent profile by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Profile, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	profile, err := scanProfile(r.pool.QueryRow(ctx, profileQuery+` AND u.id = $1::uuid`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("agent: query by id: %w", db.Classify(err))
	}

	return profile, nil
}

// List fetches up to limit approved agents ordered by name.
func (r *Repository) List(ctx context.Context, limit int) ([]Profile, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, profileQuery+` ORDER BY u.full_name ASC, u.id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("agent: list: %w", db.Classify(err))
	}
	defer rows.Close()

	profiles := make([]Profile, 0, limit)
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("agent: scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agent: iterate profiles: %w", db.Classify(err))
	}

	return profiles, nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.FullName, &p.BusinessName, &p.Phone, &p.WhatsApp, &p.JoinedAt, &p.ApprovedListings)
	return p, err
}
