package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"homelinka/db"
	"homelinka/moderation"
)

var (
	// ErrNotFound signals the listing does not exist or is not visible.
	ErrNotFound = errors.New("listing: not found")
	// ErrNotFoundOrForbidden signals an ownership-scoped write matched no row.
	ErrNotFoundOrForbidden = errors.New("listing: not found or not owned")
)

// Repository persists listings. Owner-scoped methods take ownerID; an empty
// ownerID matches any owner and is reserved for admins.
type Repository interface {
	Create(ctx context.Context, l Listing) (Listing, error)
	ListPublic(ctx context.Context, filters Filters) ([]Detail, int, error)
	ListByStatus(ctx context.Context, status moderation.ListingStatus) ([]Detail, error)
	ListByAgent(ctx context.Context, agentID string) ([]Listing, error)
	GetByID(ctx context.Context, id string) (Listing, error)
	UpdateOwned(ctx context.Context, id, ownerID, actorID string, l Listing) (Listing, error)
	DeleteOwned(ctx context.Context, id, ownerID string) error
	IncrementCounter(ctx context.Context, id string, counter Counter) (Detail, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewRepository(pool *pgxpool.Pool, timeout time.Duration) *PGRepository {
	return &PGRepository{pool: pool, timeout: timeout}
}

const listingColumns = `l.id::text, l.agent_id::text, l.title, l.description, l.price::float8, l.property_type, l.listing_type,
	l.state, l.city, l.area, l.images, l.status, l.views, l.contacts, l.created_at, l.updated_at, l.reviewed_at, l.edited_at`

const detailColumns = listingColumns + `, u.full_name, u.phone, COALESCE(NULLIF(u.whatsapp, ''), u.phone), u.business_name`

func (r *PGRepository) Create(ctx context.Context, l Listing) (Listing, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		INSERT INTO listings AS l (id, agent_id, title, description, price, property_type, listing_type,
			state, city, area, images, status, created_at, updated_at)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING ` + listingColumns

	created, err := scanListing(r.pool.QueryRow(ctx, query,
		l.ID,
		l.AgentID,
		l.Title,
		l.Description,
		l.Price,
		l.PropertyType,
		l.ListingType,
		l.Location.State,
		l.Location.City,
		l.Location.Area,
		l.Images,
		l.Status,
		l.CreatedAt,
	))
	if err != nil {
		return Listing{}, fmt.Errorf("listing: create: %w", db.Classify(err))
	}
	return created, nil
}

func (r *PGRepository) ListPublic(ctx context.Context, filters Filters) ([]Detail, int, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	filters = normalizeFilters(filters)

	where := []string{"l.status = 'APPROVED'"}
	args := []any{}

	if filters.PropertyType != "" {
		where = append(where, fmt.Sprintf("l.property_type = $%d", len(args)+1))
		args = append(args, filters.PropertyType)
	}
	if filters.ListingType != "" {
		where = append(where, fmt.Sprintf("l.listing_type = $%d", len(args)+1))
		args = append(args, filters.ListingType)
	}
	for _, f := range []struct {
		column string
		value  string
	}{
		{"l.state", filters.State},
		{"l.city", filters.City},
		{"l.area", filters.Area},
	} {
		if f.value == "" {
			continue
		}
		where = append(where, fmt.Sprintf("%s ILIKE $%d", f.column, len(args)+1))
		args = append(args, "%"+escapeLike(f.value)+"%")
	}
	if filters.MinPrice != nil {
		where = append(where, fmt.Sprintf("l.price >= $%d", len(args)+1))
		args = append(args, *filters.MinPrice)
	}
	if filters.MaxPrice != nil {
		where = append(where, fmt.Sprintf("l.price <= $%d", len(args)+1))
		args = append(args, *filters.MaxPrice)
	}
	if filters.AgentID != "" {
		where = append(where, fmt.Sprintf("l.agent_id = $%d::uuid", len(args)+1))
		args = append(args, filters.AgentID)
	}

	from := ` FROM listings l JOIN users u ON u.id = l.agent_id WHERE ` + strings.Join(where, " AND ")

	limit := filters.PageSize
	offset := (filters.Page - 1) * filters.PageSize
	query := fmt.Sprintf(`SELECT %s%s ORDER BY %s %s, l.id LIMIT %d OFFSET %d`,
		detailColumns, from, mapSortKey(filters.SortKey), strings.ToUpper(filters.SortOrder), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing: query feed: %w", db.Classify(err))
	}
	defer rows.Close()

	items := []Detail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("listing: scan feed: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("listing: iterate feed: %w", db.Classify(err))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("listing: count feed: %w", db.Classify(err))
	}

	return items, total, nil
}

func (r *PGRepository) ListByStatus(ctx context.Context, status moderation.ListingStatus) ([]Detail, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + detailColumns + `
		FROM listings l JOIN users u ON u.id = l.agent_id
		WHERE l.status = $1
		ORDER BY l.updated_at ASC, l.id`

	rows, err := r.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("listing: list by status: %w", db.Classify(err))
	}
	defer rows.Close()

	items := []Detail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("listing: scan by status: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing: iterate by status: %w", db.Classify(err))
	}
	return items, nil
}

func (r *PGRepository) ListByAgent(ctx context.Context, agentID string) ([]Listing, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + listingColumns + ` FROM listings l WHERE l.agent_id = $1::uuid ORDER BY l.created_at DESC, l.id`

	rows, err := r.pool.Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("listing: list by agent: %w", db.Classify(err))
	}
	defer rows.Close()

	items := []Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("listing: scan by agent: %w", err)
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing: iterate by agent: %w", db.Classify(err))
	}
	return items, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Listing, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + listingColumns + ` FROM listings l WHERE l.id = $1::uuid`

	l, err := scanListing(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, fmt.Errorf("listing: get by id: %w", db.Classify(err))
	}
	return l, nil
}

// UpdateOwned writes the mutable fields of l to the row matching both id and
// the owner predicate. When the status changes, a moderation event attributed
// to actorID is appended in the same statement.
func (r *PGRepository) UpdateOwned(ctx context.Context, id, ownerID, actorID string, l Listing) (Listing, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		WITH prev AS (
			SELECT id, status FROM listings
			WHERE id = $1::uuid AND ($2::uuid IS NULL OR agent_id = $2::uuid)
			FOR UPDATE
		), l AS (
			UPDATE listings AS t
			SET title = $3, description = $4, price = $5, property_type = $6, listing_type = $7,
			    state = $8, city = $9, area = $10, images = $11, status = $12,
			    updated_at = $13, edited_at = $13
			FROM prev
			WHERE t.id = prev.id
			RETURNING t.*, prev.status AS previous_status
		), ev AS (
			INSERT INTO moderation_events (subject_kind, subject_id, previous_status, next_status, actor_id, created_at)
			SELECT 'LISTING', l.id, l.previous_status, l.status, $14::uuid, $13
			FROM l
			WHERE l.previous_status <> l.status
		)
		SELECT ` + listingColumns + ` FROM l`

	updated, err := scanListing(r.pool.QueryRow(ctx, query,
		id,
		nullableID(ownerID),
		l.Title,
		l.Description,
		l.Price,
		l.PropertyType,
		l.ListingType,
		l.Location.State,
		l.Location.City,
		l.Location.Area,
		l.Images,
		l.Status,
		l.UpdatedAt,
		nullableID(actorID),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFoundOrForbidden
		}
		return Listing{}, fmt.Errorf("listing: update owned: %w", db.Classify(err))
	}
	return updated, nil
}

// DeleteOwned removes the row matching both id and the owner predicate. A
// delete that affects nothing is reported as ErrNotFoundOrForbidden.
func (r *PGRepository) DeleteOwned(ctx context.Context, id, ownerID string) error {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `DELETE FROM listings WHERE id = $1::uuid AND ($2::uuid IS NULL OR agent_id = $2::uuid)`

	tag, err := r.pool.Exec(ctx, query, id, nullableID(ownerID))
	if err != nil {
		return fmt.Errorf("listing: delete owned: %w", db.Classify(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFoundOrForbidden
	}
	return nil
}

// IncrementCounter bumps an engagement counter on an APPROVED listing and
// returns it with the agent projection.
func (r *PGRepository) IncrementCounter(ctx context.Context, id string, counter Counter) (Detail, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	var set string
	switch counter {
	case CounterViews:
		set = "views = views + 1"
	case CounterContacts:
		set = "contacts = contacts + 1"
	default:
		return Detail{}, fmt.Errorf("listing: unknown counter %d", counter)
	}

	query := `
		WITH l AS (
			UPDATE listings SET ` + set + `
			WHERE id = $1::uuid AND status = 'APPROVED'
			RETURNING *
		)
		SELECT ` + detailColumns + ` FROM l JOIN users u ON u.id = l.agent_id`

	d, err := scanDetail(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Detail{}, ErrNotFound
		}
		return Detail{}, fmt.Errorf("listing: increment counter: %w", db.Classify(err))
	}
	return d, nil
}

func scanListing(row pgx.Row) (Listing, error) {
	var l Listing
	err := row.Scan(listingDest(&l)...)
	if err != nil {
		return Listing{}, err
	}
	if l.Images == nil {
		l.Images = []string{}
	}
	return l, nil
}

func scanDetail(row pgx.Row) (Detail, error) {
	var d Detail
	dest := append(listingDest(&d.Listing),
		&d.Agent.FullName,
		&d.Agent.Phone,
		&d.Agent.WhatsApp,
		&d.Agent.BusinessName,
	)
	if err := row.Scan(dest...); err != nil {
		return Detail{}, err
	}
	d.Agent.ID = d.AgentID
	if d.Images == nil {
		d.Images = []string{}
	}
	return d, nil
}

func listingDest(l *Listing) []any {
	return []any{
		&l.ID,
		&l.AgentID,
		&l.Title,
		&l.Description,
		&l.Price,
		&l.PropertyType,
		&l.ListingType,
		&l.Location.State,
		&l.Location.City,
		&l.Location.Area,
		&l.Images,
		&l.Status,
		&l.Views,
		&l.Contacts,
		&l.CreatedAt,
		&l.UpdatedAt,
		&l.ReviewedAt,
		&l.EditedAt,
	}
}

func normalizeFilters(f Filters) Filters {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > 100 {
		f.PageSize = 20
	}
	f.SortOrder = strings.ToLower(f.SortOrder)
	if f.SortOrder != "asc" && f.SortOrder != "desc" {
		f.SortOrder = "desc"
	}
	return f
}

func mapSortKey(key string) string {
	switch key {
	case "price":
		return "l.price"
	case "views":
		return "l.views"
	case "updatedAt":
		return "l.updated_at"
	case "createdAt":
		fallthrough
	default:
		return "l.created_at"
	}
}

func escapeLike(v string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(v)
}

func nullableID(v string) any {
	if v == "" {
		return nil
	}
	return v
}
