package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"homelinka/db"
	"homelinka/moderation"
)

var (
	// ErrUserNotFound signals that the user does not exist.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("auth: email already exists")
)

// Repository handles data access for accounts.
type Repository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
	ListByStatus(ctx context.Context, role Role, status moderation.UserStatus) ([]User, error)
	UpdateStatus(ctx context.Context, userID string, status moderation.UserStatus) (User, error)
}

// CreateUserParams contains write parameters for creating users.
type CreateUserParams struct {
	Email        string
	FullName     string
	PasswordHash string
	Phone        string
	WhatsApp     *string
	BusinessName string
	Role         Role
	Status       moderation.UserStatus
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewRepository creates a PostgreSQL-backed account repository. Every call is
// bounded by timeout.
func NewRepository(pool *pgxpool.Pool, timeout time.Duration) *PGRepository {
	return &PGRepository{pool: pool, timeout: timeout}
}

const userColumns = `id::text, email, full_name, password_hash, phone, whatsapp, business_name, role, status, created_at, updated_at`

// CreateUser inserts a new user with hashed password.
func (r *PGRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	const insertSQL = `
		INSERT INTO users (email, full_name, password_hash, phone, whatsapp, business_name, role, status)
		VALUES (lower($1), $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, insertSQL,
		params.Email,
		params.FullName,
		params.PasswordHash,
		params.Phone,
		params.WhatsApp,
		params.BusinessName,
		params.Role,
		params.Status,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("auth: create user: %w", db.Classify(err))
	}

	return user, nil
}

// GetUserByEmail retrieves a user by email address, case-insensitively.
func (r *PGRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	const selectSQL = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: get user by email: %w", db.Classify(err))
	}

	return user, nil
}

// GetUserByID retrieves a user by ID.
func (r *PGRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return User{}, ErrUserNotFound
	}
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	const selectSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1::uuid`

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: get user by id: %w", db.Classify(err))
	}

	return user, nil
}

// ListByStatus returns users with the given role and status, oldest first.
func (r *PGRepository) ListByStatus(ctx context.Context, role Role, status moderation.UserStatus) ([]User, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	const selectSQL = `SELECT ` + userColumns + ` FROM users WHERE role = $1 AND status = $2 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, selectSQL, role, status)
	if err != nil {
		return nil, fmt.Errorf("auth: list users: %w", db.Classify(err))
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("auth: scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auth: iterate users: %w", db.Classify(err))
	}
	return users, nil
}

// UpdateStatus overwrites a user's status without consulting the state
// machine. Moderation decisions go through the admin service instead.
func (r *PGRepository) UpdateStatus(ctx context.Context, userID string, status moderation.UserStatus) (User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return User{}, ErrUserNotFound
	}
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	const updateSQL = `
		UPDATE users SET status = $2, updated_at = now()
		WHERE id = $1::uuid
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, updateSQL, userID, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: update status: %w", db.Classify(err))
	}
	return user, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user     User
		whatsapp *string
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.Phone,
		&whatsapp,
		&user.BusinessName,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}

	user.WhatsApp = whatsapp
	return user, nil
}
