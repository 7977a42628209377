package httpapi

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"homelinka/admin"
	"homelinka/auth"
	"homelinka/listing"
	"homelinka/moderation"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]auth.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]auth.User)}
}

func (m *memUsers) CreateUser(_ context.Context, params auth.CreateUserParams) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(params.Email)
	for _, u := range m.users {
		if u.Email == email {
			return auth.User{}, auth.ErrDuplicateEmail
		}
	}
	now := time.Now().UTC()
	u := auth.User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		Phone:        params.Phone,
		WhatsApp:     params.WhatsApp,
		BusinessName: params.BusinessName,
		Role:         params.Role,
		Status:       params.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrUserNotFound
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) ListByStatus(_ context.Context, role auth.Role, status moderation.UserStatus) ([]auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []auth.User{}
	for _, u := range m.users {
		if u.Role == role && u.Status == status {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memUsers) UpdateStatus(_ context.Context, id string, status moderation.UserStatus) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	u.Status = status
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return u, nil
}

type memListings struct {
	mu       sync.Mutex
	users    *memUsers
	listings map[string]listing.Listing
}

func newMemListings(users *memUsers) *memListings {
	return &memListings{users: users, listings: make(map[string]listing.Listing)}
}

func (m *memListings) detail(l listing.Listing) listing.Detail {
	owner, _ := m.users.GetUserByID(context.Background(), l.AgentID)
	return listing.Detail{Listing: l, Agent: listing.AgentContact{
		ID:           owner.ID,
		FullName:     owner.FullName,
		Phone:        owner.Phone,
		WhatsApp:     owner.ContactWhatsApp(),
		BusinessName: owner.BusinessName,
	}}
}

func (m *memListings) Create(_ context.Context, l listing.Listing) (listing.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[l.ID] = l
	return l, nil
}

func (m *memListings) ListPublic(_ context.Context, filters listing.Filters) ([]listing.Detail, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []listing.Detail{}
	for _, l := range m.listings {
		if !l.Status.Public() {
			continue
		}
		if filters.PropertyType != "" && l.PropertyType != filters.PropertyType {
			continue
		}
		out = append(out, m.detail(l))
	}
	return out, len(out), nil
}

func (m *memListings) ListByStatus(_ context.Context, status moderation.ListingStatus) ([]listing.Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []listing.Detail{}
	for _, l := range m.listings {
		if l.Status == status {
			out = append(out, m.detail(l))
		}
	}
	return out, nil
}

func (m *memListings) ListByAgent(_ context.Context, agentID string) ([]listing.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []listing.Listing{}
	for _, l := range m.listings {
		if l.AgentID == agentID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memListings) GetByID(_ context.Context, id string) (listing.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return listing.Listing{}, listing.ErrNotFound
	}
	return l, nil
}

func (m *memListings) UpdateOwned(_ context.Context, id, ownerID, _ string, l listing.Listing) (listing.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.listings[id]
	if !ok || (ownerID != "" && current.AgentID != ownerID) {
		return listing.Listing{}, listing.ErrNotFoundOrForbidden
	}
	l.ID, l.AgentID, l.CreatedAt = current.ID, current.AgentID, current.CreatedAt
	editedAt := l.UpdatedAt
	l.EditedAt = &editedAt
	m.listings[id] = l
	return l, nil
}

func (m *memListings) DeleteOwned(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.listings[id]
	if !ok || (ownerID != "" && current.AgentID != ownerID) {
		return listing.ErrNotFoundOrForbidden
	}
	delete(m.listings, id)
	return nil
}

func (m *memListings) IncrementCounter(_ context.Context, id string, counter listing.Counter) (listing.Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok || !l.Status.Public() {
		return listing.Detail{}, listing.ErrNotFound
	}
	if counter == listing.CounterViews {
		l.Views++
	} else {
		l.Contacts++
	}
	m.listings[id] = l
	return m.detail(l), nil
}

// memModeration implements admin.Store over the in-memory users and listings.
type memModeration struct {
	mu       sync.Mutex
	users    *memUsers
	listings *memListings
	events   []admin.Event
}

func (m *memModeration) LockUser(ctx context.Context, _ pgx.Tx, id string) (auth.User, error) {
	u, err := m.users.GetUserByID(ctx, id)
	if err != nil {
		return auth.User{}, admin.ErrNotFound
	}
	return u, nil
}

func (m *memModeration) SetUserStatus(ctx context.Context, _ pgx.Tx, id string, status moderation.UserStatus) (auth.User, error) {
	return m.users.UpdateStatus(ctx, id, status)
}

func (m *memModeration) LockListing(ctx context.Context, _ pgx.Tx, id string) (listing.Listing, error) {
	l, err := m.listings.GetByID(ctx, id)
	if err != nil {
		return listing.Listing{}, admin.ErrNotFound
	}
	return l, nil
}

func (m *memModeration) SetListingStatus(_ context.Context, _ pgx.Tx, id string, status moderation.ListingStatus, reviewedAt time.Time) (listing.Listing, error) {
	m.listings.mu.Lock()
	defer m.listings.mu.Unlock()
	l, ok := m.listings.listings[id]
	if !ok {
		return listing.Listing{}, admin.ErrNotFound
	}
	l.Status = status
	l.ReviewedAt = &reviewedAt
	l.UpdatedAt = reviewedAt
	m.listings.listings[id] = l
	return l, nil
}

func (m *memModeration) AppendEvent(_ context.Context, _ pgx.Tx, event admin.Event) (admin.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = int64(len(m.events) + 1)
	m.events = append(m.events, event)
	return event, nil
}

func (m *memModeration) ListEvents(_ context.Context, filter admin.EventFilter) ([]admin.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []admin.Event{}
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if filter.SubjectKind != "" && e.SubjectKind != filter.SubjectKind {
			continue
		}
		if filter.SubjectID != "" && e.SubjectID != filter.SubjectID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type memPool struct{}

func (memPool) Begin(context.Context) (pgx.Tx, error) { return memTx{}, nil }

// memTx satisfies pgx.Tx for stores that ignore the transaction handle.
type memTx struct {
	pgx.Tx
}

func (memTx) Commit(context.Context) error   { return nil }
func (memTx) Rollback(context.Context) error { return nil }
