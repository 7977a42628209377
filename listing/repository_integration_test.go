package listing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"homelinka/auth"
	"homelinka/migrations"
	"homelinka/moderation"
)

// openIntegrationPool connects to DATABASE_URL and applies the schema. The
// test is skipped when no database is configured.
func openIntegrationPool(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrations.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return ctx, pool
}

func seedAgent(t *testing.T, ctx context.Context, users *auth.PGRepository, pool *pgxpool.Pool) auth.Identity {
	t.Helper()
	u, err := users.CreateUser(ctx, auth.CreateUserParams{
		Email:        fmt.Sprintf("agent+%d@example.com", time.Now().UnixNano()),
		FullName:     "Integration Agent",
		PasswordHash: "x",
		Phone:        "08011112222",
		Role:         auth.RoleAgent,
		Status:       moderation.UserApproved,
	})
	if err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	t.Cleanup(func() {
		ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx2, `DELETE FROM moderation_events WHERE actor_id = $1::uuid`, u.ID)
		_, _ = pool.Exec(ctx2, `DELETE FROM listings WHERE agent_id = $1::uuid`, u.ID)
		_, _ = pool.Exec(ctx2, `DELETE FROM users WHERE id = $1::uuid`, u.ID)
	})
	return auth.Identity{SubjectID: u.ID, Role: auth.RoleAgent}
}

func TestOwnershipScopedWrites_Integration(t *testing.T) {
	ctx, pool := openIntegrationPool(t)
	users := auth.NewRepository(pool, 5*time.Second)
	repo := NewRepository(pool, 5*time.Second)
	svc := NewService(repo, users)

	owner := seedAgent(t, ctx, users, pool)
	intruder := seedAgent(t, ctx, users, pool)

	created, err := svc.Create(ctx, owner, CreateParams{
		Title: "Duplex", Price: floatPtr(9000000), PropertyType: "HOUSE", ListingType: "SALE",
		State: "Lagos", City: "Lekki", Area: "Phase 1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := pool.Exec(ctx, `UPDATE listings SET status = 'APPROVED', reviewed_at = now() WHERE id = $1::uuid`, created.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	title := "stolen"
	if _, err := repo.UpdateOwned(ctx, created.ID, intruder.SubjectID, intruder.SubjectID, Listing{Title: title}); !errors.Is(err, ErrNotFoundOrForbidden) {
		t.Fatalf("foreign update: expected ErrNotFoundOrForbidden, got %v", err)
	}
	if err := repo.DeleteOwned(ctx, created.ID, intruder.SubjectID); !errors.Is(err, ErrNotFoundOrForbidden) {
		t.Fatalf("foreign delete: expected ErrNotFoundOrForbidden, got %v", err)
	}

	stored, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Title != "Duplex" || stored.Status != moderation.ListingApproved {
		t.Fatalf("foreign write leaked: %+v", stored)
	}

	price := 9500000.0
	updated, err := svc.Update(ctx, owner, created.ID, Patch{Price: &price})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Status != moderation.ListingPending || updated.EditedAt == nil {
		t.Fatalf("expected PENDING with edited_at, got %+v", updated)
	}

	var prev, next, actor string
	err = pool.QueryRow(ctx, `
		SELECT previous_status, next_status, actor_id::text FROM moderation_events
		WHERE subject_kind = 'LISTING' AND subject_id = $1::uuid
		ORDER BY id DESC LIMIT 1`, created.ID).Scan(&prev, &next, &actor)
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if prev != "APPROVED" || next != "PENDING" || actor != owner.SubjectID {
		t.Fatalf("unexpected event %s -> %s by %s", prev, next, actor)
	}

	if err := svc.Delete(ctx, owner, created.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPublicFeedAndCounters_Integration(t *testing.T) {
	ctx, pool := openIntegrationPool(t)
	users := auth.NewRepository(pool, 5*time.Second)
	repo := NewRepository(pool, 5*time.Second)
	svc := NewService(repo, users)

	owner := seedAgent(t, ctx, users, pool)
	city := fmt.Sprintf("Town_%d%%", time.Now().UnixNano())

	var approvedID, pendingID string
	for i, price := range []float64{150000, 450000} {
		l, err := svc.Create(ctx, owner, CreateParams{
			Title: fmt.Sprintf("Room %d", i), Price: &price, PropertyType: "ROOM", ListingType: "RENT",
			State: "Oyo", City: city, Area: "Bodija",
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if i == 0 {
			approvedID = l.ID
		} else {
			pendingID = l.ID
		}
	}
	if _, err := pool.Exec(ctx, `UPDATE listings SET status = 'APPROVED' WHERE id = $1::uuid`, approvedID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	page, err := svc.Feed(ctx, Filters{City: city, AgentID: owner.SubjectID})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != approvedID {
		t.Fatalf("unexpected feed %+v", page)
	}
	if page.Items[0].Agent.FullName != "Integration Agent" {
		t.Fatalf("expected agent projection, got %+v", page.Items[0].Agent)
	}

	ceiling := 100000.0
	page, err = svc.Feed(ctx, Filters{City: city, MaxPrice: &ceiling})
	if err != nil {
		t.Fatalf("feed by price: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("expected no listing under %v, got %d", ceiling, page.Total)
	}

	if _, err := svc.GetPublic(ctx, pendingID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pending detail: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetPublic(ctx, approvedID); err != nil {
		t.Fatalf("approved detail: %v", err)
	}
	info, err := svc.Contact(ctx, approvedID)
	if err != nil {
		t.Fatalf("contact: %v", err)
	}
	if info.WhatsApp != "08011112222" {
		t.Fatalf("expected phone fallback for whatsapp, got %q", info.WhatsApp)
	}

	stored, err := repo.GetByID(ctx, approvedID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Views != 1 || stored.Contacts != 1 {
		t.Fatalf("expected one view and one contact, got %d/%d", stored.Views, stored.Contacts)
	}
}
