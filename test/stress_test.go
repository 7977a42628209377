package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"homelinka/admin"
	"homelinka/auth"
	"homelinka/listing"
	"homelinka/moderation"
	"homelinka/test/actors"
	"homelinka/test/chaos"
	"homelinka/test/infra"
	"homelinka/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 90*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 4, "number of editors and intruders")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

const storeTimeout = 5 * time.Second

func TestModerationConcurrency(t *testing.T) {
	if testing.Short() {
		t.Skip("stress suite skipped in -short mode")
	}
	seed := *flSeed
	rand.Seed(seed)

	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	if *flDSN == "" && !dockerAvailable(ctx) {
		t.Skip("docker unavailable and no -dsn or STRESS_TEST_PG_DSN given")
	}
	pgC, dsn, err := infra.StartPostgres16(ctx, *flDSN)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer pgC.Terminate(context.Background())

	h, err := infra.Open(ctx, dsn, pgC.Shared())
	if err != nil {
		t.Fatalf("open harness: %v", err)
	}
	defer func() {
		if err := h.Close(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()
	if err := h.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	pool := h.Pool()

	users := auth.NewRepository(pool, storeTimeout)
	listings := listing.NewRepository(pool, storeTimeout)
	listingService := listing.NewService(listings, users)
	adminService := admin.NewService(pool, admin.NewStore(pool, storeTimeout), users, listings).WithTimeout(storeTimeout)

	seed2 := mustSeed(t, ctx, users, listingService, adminService)

	g, gctx := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	for i := 0; i < *flConcurrency; i++ {
		owner := seed2.owners[i%len(seed2.owners)]
		g.Go(func() error {
			return actors.Editor(gctx, listingService, owner, seed2.listingsBy[owner.SubjectID], stop)
		})
		g.Go(func() error { return actors.Intruder(gctx, listingService, seed2.intruder, seed2.all, stop) })
	}
	g.Go(func() error { return actors.Moderator(gctx, adminService, seed2.admin, seed2.all, stop) })
	g.Go(func() error { return actors.Browser(gctx, listingService, seed2.all, stop) })
	go chaos.TerminateRandomBackend(gctx, pool, infra.ApplicationName, stop)

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-gctx.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(gctx, pool)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				// chaos may kill the oracle's own backend
				t.Logf("oracle error: %v", err)
				continue
			}
			if name != "" {
				failed = true
				dumpRecent(t, ctx, pool)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v (seed=%d)", err, seed)
		}
	}
	if name, row, err := oracles.Run(ctx, pool); err == nil && name != "" {
		t.Fatalf("Oracle %s failed after run. First row: %s (seed=%d)", name, row, seed)
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

type seedIDs struct {
	admin      auth.Identity
	intruder   auth.Identity
	owners     []auth.Identity
	listingsBy map[string][]string
	all        []string
}

func mustSeed(t *testing.T, ctx context.Context, users *auth.PGRepository, listings *listing.Service, moderator *admin.Service) seedIDs {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("stresspassword"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	newUser := func(role auth.Role, status moderation.UserStatus) auth.Identity {
		u, err := users.CreateUser(ctx, auth.CreateUserParams{
			Email:        fmt.Sprintf("u%d@example.com", rand.Int63()),
			FullName:     "Stress " + string(role),
			PasswordHash: string(hash),
			Phone:        "08010000000",
			Role:         role,
			Status:       status,
		})
		if err != nil {
			t.Fatalf("seed user: %v", err)
		}
		return auth.Identity{SubjectID: u.ID, Role: role}
	}

	s := seedIDs{
		admin:      newUser(auth.RoleAdmin, moderation.UserApproved),
		intruder:   newUser(auth.RoleAgent, moderation.UserApproved),
		listingsBy: make(map[string][]string),
	}
	price := 250000.0
	for i := 0; i < 3; i++ {
		owner := newUser(auth.RoleAgent, moderation.UserApproved)
		s.owners = append(s.owners, owner)
		for j := 0; j < 4; j++ {
			l, err := listings.Create(ctx, owner, listing.CreateParams{
				Title:        fmt.Sprintf("Listing %d-%d", i, j),
				Description:  "stress",
				Price:        &price,
				PropertyType: string(listing.PropertyApartment),
				ListingType:  string(listing.ListingRent),
				State:        "Lagos",
				City:         "Ikeja",
				Area:         "Allen",
			})
			if err != nil {
				t.Fatalf("seed listing: %v", err)
			}
			s.listingsBy[owner.SubjectID] = append(s.listingsBy[owner.SubjectID], l.ID)
			s.all = append(s.all, l.ID)
		}
	}

	// Start half of the listings APPROVED so the feed has content.
	for i, id := range s.all {
		if i%2 == 1 {
			continue
		}
		if _, err := moderator.SetListingStatus(ctx, s.admin, admin.Decision{SubjectID: id, Status: string(moderation.ListingApproved)}); err != nil {
			t.Fatalf("seed approval: %v", err)
		}
	}
	return s
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	type dump struct {
		name string
		sql  string
	}
	dumps := []dump{
		{"moderation_events", `SELECT id, subject_kind, subject_id, previous_status, next_status, actor_id, created_at FROM moderation_events ORDER BY id DESC LIMIT 50`},
		{"listings", `SELECT id, agent_id, status, edited_at, reviewed_at FROM listings ORDER BY updated_at DESC LIMIT 50`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", string(cols[i].Name), vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
