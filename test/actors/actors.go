// Package actors drives the marketplace services concurrently against a real
// database. Actors ignore transport failures caused by chaos and return an
// error only when an ownership or moderation rule is broken.
package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"homelinka/admin"
	"homelinka/auth"
	"homelinka/listing"
	"homelinka/moderation"
)

func stopped(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

func pause(min, spread int) {
	time.Sleep(time.Duration(min+rand.Intn(spread)) * time.Millisecond)
}

// Editor keeps editing its own listings. Every successful edit must leave the
// listing PENDING.
func Editor(ctx context.Context, svc *listing.Service, owner auth.Identity, ids []string, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		id := ids[rand.Intn(len(ids))]
		price := float64(100000 + rand.Intn(900000))
		updated, err := svc.Update(ctx, owner, id, listing.Patch{Price: &price})
		if err == nil && updated.Status != moderation.ListingPending {
			return fmt.Errorf("editor: listing %s is %s after edit", id, updated.Status)
		}
		if errors.Is(err, listing.ErrNotFoundOrForbidden) {
			return fmt.Errorf("editor: owner locked out of listing %s", id)
		}
		pause(10, 20)
	}
	return nil
}

// Intruder attacks listings it does not own. Any successful mutation is a
// violation.
func Intruder(ctx context.Context, svc *listing.Service, intruder auth.Identity, victims []string, stop <-chan struct{}) error {
	title := "hijacked"
	for !stopped(ctx, stop) {
		id := victims[rand.Intn(len(victims))]
		if rand.Intn(2) == 0 {
			if _, err := svc.Update(ctx, intruder, id, listing.Patch{Title: &title}); err == nil {
				return fmt.Errorf("intruder: updated foreign listing %s", id)
			}
		} else if err := svc.Delete(ctx, intruder, id); err == nil {
			return fmt.Errorf("intruder: deleted foreign listing %s", id)
		}
		pause(5, 15)
	}
	return nil
}

// Moderator approves or rejects random listings.
func Moderator(ctx context.Context, svc *admin.Service, actor auth.Identity, ids []string, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		status := moderation.ListingApproved
		if rand.Intn(4) == 0 {
			status = moderation.ListingRejected
		}
		_, err := svc.SetListingStatus(ctx, actor, admin.Decision{
			SubjectID: ids[rand.Intn(len(ids))],
			Status:    string(status),
		})
		if errors.Is(err, moderation.ErrIllegalTransition) || errors.Is(err, auth.ErrForbidden) {
			return fmt.Errorf("moderator: %w", err)
		}
		pause(20, 40)
	}
	return nil
}

// Browser reads the public feed and detail pages. Only APPROVED listings may
// ever be served.
func Browser(ctx context.Context, svc *listing.Service, ids []string, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		page, err := svc.Feed(ctx, listing.Filters{PageSize: 100})
		if err == nil {
			for _, d := range page.Items {
				if d.Status != moderation.ListingApproved {
					return fmt.Errorf("browser: feed served %s listing %s", d.Status, d.ID)
				}
			}
		}
		d, err := svc.GetPublic(ctx, ids[rand.Intn(len(ids))])
		if err == nil && d.Status != moderation.ListingApproved {
			return fmt.Errorf("browser: detail served %s listing %s", d.Status, d.ID)
		}
		pause(10, 30)
	}
	return nil
}
