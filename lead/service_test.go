package lead

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"homelinka/auth"
)

func TestService_CreateValidation(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	listingID := store.addListing("agent-1", true)

	if _, err := svc.Create(context.Background(), CreateParams{ListingID: listingID, Name: " ", Phone: "0801"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := svc.Create(context.Background(), CreateParams{ListingID: "bogus", Name: "Tunde", Phone: "0801"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	hidden := store.addListing("agent-1", false)
	if _, err := svc.Create(context.Background(), CreateParams{ListingID: hidden, Name: "Tunde", Phone: "0801"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unapproved listing, got %v", err)
	}

	rec, err := svc.Create(context.Background(), CreateParams{ListingID: listingID, Name: " Tunde ", Phone: "0801", Message: "Is it available?"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Status != StatusNew || rec.Name != "Tunde" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestService_OwnerScoping(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	owner := auth.Identity{SubjectID: "agent-1", Role: auth.RoleAgent}
	other := auth.Identity{SubjectID: "agent-2", Role: auth.RoleAgent}
	admin := auth.Identity{SubjectID: "admin-1", Role: auth.RoleAdmin}

	listingID := store.addListing(owner.SubjectID, true)
	rec, err := svc.Create(context.Background(), CreateParams{ListingID: listingID, Name: "Tunde", Phone: "0801"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	mine, err := svc.List(context.Background(), owner, "")
	if err != nil || len(mine) != 1 {
		t.Fatalf("owner list: %v %v", mine, err)
	}
	theirs, err := svc.List(context.Background(), other, "")
	if err != nil || len(theirs) != 0 {
		t.Fatalf("other list: %v %v", theirs, err)
	}
	all, err := svc.List(context.Background(), admin, listingID)
	if err != nil || len(all) != 1 {
		t.Fatalf("admin list: %v %v", all, err)
	}

	if _, err := svc.MarkHandled(context.Background(), other, rec.ID); !errors.Is(err, ErrNotFoundOrForbidden) {
		t.Fatalf("expected ErrNotFoundOrForbidden, got %v", err)
	}
	handled, err := svc.MarkHandled(context.Background(), owner, rec.ID)
	if err != nil {
		t.Fatalf("mark handled: %v", err)
	}
	if handled.Status != StatusHandled || handled.HandledAt == nil {
		t.Fatalf("unexpected record %+v", handled)
	}
	if _, err := svc.MarkHandled(context.Background(), owner, rec.ID); !errors.Is(err, ErrAlreadyHandled) {
		t.Fatalf("expected ErrAlreadyHandled, got %v", err)
	}

	if _, err := svc.List(context.Background(), auth.Identity{}, ""); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

type fakeListing struct {
	agentID  string
	approved bool
}

type fakeStore struct {
	listings map[string]fakeListing
	leads    map[string]Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{listings: map[string]fakeListing{}, leads: map[string]Record{}}
}

func (f *fakeStore) addListing(agentID string, approved bool) string {
	id := uuid.NewString()
	f.listings[id] = fakeListing{agentID: agentID, approved: approved}
	return id
}

func (f *fakeStore) Create(ctx context.Context, params CreateParams) (Record, error) {
	l, ok := f.listings[params.ListingID]
	if !ok || !l.approved {
		return Record{}, ErrNotFound
	}
	rec := Record{ID: uuid.NewString(), ListingID: params.ListingID, Name: params.Name, Phone: params.Phone, Message: params.Message, Status: StatusNew}
	f.leads[rec.ID] = rec
	return rec, nil
}

func (f *fakeStore) List(ctx context.Context, ownerID, listingID string) ([]Record, error) {
	var out []Record
	for _, rec := range f.leads {
		if ownerID != "" && f.listings[rec.ListingID].agentID != ownerID {
			continue
		}
		if listingID != "" && rec.ListingID != listingID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeStore) MarkHandled(ctx context.Context, ownerID, leadID string) (Record, error) {
	rec, ok := f.leads[leadID]
	if !ok || (ownerID != "" && f.listings[rec.ListingID].agentID != ownerID) {
		return Record{}, ErrNotFoundOrForbidden
	}
	if rec.Status == StatusHandled {
		return Record{}, ErrAlreadyHandled
	}
	rec.Status = StatusHandled
	now := rec.CreatedAt
	rec.HandledAt = &now
	f.leads[leadID] = rec
	return rec, nil
}
