package listing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"homelinka/auth"
	"homelinka/moderation"
)

var (
	// ErrValidation signals malformed listing input.
	ErrValidation = errors.New("listing: validation failed")
	// ErrAgentNotApproved signals an agent whose account is no longer APPROVED.
	ErrAgentNotApproved = errors.New("listing: agent account is not approved")
)

// DefaultImage is stored when a listing is created without images.
const DefaultImage = "https://images.unsplash.com/photo-1564013799919-ab600027ffc6?auto=format&fit=crop&q=80&w=800"

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
	maxImages            = 20
	maxPage              = 100_000
)

// AccountReader looks up the current state of an account.
type AccountReader interface {
	GetUserByID(ctx context.Context, userID string) (auth.User, error)
}

// Service applies ownership and moderation rules to listing mutations and
// serves the public feed.
type Service struct {
	repo        Repository
	accounts    AccountReader
	idGenerator func() string
	now         func() time.Time
}

func NewService(repo Repository, accounts AccountReader) *Service {
	return &Service{
		repo:        repo,
		accounts:    accounts,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AuthorizeMutation permits admins and the owning agent.
func AuthorizeMutation(identity auth.Identity, l Listing) error {
	if identity.IsAdmin() {
		return nil
	}
	if identity.SubjectID != "" && identity.SubjectID == l.AgentID {
		return nil
	}
	return auth.ErrForbidden
}

// Create stores a new PENDING listing owned by the caller.
func (s *Service) Create(ctx context.Context, identity auth.Identity, params CreateParams) (Listing, error) {
	if err := auth.RequireRole(identity, auth.CapAgent); err != nil {
		return Listing{}, err
	}
	if params.Price == nil {
		return Listing{}, fmt.Errorf("%w: price is required", ErrValidation)
	}
	if err := s.requireActiveAgent(ctx, identity); err != nil {
		return Listing{}, err
	}

	propertyType, err := ParsePropertyType(params.PropertyType)
	if err != nil {
		return Listing{}, err
	}
	listingType, err := ParseListingType(params.ListingType)
	if err != nil {
		return Listing{}, err
	}

	now := s.now().UTC()
	l := Listing{
		ID:           s.idGenerator(),
		AgentID:      identity.SubjectID,
		Title:        strings.TrimSpace(params.Title),
		Description:  strings.TrimSpace(params.Description),
		Price:        *params.Price,
		PropertyType: propertyType,
		ListingType:  listingType,
		Location: Location{
			State: strings.TrimSpace(params.State),
			City:  strings.TrimSpace(params.City),
			Area:  strings.TrimSpace(params.Area),
		},
		Images:    cleanImages(params.Images),
		Status:    moderation.ListingPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(l.Images) == 0 {
		l.Images = []string{DefaultImage}
	}
	if err := validate(l); err != nil {
		return Listing{}, err
	}

	return s.repo.Create(ctx, l)
}

// Update merges patch into the listing and sends it back to moderation.
// Listings the caller does not own are reported as ErrNotFoundOrForbidden.
func (s *Service) Update(ctx context.Context, identity auth.Identity, id string, patch Patch) (Listing, error) {
	if err := auth.RequireRole(identity, auth.CapAgent); err != nil {
		return Listing{}, err
	}
	if patch.empty() {
		return Listing{}, fmt.Errorf("%w: no fields to update", ErrValidation)
	}
	if !validID(id) {
		return Listing{}, ErrNotFoundOrForbidden
	}
	if err := s.requireActiveAgent(ctx, identity); err != nil {
		return Listing{}, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Listing{}, ErrNotFoundOrForbidden
		}
		return Listing{}, err
	}
	if err := AuthorizeMutation(identity, current); err != nil {
		return Listing{}, ErrNotFoundOrForbidden
	}

	merged, err := applyPatch(current, patch)
	if err != nil {
		return Listing{}, err
	}
	merged.Status = moderation.ListingAfterEdit(current.Status)
	merged.UpdatedAt = s.now().UTC()
	if err := validate(merged); err != nil {
		return Listing{}, err
	}

	return s.repo.UpdateOwned(ctx, id, ownerScope(identity), identity.SubjectID, merged)
}

// Delete removes a listing the caller owns.
func (s *Service) Delete(ctx context.Context, identity auth.Identity, id string) error {
	if err := auth.RequireRole(identity, auth.CapAgent); err != nil {
		return err
	}
	if !validID(id) {
		return ErrNotFoundOrForbidden
	}
	return s.repo.DeleteOwned(ctx, id, ownerScope(identity))
}

// Feed lists APPROVED listings with their agents' contact details.
func (s *Service) Feed(ctx context.Context, filters Filters) (Page, error) {
	if filters.MinPrice != nil && filters.MaxPrice != nil && *filters.MinPrice > *filters.MaxPrice {
		return Page{}, fmt.Errorf("%w: minPrice exceeds maxPrice", ErrValidation)
	}
	if filters.Page > maxPage {
		return Page{}, fmt.Errorf("%w: page exceeds %d", ErrValidation, maxPage)
	}
	if filters.AgentID != "" && !validID(filters.AgentID) {
		return Page{}, fmt.Errorf("%w: agentId is invalid", ErrValidation)
	}
	filters = normalizeFilters(filters)
	items, total, err := s.repo.ListPublic(ctx, filters)
	if err != nil {
		return Page{}, err
	}
	return Page{Items: items, Total: total, Page: filters.Page, PageSize: filters.PageSize}, nil
}

// GetPublic returns an APPROVED listing and counts the view.
func (s *Service) GetPublic(ctx context.Context, id string) (Detail, error) {
	if !validID(id) {
		return Detail{}, ErrNotFound
	}
	return s.repo.IncrementCounter(ctx, id, CounterViews)
}

// Contact counts a contact on an APPROVED listing and returns how to reach
// its agent.
func (s *Service) Contact(ctx context.Context, id string) (ContactInfo, error) {
	if !validID(id) {
		return ContactInfo{}, ErrNotFound
	}
	d, err := s.repo.IncrementCounter(ctx, id, CounterContacts)
	if err != nil {
		return ContactInfo{}, err
	}
	return ContactInfo{
		ListingID:    d.ID,
		AgentName:    d.Agent.FullName,
		Phone:        d.Agent.Phone,
		WhatsApp:     d.Agent.WhatsApp,
		WhatsAppLink: WhatsAppLink(d.Agent.WhatsApp, d.Title),
	}, nil
}

// Mine lists every listing owned by the caller regardless of status.
func (s *Service) Mine(ctx context.Context, identity auth.Identity) ([]Listing, error) {
	if err := auth.RequireRole(identity, auth.CapAgent); err != nil {
		return nil, err
	}
	return s.repo.ListByAgent(ctx, identity.SubjectID)
}

// WhatsAppLink builds a wa.me deep link with a prefilled enquiry.
func WhatsAppLink(number, title string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, number)
	if digits == "" {
		return ""
	}
	message := fmt.Sprintf("Hello, I'm interested in your property: %s on HomeLinka.", title)
	return "https://wa.me/" + digits + "?" + url.Values{"text": {message}}.Encode()
}

func (s *Service) requireActiveAgent(ctx context.Context, identity auth.Identity) error {
	if identity.IsAdmin() {
		return nil
	}
	account, err := s.accounts.GetUserByID(ctx, identity.SubjectID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return ErrAgentNotApproved
		}
		return err
	}
	if account.Status != moderation.UserApproved {
		return ErrAgentNotApproved
	}
	return nil
}

func applyPatch(l Listing, p Patch) (Listing, error) {
	if p.Title != nil {
		l.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		l.Description = strings.TrimSpace(*p.Description)
	}
	if p.Price != nil {
		l.Price = *p.Price
	}
	if p.PropertyType != nil {
		pt, err := ParsePropertyType(*p.PropertyType)
		if err != nil {
			return Listing{}, err
		}
		l.PropertyType = pt
	}
	if p.ListingType != nil {
		lt, err := ParseListingType(*p.ListingType)
		if err != nil {
			return Listing{}, err
		}
		l.ListingType = lt
	}
	if p.State != nil {
		l.Location.State = strings.TrimSpace(*p.State)
	}
	if p.City != nil {
		l.Location.City = strings.TrimSpace(*p.City)
	}
	if p.Area != nil {
		l.Location.Area = strings.TrimSpace(*p.Area)
	}
	if p.Images != nil {
		l.Images = cleanImages(*p.Images)
		if len(l.Images) == 0 {
			l.Images = []string{DefaultImage}
		}
	}
	return l, nil
}

func validate(l Listing) error {
	switch {
	case l.Title == "":
		return fmt.Errorf("%w: title is required", ErrValidation)
	case len(l.Title) > maxTitleLength:
		return fmt.Errorf("%w: title is too long", ErrValidation)
	case len(l.Description) > maxDescriptionLength:
		return fmt.Errorf("%w: description is too long", ErrValidation)
	case math.IsNaN(l.Price) || math.IsInf(l.Price, 0) || l.Price < 0:
		return fmt.Errorf("%w: price must be a non-negative number", ErrValidation)
	case l.Location.Area == "":
		return fmt.Errorf("%w: area is required", ErrValidation)
	case len(l.Images) > maxImages:
		return fmt.Errorf("%w: at most %d images", ErrValidation, maxImages)
	}
	for _, img := range l.Images {
		u, err := url.Parse(img)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: image %q is not an http(s) URL", ErrValidation, img)
		}
	}
	return nil
}

func cleanImages(images []string) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		if img = strings.TrimSpace(img); img != "" {
			out = append(out, img)
		}
	}
	return out
}

func ownerScope(identity auth.Identity) string {
	if identity.IsAdmin() {
		return ""
	}
	return identity.SubjectID
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
