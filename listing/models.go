package listing

import (
	"fmt"
	"strings"
	"time"

	"homelinka/moderation"
)

type PropertyType string

const (
	PropertyHouse     PropertyType = "HOUSE"
	PropertyRoom      PropertyType = "ROOM"
	PropertyApartment PropertyType = "APARTMENT"
	PropertyPlot      PropertyType = "PLOT"
)

func (p PropertyType) Valid() bool {
	switch p {
	case PropertyHouse, PropertyRoom, PropertyApartment, PropertyPlot:
		return true
	default:
		return false
	}
}

type ListingType string

const (
	ListingRent ListingType = "RENT"
	ListingSale ListingType = "SALE"
)

func (t ListingType) Valid() bool {
	return t == ListingRent || t == ListingSale
}

// ParsePropertyType normalises raw input into a PropertyType.
func ParsePropertyType(raw string) (PropertyType, error) {
	p := PropertyType(strings.ToUpper(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: property type %q", ErrValidation, raw)
	}
	return p, nil
}

// ParseListingType normalises raw input into a ListingType.
func ParseListingType(raw string) (ListingType, error) {
	t := ListingType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: listing type %q", ErrValidation, raw)
	}
	return t, nil
}

type Location struct {
	State string
	City  string
	Area  string
}

// Listing mirrors the listings table.
type Listing struct {
	ID           string
	AgentID      string
	Title        string
	Description  string
	Price        float64
	PropertyType PropertyType
	ListingType  ListingType
	Location     Location
	Images       []string
	Status       moderation.ListingStatus
	Views        int64
	Contacts     int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ReviewedAt   *time.Time
	EditedAt     *time.Time
}

// AgentContact is the public projection of the owning agent.
type AgentContact struct {
	ID           string
	FullName     string
	Phone        string
	WhatsApp     string
	BusinessName string
}

// Detail is a listing joined with its agent's contact projection.
type Detail struct {
	Listing
	Agent AgentContact
}

// CreateParams carries the caller-supplied fields of a new listing.
type CreateParams struct {
	Title        string
	Description  string
	Price        *float64
	PropertyType string
	ListingType  string
	State        string
	City         string
	Area         string
	Images       []string
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title        *string
	Description  *string
	Price        *float64
	PropertyType *string
	ListingType  *string
	State        *string
	City         *string
	Area         *string
	Images       *[]string
}

func (p Patch) empty() bool {
	return p.Title == nil && p.Description == nil && p.Price == nil &&
		p.PropertyType == nil && p.ListingType == nil &&
		p.State == nil && p.City == nil && p.Area == nil && p.Images == nil
}

// Filters narrows the public feed.
type Filters struct {
	PropertyType PropertyType
	ListingType  ListingType
	State        string
	City         string
	Area         string
	MinPrice     *float64
	MaxPrice     *float64
	AgentID      string
	Page         int
	PageSize     int
	SortKey      string
	SortOrder    string
}

// Page is one page of the public feed.
type Page struct {
	Items    []Detail
	Total    int
	Page     int
	PageSize int
}

// Counter selects an engagement counter.
type Counter int

const (
	CounterViews Counter = iota + 1
	CounterContacts
)

// ContactInfo is returned when a visitor asks to reach an agent.
type ContactInfo struct {
	ListingID    string
	AgentName    string
	Phone        string
	WhatsApp     string
	WhatsAppLink string
}
