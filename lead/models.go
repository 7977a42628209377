package lead

import "time"

// Status represents the lifecycle of a lead.
type Status string

const (
	StatusNew     Status = "NEW"
	StatusHandled Status = "HANDLED"
)

// Record mirrors the leads table.
type Record struct {
	ID        string
	ListingID string
	Name      string
	Phone     string
	Message   string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
	HandledAt *time.Time
}

// CreateParams is an enquiry left by a visitor.
type CreateParams struct {
	ListingID string
	Name      string
	Phone     string
	Message   string
}
