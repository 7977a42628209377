package agent

import "time"

// Profile is the public view of an APPROVED agent.
type Profile struct {
	ID               string
	FullName         string
	BusinessName     string
	Phone            string
	WhatsApp         string
	ApprovedListings int
	JoinedAt         time.Time
}
