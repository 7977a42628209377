package admin

import (
	"time"

	"homelinka/moderation"
)

// Event is one row of the moderation history.
type Event struct {
	ID             int64
	SubjectKind    moderation.SubjectKind
	SubjectID      string
	PreviousStatus string
	NextStatus     string
	ActorID        *string
	Reason         *string
	CreatedAt      time.Time
}

// EventFilter narrows History. Zero values match everything.
type EventFilter struct {
	SubjectKind moderation.SubjectKind
	SubjectID   string
	Limit       int
}

// Decision is an admin status change request.
type Decision struct {
	SubjectID string
	Status    string
	Reason    *string
}
