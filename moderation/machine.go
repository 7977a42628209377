package moderation

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStatus signals a status value outside the entity's state set.
	ErrUnknownStatus = errors.New("moderation: unknown status")
	// ErrIllegalTransition signals a transition the state machine never allows.
	ErrIllegalTransition = errors.New("moderation: illegal transition")
	// ErrNotPermitted signals the actor may not trigger the transition.
	ErrNotPermitted = errors.New("moderation: actor not permitted")
)

// Actor identifies who is driving a transition.
type Actor int

const (
	// ActorAdmin holds the ADMIN capability and may overwrite any state.
	ActorAdmin Actor = iota + 1
	// ActorOwner is the agent that created the listing.
	ActorOwner
)

func (a Actor) String() string {
	switch a {
	case ActorAdmin:
		return "admin"
	case ActorOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// ValidateUserTransition checks an account status change. Only admins move
// accounts, and PENDING is reachable solely through registration.
func ValidateUserTransition(actor Actor, from, to UserStatus) error {
	if !from.Valid() {
		return fmt.Errorf("%w: current user status %q", ErrUnknownStatus, from)
	}
	if !to.Valid() {
		return fmt.Errorf("%w: user status %q", ErrUnknownStatus, to)
	}
	if actor != ActorAdmin {
		return fmt.Errorf("%w: %s cannot change account status", ErrNotPermitted, actor)
	}
	if from == to {
		return nil
	}
	switch to {
	case UserApproved, UserRejected, UserSuspended:
		return nil
	default:
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
}

// ValidateListingTransition checks a listing status change. Admins overwrite
// to APPROVED or REJECTED from any state; owners may only resubmit.
func ValidateListingTransition(actor Actor, from, to ListingStatus) error {
	if !from.Valid() {
		return fmt.Errorf("%w: current listing status %q", ErrUnknownStatus, from)
	}
	if !to.Valid() {
		return fmt.Errorf("%w: listing status %q", ErrUnknownStatus, to)
	}

	switch actor {
	case ActorAdmin:
		if from == to {
			return nil
		}
		if to == ListingApproved || to == ListingRejected {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	case ActorOwner:
		if to == ListingPending {
			return nil
		}
		return fmt.Errorf("%w: owner cannot move listing to %s", ErrNotPermitted, to)
	default:
		return fmt.Errorf("%w: %s", ErrNotPermitted, actor)
	}
}

// ListingAfterEdit returns the status a listing must take after its owner
// edits it. Every edit goes back to review, whatever the prior state.
func ListingAfterEdit(ListingStatus) ListingStatus {
	return ListingPending
}
