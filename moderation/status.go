package moderation

import (
	"fmt"
	"strings"
)

// UserStatus is the moderation state of an agent account.
type UserStatus string

const (
	UserPending   UserStatus = "PENDING"
	UserApproved  UserStatus = "APPROVED"
	UserRejected  UserStatus = "REJECTED"
	UserSuspended UserStatus = "SUSPENDED"
)

// ListingStatus is the moderation state of a property listing. There is no
// SUSPENDED listing state.
type ListingStatus string

const (
	ListingPending  ListingStatus = "PENDING"
	ListingApproved ListingStatus = "APPROVED"
	ListingRejected ListingStatus = "REJECTED"
)

// SubjectKind names the entity a moderation event refers to.
type SubjectKind string

const (
	SubjectUser    SubjectKind = "USER"
	SubjectListing SubjectKind = "LISTING"
)

// ParseUserStatus normalises raw input into a UserStatus.
func ParseUserStatus(raw string) (UserStatus, error) {
	s := UserStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: user status %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// ParseListingStatus normalises raw input into a ListingStatus.
func ParseListingStatus(raw string) (ListingStatus, error) {
	s := ListingStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: listing status %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

func (s UserStatus) Valid() bool {
	switch s {
	case UserPending, UserApproved, UserRejected, UserSuspended:
		return true
	default:
		return false
	}
}

// CanSignIn reports whether an account in this state may obtain a session.
func (s UserStatus) CanSignIn() bool {
	return s == UserApproved
}

func (s ListingStatus) Valid() bool {
	switch s {
	case ListingPending, ListingApproved, ListingRejected:
		return true
	default:
		return false
	}
}

// Public reports whether a listing in this state belongs in the public feed.
func (s ListingStatus) Public() bool {
	return s == ListingApproved
}
