package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"homelinka/admin"
	"homelinka/agent"
	"homelinka/auth"
	"homelinka/db"
	"homelinka/lead"
	"homelinka/listing"
	"homelinka/moderation"
	"homelinka/ratelimit"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("httpapi: bad request")

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads exactly one JSON object into dst, rejecting unknown fields
// and bodies over maxBodyBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return nil
}

// errorResponse maps a domain error onto a status and a client-safe message.
func errorResponse(err error) (int, string) {
	var limited *ratelimit.LimitedError
	switch {
	case errors.Is(err, db.ErrStorageTimeout):
		return http.StatusServiceUnavailable, "Service temporarily unavailable, please retry"
	case errors.As(err, &limited):
		return http.StatusTooManyRequests, "Too many attempts, please try again later"

	case errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusBadRequest, "User already exists"
	case errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest, "Password is too short"
	case errors.Is(err, errBadRequest),
		errors.Is(err, auth.ErrValidation),
		errors.Is(err, listing.ErrValidation),
		errors.Is(err, lead.ErrValidation),
		errors.Is(err, moderation.ErrUnknownStatus),
		errors.Is(err, moderation.ErrIllegalTransition):
		return http.StatusBadRequest, "Invalid request"

	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required"

	case errors.Is(err, auth.ErrAccountPending):
		return http.StatusForbidden, "Account pending approval"
	case errors.Is(err, auth.ErrAccountRejected):
		return http.StatusForbidden, "Account rejected"
	case errors.Is(err, auth.ErrAccountSuspended):
		return http.StatusForbidden, "Account suspended"
	case errors.Is(err, listing.ErrAgentNotApproved):
		return http.StatusForbidden, "Agent account is not approved"
	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, moderation.ErrNotPermitted),
		errors.Is(err, admin.ErrProtectedAccount):
		return http.StatusForbidden, "Forbidden"

	case errors.Is(err, listing.ErrNotFoundOrForbidden),
		errors.Is(err, listing.ErrNotFound):
		return http.StatusNotFound, "Listing not found"
	case errors.Is(err, lead.ErrNotFoundOrForbidden):
		return http.StatusNotFound, "Lead not found"
	case errors.Is(err, lead.ErrNotFound):
		return http.StatusNotFound, "Listing not found"
	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, agent.ErrNotFound),
		errors.Is(err, admin.ErrNotFound):
		return http.StatusNotFound, "Not found"

	case errors.Is(err, lead.ErrAlreadyHandled):
		return http.StatusConflict, "Lead already handled"

	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorResponse(err)

	var limited *ratelimit.LimitedError
	switch {
	case status == http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
	case errors.As(err, &limited):
		w.Header().Set("Retry-After", retryAfterSeconds(limited.RetryAfter))
	}

	if status >= http.StatusInternalServerError {
		s.log.WithError(err).
			WithField("request_id", middleware.GetReqID(r.Context())).
			WithField("path", r.URL.Path).
			Error("request error")
	}
	writeJSON(w, status, messageResponse{Message: message})
}
