package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"homelinka/admin"
	"homelinka/moderation"
)

type statusRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason"`
}

func (s *Server) handlePendingAgents(w http.ResponseWriter, r *http.Request) {
	users, err := s.adminService.PendingAgents(r.Context(), identityFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]userResponse, 0, len(users))
	for _, u := range users {
		items = append(items, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	identity := identityFrom(r.Context())
	user, err := s.adminService.SetAgentStatus(r.Context(), identity, admin.Decision{
		SubjectID: chi.URLParam(r, "id"),
		Status:    req.Status,
		Reason:    req.Reason,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.WithField("agent_id", user.ID).WithField("status", user.Status).WithField("user_id", identity.SubjectID).Info("agent status set")
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handlePendingProperties(w http.ResponseWriter, r *http.Request) {
	details, err := s.adminService.PendingListings(r.Context(), identityFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]listingResponse, 0, len(details))
	for _, d := range details {
		items = append(items, toDetailResponse(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handlePropertyStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	identity := identityFrom(r.Context())
	l, err := s.adminService.SetListingStatus(r.Context(), identity, admin.Decision{
		SubjectID: chi.URLParam(r, "id"),
		Status:    req.Status,
		Reason:    req.Reason,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.WithField("listing_id", l.ID).WithField("status", l.Status).WithField("user_id", identity.SubjectID).Info("listing status set")
	writeJSON(w, http.StatusOK, toListingResponse(l))
}

func (s *Server) handleModerationEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.adminService.History(r.Context(), identityFrom(r.Context()), admin.EventFilter{
		SubjectKind: moderation.SubjectKind(strings.ToUpper(strings.TrimSpace(q.Get("kind")))),
		SubjectID:   strings.TrimSpace(q.Get("subjectId")),
		Limit:       limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]eventResponse, 0, len(events))
	for _, e := range events {
		items = append(items, toEventResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
