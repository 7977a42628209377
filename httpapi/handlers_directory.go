package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type markLeadRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	profiles, err := s.agentService.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]agentResponse, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, toAgentResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	profile, err := s.agentService.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgentResponse(profile))
}

func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	records, err := s.leadService.List(r.Context(), identityFrom(r.Context()), strings.TrimSpace(r.URL.Query().Get("listingId")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]leadResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, toLeadResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleMarkLead accepts only the HANDLED transition.
func (s *Server) handleMarkLead(w http.ResponseWriter, r *http.Request) {
	var req markLeadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !strings.EqualFold(strings.TrimSpace(req.Status), "HANDLED") {
		s.writeError(w, r, errBadRequest)
		return
	}
	rec, err := s.leadService.MarkHandled(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeadResponse(rec))
}
