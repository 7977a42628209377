package httpapi

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"homelinka/lead"
	"homelinka/listing"
)

type createListingRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Price        *float64 `json:"price"`
	PropertyType string   `json:"propertyType"`
	ListingType  string   `json:"listingType"`
	State        string   `json:"state"`
	City         string   `json:"city"`
	Area         string   `json:"area"`
	Images       []string `json:"images"`
}

type updateListingRequest struct {
	Title        *string   `json:"title"`
	Description  *string   `json:"description"`
	Price        *float64  `json:"price"`
	PropertyType *string   `json:"propertyType"`
	ListingType  *string   `json:"listingType"`
	State        *string   `json:"state"`
	City         *string   `json:"city"`
	Area         *string   `json:"area"`
	Images       *[]string `json:"images"`
}

type createLeadRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type feedResponse struct {
	Items    []listingResponse `json:"items"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.listingService.Feed(r.Context(), filters)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	items := make([]listingResponse, 0, len(page.Items))
	for _, d := range page.Items {
		items = append(items, toDetailResponse(d))
	}
	writeJSON(w, http.StatusOK, feedResponse{
		Items:    items,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	})
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	d, err := s.listingService.GetPublic(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponse(d))
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	info, err := s.listingService.Contact(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contactResponse{
		ListingID:    info.ListingID,
		AgentName:    info.AgentName,
		Phone:        info.Phone,
		WhatsApp:     info.WhatsApp,
		WhatsAppLink: info.WhatsAppLink,
	})
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.leadService.Create(r.Context(), lead.CreateParams{
		ListingID: chi.URLParam(r, "id"),
		Name:      req.Name,
		Phone:     req.Phone,
		Message:   req.Message,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeadResponse(rec))
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	listings, err := s.listingService.Mine(r.Context(), identityFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		items = append(items, toListingResponse(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	identity := identityFrom(r.Context())
	created, err := s.listingService.Create(r.Context(), identity, listing.CreateParams{
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		PropertyType: req.PropertyType,
		ListingType:  req.ListingType,
		State:        req.State,
		City:         req.City,
		Area:         req.Area,
		Images:       req.Images,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.WithField("listing_id", created.ID).WithField("user_id", identity.SubjectID).Info("listing submitted")
	writeJSON(w, http.StatusCreated, toListingResponse(created))
}

func (s *Server) handleUpdateProperty(w http.ResponseWriter, r *http.Request) {
	var req updateListingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.listingService.Update(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"), listing.Patch{
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		PropertyType: req.PropertyType,
		ListingType:  req.ListingType,
		State:        req.State,
		City:         req.City,
		Area:         req.Area,
		Images:       req.Images,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(updated))
}

func (s *Server) handleDeleteProperty(w http.ResponseWriter, r *http.Request) {
	if err := s.listingService.Delete(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Property deleted"})
}

// parseFilters reads the feed query string. Unknown enum values are rejected
// rather than ignored.
func parseFilters(r *http.Request) (listing.Filters, error) {
	q := r.URL.Query()
	f := listing.Filters{
		State:     strings.TrimSpace(q.Get("state")),
		City:      strings.TrimSpace(q.Get("city")),
		Area:      strings.TrimSpace(q.Get("area")),
		AgentID:   strings.TrimSpace(q.Get("agentId")),
		SortKey:   q.Get("sort"),
		SortOrder: q.Get("order"),
	}

	if raw := q.Get("propertyType"); raw != "" {
		p, err := listing.ParsePropertyType(raw)
		if err != nil {
			return listing.Filters{}, err
		}
		f.PropertyType = p
	}
	if raw := q.Get("listingType"); raw != "" {
		t, err := listing.ParseListingType(raw)
		if err != nil {
			return listing.Filters{}, err
		}
		f.ListingType = t
	}

	var err error
	if f.MinPrice, err = floatParam(q.Get("minPrice"), "minPrice"); err != nil {
		return listing.Filters{}, err
	}
	if f.MaxPrice, err = floatParam(q.Get("maxPrice"), "maxPrice"); err != nil {
		return listing.Filters{}, err
	}
	if f.Page, err = intParam(q.Get("page"), "page"); err != nil {
		return listing.Filters{}, err
	}
	if f.PageSize, err = intParam(q.Get("pageSize"), "pageSize"); err != nil {
		return listing.Filters{}, err
	}
	return f, nil
}

func floatParam(raw, name string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %s must be a number", errBadRequest, name)
	}
	return &v, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, name)
	}
	return v, nil
}
