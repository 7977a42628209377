package httpapi

import (
	"time"

	"homelinka/admin"
	"homelinka/agent"
	"homelinka/auth"
	"homelinka/lead"
	"homelinka/listing"
)

type userResponse struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	FullName     string  `json:"fullName"`
	Phone        string  `json:"phone"`
	WhatsApp     *string `json:"whatsapp"`
	BusinessName string  `json:"businessName"`
	Role         string  `json:"role"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"createdAt"`
}

func toUserResponse(u auth.User) userResponse {
	return userResponse{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		Phone:        u.Phone,
		WhatsApp:     u.WhatsApp,
		BusinessName: u.BusinessName,
		Role:         string(u.Role),
		Status:       string(u.Status),
		CreatedAt:    formatTime(u.CreatedAt),
	}
}

type sessionUser struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  sessionUser `json:"user"`
}

type locationResponse struct {
	State string `json:"state"`
	City  string `json:"city"`
	Area  string `json:"area"`
}

type agentContactResponse struct {
	ID           string `json:"id"`
	FullName     string `json:"fullName"`
	Phone        string `json:"phone"`
	WhatsApp     string `json:"whatsapp"`
	BusinessName string `json:"businessName,omitempty"`
}

type listingResponse struct {
	ID           string                `json:"id"`
	AgentID      string                `json:"agentId"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Price        float64               `json:"price"`
	PropertyType string                `json:"propertyType"`
	ListingType  string                `json:"listingType"`
	Location     locationResponse      `json:"location"`
	Images       []string              `json:"images"`
	Status       string                `json:"status"`
	Views        int64                 `json:"views"`
	Contacts     int64                 `json:"contacts"`
	CreatedAt    string                `json:"createdAt"`
	UpdatedAt    string                `json:"updatedAt"`
	ReviewedAt   *string               `json:"reviewedAt,omitempty"`
	EditedAt     *string               `json:"editedAt,omitempty"`
	Agent        *agentContactResponse `json:"agent,omitempty"`
}

func toListingResponse(l listing.Listing) listingResponse {
	images := l.Images
	if images == nil {
		images = []string{}
	}
	return listingResponse{
		ID:           l.ID,
		AgentID:      l.AgentID,
		Title:        l.Title,
		Description:  l.Description,
		Price:        l.Price,
		PropertyType: string(l.PropertyType),
		ListingType:  string(l.ListingType),
		Location: locationResponse{
			State: l.Location.State,
			City:  l.Location.City,
			Area:  l.Location.Area,
		},
		Images:     images,
		Status:     string(l.Status),
		Views:      l.Views,
		Contacts:   l.Contacts,
		CreatedAt:  formatTime(l.CreatedAt),
		UpdatedAt:  formatTime(l.UpdatedAt),
		ReviewedAt: formatTimePtr(l.ReviewedAt),
		EditedAt:   formatTimePtr(l.EditedAt),
	}
}

func toDetailResponse(d listing.Detail) listingResponse {
	resp := toListingResponse(d.Listing)
	resp.Agent = &agentContactResponse{
		ID:           d.Agent.ID,
		FullName:     d.Agent.FullName,
		Phone:        d.Agent.Phone,
		WhatsApp:     d.Agent.WhatsApp,
		BusinessName: d.Agent.BusinessName,
	}
	return resp
}

type contactResponse struct {
	ListingID    string `json:"listingId"`
	AgentName    string `json:"agentName"`
	Phone        string `json:"phone"`
	WhatsApp     string `json:"whatsapp"`
	WhatsAppLink string `json:"whatsappLink"`
}

type agentResponse struct {
	ID               string `json:"id"`
	FullName         string `json:"fullName"`
	BusinessName     string `json:"businessName"`
	Phone            string `json:"phone"`
	WhatsApp         string `json:"whatsapp"`
	ApprovedListings int    `json:"approvedListings"`
	JoinedAt         string `json:"joinedAt"`
}

func toAgentResponse(p agent.Profile) agentResponse {
	return agentResponse{
		ID:               p.ID,
		FullName:         p.FullName,
		BusinessName:     p.BusinessName,
		Phone:            p.Phone,
		WhatsApp:         p.WhatsApp,
		ApprovedListings: p.ApprovedListings,
		JoinedAt:         formatTime(p.JoinedAt),
	}
}

type leadResponse struct {
	ID        string  `json:"id"`
	ListingID string  `json:"listingId"`
	Name      string  `json:"name"`
	Phone     string  `json:"phone"`
	Message   string  `json:"message"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"createdAt"`
	HandledAt *string `json:"handledAt,omitempty"`
}

func toLeadResponse(rec lead.Record) leadResponse {
	return leadResponse{
		ID:        rec.ID,
		ListingID: rec.ListingID,
		Name:      rec.Name,
		Phone:     rec.Phone,
		Message:   rec.Message,
		Status:    string(rec.Status),
		CreatedAt: formatTime(rec.CreatedAt),
		HandledAt: formatTimePtr(rec.HandledAt),
	}
}

type eventResponse struct {
	ID             int64   `json:"id"`
	SubjectKind    string  `json:"subjectKind"`
	SubjectID      string  `json:"subjectId"`
	PreviousStatus string  `json:"previousStatus"`
	NextStatus     string  `json:"nextStatus"`
	ActorID        *string `json:"actorId,omitempty"`
	Reason         *string `json:"reason,omitempty"`
	CreatedAt      string  `json:"createdAt"`
}

func toEventResponse(e admin.Event) eventResponse {
	return eventResponse{
		ID:             e.ID,
		SubjectKind:    string(e.SubjectKind),
		SubjectID:      e.SubjectID,
		PreviousStatus: e.PreviousStatus,
		NextStatus:     e.NextStatus,
		ActorID:        e.ActorID,
		Reason:         e.Reason,
		CreatedAt:      formatTime(e.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
