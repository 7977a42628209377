// Package httpapi exposes the marketplace over JSON/HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"homelinka/admin"
	"homelinka/agent"
	"homelinka/auth"
	"homelinka/lead"
	"homelinka/listing"
	"homelinka/ratelimit"
)

type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	GetUserByID(ctx context.Context, userID string) (*auth.User, error)
}

type ListingService interface {
	Create(ctx context.Context, identity auth.Identity, params listing.CreateParams) (listing.Listing, error)
	Update(ctx context.Context, identity auth.Identity, id string, patch listing.Patch) (listing.Listing, error)
	Delete(ctx context.Context, identity auth.Identity, id string) error
	Feed(ctx context.Context, filters listing.Filters) (listing.Page, error)
	GetPublic(ctx context.Context, id string) (listing.Detail, error)
	Contact(ctx context.Context, id string) (listing.ContactInfo, error)
	Mine(ctx context.Context, identity auth.Identity) ([]listing.Listing, error)
}

type AdminService interface {
	PendingAgents(ctx context.Context, actor auth.Identity) ([]auth.User, error)
	SetAgentStatus(ctx context.Context, actor auth.Identity, d admin.Decision) (auth.User, error)
	PendingListings(ctx context.Context, actor auth.Identity) ([]listing.Detail, error)
	SetListingStatus(ctx context.Context, actor auth.Identity, d admin.Decision) (listing.Listing, error)
	History(ctx context.Context, actor auth.Identity, filter admin.EventFilter) ([]admin.Event, error)
}

type AgentService interface {
	GetByID(ctx context.Context, id string) (agent.Profile, error)
	List(ctx context.Context, limit int) ([]agent.Profile, error)
}

type LeadService interface {
	Create(ctx context.Context, params lead.CreateParams) (lead.Record, error)
	List(ctx context.Context, identity auth.Identity, listingID string) ([]lead.Record, error)
	MarkHandled(ctx context.Context, identity auth.Identity, leadID string) (lead.Record, error)
}

// Deps wires the server to its collaborators.
type Deps struct {
	Auth     AuthService
	Guard    *auth.Guard
	Listings ListingService
	Admin    AdminService
	Agents   AgentService
	Leads    LeadService

	// Limiter throttles register and login. Nil disables throttling.
	Limiter    ratelimit.Limiter
	LoginLimit int

	Log *logrus.Logger
	Now func() time.Time
}

// Server holds the handlers. Routes returns the mountable handler.
type Server struct {
	authService    AuthService
	guard          *auth.Guard
	listingService ListingService
	adminService   AdminService
	agentService   AgentService
	leadService    LeadService
	limiter        ratelimit.Limiter
	loginLimit     int
	log            *logrus.Logger
	now            func() time.Time
}

func NewServer(d Deps) *Server {
	s := &Server{
		authService:    d.Auth,
		guard:          d.Guard,
		listingService: d.Listings,
		adminService:   d.Admin,
		agentService:   d.Agents,
		leadService:    d.Leads,
		limiter:        d.Limiter,
		loginLimit:     d.LoginLimit,
		log:            d.Log,
		now:            d.Now,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Routes builds the router. The result can be mounted by any http host.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "Route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, messageResponse{Message: "Method not allowed"})
	})

	r.Get("/api/health", s.handleHealth)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.With(s.authenticate).Get("/me", s.handleMe)
	})

	r.Route("/api/properties", func(r chi.Router) {
		r.Get("/", s.handleFeed)
		r.Get("/{id}", s.handleGetProperty)
		r.Post("/{id}/contact", s.handleContact)
		r.Post("/{id}/leads", s.handleCreateLead)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate, s.require(auth.CapAgent))
			r.Get("/mine", s.handleMine)
			r.Post("/", s.handleCreateProperty)
			r.Patch("/{id}", s.handleUpdateProperty)
			r.Delete("/{id}", s.handleDeleteProperty)
		})
	})

	r.Route("/api/leads", func(r chi.Router) {
		r.Use(s.authenticate, s.require(auth.CapAgent))
		r.Get("/", s.handleLeads)
		r.Patch("/{id}", s.handleMarkLead)
	})

	r.Get("/api/agents", s.handleAgents)
	r.Get("/api/agents/{id}", s.handleAgent)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(s.authenticate, s.require(auth.CapAdmin))
		r.Get("/agents/pending", s.handlePendingAgents)
		r.Patch("/agents/{id}/status", s.handleAgentStatus)
		r.Get("/properties/pending", s.handlePendingProperties)
		r.Patch("/properties/{id}/status", s.handlePropertyStatus)
		r.Get("/moderation-events", s.handleModerationEvents)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "HomeLinka Backend is running"})
}
