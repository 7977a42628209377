package httpapi

import (
	"net/http"
	"strings"

	"homelinka/auth"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.throttle(r, "register", ""); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.authService.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.WithField("user_id", user.ID).Info("agent registered")
	writeJSON(w, http.StatusCreated, messageResponse{Message: "Registration successful. Awaiting admin approval."})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.throttle(r, "login", strings.ToLower(strings.TrimSpace(req.Email))); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token: result.Token,
		User: sessionUser{
			ID:       result.User.ID,
			FullName: result.User.FullName,
			Role:     string(result.User.Role),
			Status:   string(result.User.Status),
		},
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	user, err := s.authService.GetUserByID(r.Context(), identity.SubjectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(*user))
}
