package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"homelinka/auth"
	"homelinka/ratelimit"
)

type ctxKey string

const (
	ctxKeyUserID ctxKey = "user_id"
	ctxKeyRole   ctxKey = "role"
)

// authenticate rejects requests without a valid bearer token and stores the
// caller's identity in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.guard.RequireAuthenticated(r.Header.Get("Authorization"))
		if err != nil {
			s.log.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Debug("authentication failed")
			s.writeError(w, r, auth.ErrUnauthenticated)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUserID, identity.SubjectID)
		ctx = context.WithValue(ctx, ctxKeyRole, identity.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// require rejects callers lacking the capability.
func (s *Server) require(capability auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.RequireRole(identityFrom(r.Context()), capability); err != nil {
				s.writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identityFrom(ctx context.Context) auth.Identity {
	userID, _ := ctx.Value(ctxKeyUserID).(string)
	role, _ := ctx.Value(ctxKeyRole).(auth.Role)
	return auth.Identity{SubjectID: userID, Role: role}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		entry := s.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"bytes":       ww.BytesWritten(),
			"duration_ms": s.now().Sub(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
		if userID, ok := r.Context().Value(ctxKeyUserID).(string); ok {
			entry = entry.WithField("user_id", userID)
		}
		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}
	})
}

// throttle consumes one hit for the scope and key. A limiter that cannot be
// reached lets the request through.
func (s *Server) throttle(r *http.Request, scope, key string) error {
	if s.limiter == nil {
		return nil
	}
	err := ratelimit.Check(r.Context(), s.limiter, fmt.Sprintf("%s:%s:%s", scope, clientIP(r), key), s.loginLimit, s.now())
	if err == nil || errors.Is(err, ratelimit.ErrLimited) {
		return err
	}
	s.log.WithError(err).WithFields(logrus.Fields{
		"scope":      scope,
		"request_id": middleware.GetReqID(r.Context()),
	}).Warn("rate limiter unavailable")
	return nil
}

// clientIP keys on the socket peer. Forwarding headers are client-controlled
// and are not consulted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("%d", secs)
}
