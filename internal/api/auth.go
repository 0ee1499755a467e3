package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/frametech/leads-dashboard/internal/session"
	"github.com/frametech/leads-dashboard/internal/validation"
)

const sessionCookie = "leads_session"

// cookie lifetime; the login flag itself never expires
const sessionCookieMaxAge = 365 * 24 * 60 * 60

type ctxKey int

const sessionKey ctxKey = 0

func getSessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

// withSession attaches the browser's session, issuing a cookie on the
// first visit.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
			id = c.Value
		} else {
			id = session.NewID()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   sessionCookieMaxAge,
				HttpOnly: true,
				Secure:   s.SecureCookie,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := context.WithValue(r.Context(), sessionKey, session.New(id, s.Flags))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireLogin sends anonymous page requests to /login and answers API
// requests with 401.
func (s *Server) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, err := getSessionFromContext(r.Context()).LoggedIn(r.Context())
		if err != nil {
			log.WithError(err).Error("reading session flag")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if ok {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}

// GET /login
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if ok, _ := getSessionFromContext(r.Context()).LoggedIn(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	s.render(w, http.StatusOK, "login.html", map[string]any{"Username": "", "Error": ""})
}

// POST /login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "login.html", map[string]any{"Username": "", "Error": "Invalid form submission"})
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")

	fail := func() {
		s.render(w, http.StatusUnauthorized, "login.html", map[string]any{
			"Error":    session.InvalidCredentialsMessage,
			"Username": username,
		})
	}

	v := validation.New().
		Required("username", username).
		Required("password", password).
		MaxLength("username", username, 256).
		MaxLength("password", password, 256)
	if !v.Valid() {
		fail()
		return
	}

	sess := getSessionFromContext(r.Context())
	err := s.Gate.Login(r.Context(), sess, username, password)
	if errors.Is(err, session.ErrInvalidCredentials) {
		log.WithField("username", username).Info("login rejected")
		fail()
		return
	}
	if err != nil {
		log.WithError(err).Error("saving session flag")
		s.render(w, http.StatusInternalServerError, "login.html", map[string]any{"Username": username, "Error": "Login failed, try again"})
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// POST /logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.Gate.Logout(r.Context(), getSessionFromContext(r.Context())); err != nil {
		log.WithError(err).Error("clearing session flag")
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
