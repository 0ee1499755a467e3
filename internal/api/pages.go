package api

import (
	"context"
	"html/template"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/frametech/leads-dashboard/internal/dashboard"
	"github.com/frametech/leads-dashboard/internal/leads"
	"github.com/frametech/leads-dashboard/internal/models"
)

const timeLayout = "1/2/2006, 3:04:05 PM"

const refreshTimeout = 15 * time.Second

var funcMap = template.FuncMap{
	"safe":           leads.Safe,
	"titleCase":      leads.TitleCase,
	"badge":          leads.BadgeClass,
	"hasAppointment": leads.HasAppointment,
	"hasDetails":     leads.HasAppointmentDetails,
	"orDefault": func(def, v string) string {
		if v == "" {
			return def
		}
		return v
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return leads.NotAvailable
		}
		return t.Local().Format(timeLayout)
	},
	"formatTimePtr": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return leads.NotAvailable
		}
		return t.Local().Format(timeLayout)
	},
	"lower": strings.ToLower,
}

// warmthTable is one of the three tables on the leads page.
type warmthTable struct {
	Title string
	Class string
	Rows  []models.Lead
}

// overview returns the current view model. It loads on first use and
// retries while the cached view is an error, so a recovered backend shows
// up on the next page load. The fetch is detached from the request so a
// client hanging up cannot turn into everyone's error view.
func (s *Server) overview(r *http.Request) dashboard.Overview {
	ov := s.Dashboard.Current()
	if ov.Loaded() && ov.Error == "" {
		return ov
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), refreshTimeout)
	defer cancel()
	ov, _ = s.Dashboard.Refresh(ctx)
	return ov
}

// GET /dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ov := s.overview(r)
	if ov.Error != "" {
		s.render(w, http.StatusInternalServerError, "error.html", map[string]any{"Error": ov.Error, "Nav": "dashboard"})
		return
	}
	s.render(w, http.StatusOK, "dashboard.html", map[string]any{
		"Nav":      "dashboard",
		"Overview": ov,
	})
}

// GET /leads
func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	b, err := s.Dashboard.Leads(r.Context())
	if err != nil {
		log.WithError(err).Error("loading leads page")
		s.render(w, http.StatusInternalServerError, "error.html", map[string]any{"Error": dashboard.LoadErrorMessage, "Nav": "leads"})
		return
	}
	s.render(w, http.StatusOK, "leads.html", map[string]any{
		"Nav": "leads",
		"Tables": []warmthTable{
			{Title: "🔥 Hot Leads", Class: "hot", Rows: b.Hot},
			{Title: "🌤️ Warm Leads", Class: "warm", Rows: b.Warm},
			{Title: "❄️ Cold Leads", Class: "cold", Rows: b.Cold},
		},
	})
}

// GET /call-logs
func (s *Server) handleCallLogs(w http.ResponseWriter, r *http.Request) {
	calls, err := s.Dashboard.CallLog(r.Context())
	if err != nil {
		log.WithError(err).Error("loading call log")
		s.render(w, http.StatusInternalServerError, "error.html", map[string]any{"Error": dashboard.LoadErrorMessage, "Nav": "call-logs"})
		return
	}
	s.render(w, http.StatusOK, "call_logs.html", map[string]any{
		"Nav":   "call-logs",
		"Calls": calls,
	})
}

// ----------------------
// JSON
// ----------------------

// GET /api/overview
func (s *Server) handleAPIOverview(w http.ResponseWriter, r *http.Request) {
	ov := s.overview(r)
	if ov.Error != "" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": ov.Error})
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// GET /api/leads
func (s *Server) handleAPILeads(w http.ResponseWriter, r *http.Request) {
	b, err := s.Dashboard.Leads(r.Context())
	if err != nil {
		log.WithError(err).Error("loading leads")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": dashboard.LoadErrorMessage})
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GET /api/call-logs
func (s *Server) handleAPICallLogs(w http.ResponseWriter, r *http.Request) {
	calls, err := s.Dashboard.CallLog(r.Context())
	if err != nil {
		log.WithError(err).Error("loading call log")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": dashboard.LoadErrorMessage})
		return
	}
	writeJSON(w, http.StatusOK, calls)
}
