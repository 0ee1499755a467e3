package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frametech/leads-dashboard/internal/dashboard"
	"github.com/frametech/leads-dashboard/internal/feed"
	"github.com/frametech/leads-dashboard/internal/models"
	"github.com/frametech/leads-dashboard/internal/session"
	"github.com/frametech/leads-dashboard/internal/store"
)

func ptr(s string) *string { return &s }

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestServer(t *testing.T, st *store.Store) (*Server, http.Handler) {
	t.Helper()
	d := dashboard.New(st, feed.NewBroker())
	srv, err := NewServer(d, session.Gate{Username: "admin", Password: "password123"}, session.NewMemoryStore())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv, srv.Router()
}

func seedLeads(t *testing.T, st *store.Store) {
	t.Helper()
	now := time.Now()
	rows := []models.Lead{
		{ID: 1, Name: ptr("jane doe"), PhoneNumber: ptr("+15550001"), LeadWarmth: ptr("hot"),
			ReasonForCall: ptr("book a demo"), CalendarLink: ptr("https://cal/x"), CreatedAt: now.Add(-30 * 24 * time.Hour)},
		{ID: 2, Name: ptr("bob"), LeadWarmth: ptr("Warm"), AppointmentDetails: ptr("optional"), CreatedAt: now.Add(-2 * time.Hour),
			Summary: ptr("asked about pricing")},
		{ID: 3, LeadWarmth: ptr("warm"), CreatedAt: now.Add(-time.Hour), Email: ptr("c@example.com")},
	}
	if err := st.InsertLeads(context.Background(), rows); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func postLogin(h http.Handler, cookie *http.Cookie, user, pass string) *httptest.ResponseRecorder {
	form := url.Values{"username": {user}, "password": {pass}}
	req := httptest.NewRequest("POST", "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func login(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	rec := postLogin(h, nil, "admin", "password123")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login: expected 303, got %d", rec.Code)
	}
	return sessionCookieFrom(t, rec)
}

func get(h http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPagesRequireLogin(t *testing.T) {
	_, h := newTestServer(t, openTestStore(t))

	for _, path := range []string{"/", "/dashboard", "/leads", "/call-logs"} {
		rec := get(h, path, nil)
		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
			t.Errorf("%s: expected redirect to /login, got %d %q", path, rec.Code, rec.Header().Get("Location"))
		}
	}
	for _, path := range []string{"/api/overview", "/api/leads", "/api/call-logs", "/api/events"} {
		rec := get(h, path, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	_, h := newTestServer(t, openTestStore(t))

	rec := postLogin(h, nil, "admin", "nope")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid username or password") {
		t.Error("expected inline error message")
	}
	cookie := sessionCookieFrom(t, rec)
	if got := get(h, "/dashboard", cookie); got.Code != http.StatusFound {
		t.Errorf("failed login must not grant access, got %d", got.Code)
	}

	blank := postLogin(h, cookie, "", "")
	if blank.Code != http.StatusUnauthorized || !strings.Contains(blank.Body.String(), "Invalid username or password") {
		t.Errorf("blank form: got %d", blank.Code)
	}
}

func TestLoginPersistsAndLogout(t *testing.T) {
	_, h := newTestServer(t, openTestStore(t))
	cookie := login(t, h)

	if rec := get(h, "/login", cookie); rec.Code != http.StatusFound || rec.Header().Get("Location") != "/dashboard" {
		t.Errorf("logged-in /login should redirect to dashboard, got %d", rec.Code)
	}
	if rec := get(h, "/dashboard", cookie); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req := httptest.NewRequest("POST", "/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("logout: expected 303, got %d", rec.Code)
	}
	if rec := get(h, "/dashboard", cookie); rec.Code != http.StatusFound {
		t.Errorf("expected redirect after logout, got %d", rec.Code)
	}
}

func TestDashboardPage(t *testing.T) {
	st := openTestStore(t)
	seedLeads(t, st)
	_, h := newTestServer(t, st)
	cookie := login(t, h)

	rec := get(h, "/dashboard", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Dashboard Overview",
		`id="kpi-total">3<`,
		`id="kpi-new">2<`,
		`id="kpi-appts">1<`,
		"Jane doe",
		"Unknown",
		"Book a demo",
		`class="badge badge-hot">Hot<`,
		`class="badge badge-warm">Warm<`,
		"33%",
		"67%",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in dashboard", want)
		}
	}
}

func TestLeadsPage(t *testing.T) {
	st := openTestStore(t)
	seedLeads(t, st)
	_, h := newTestServer(t, st)
	cookie := login(t, h)

	rec := get(h, "/leads", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "jane doe") {
		t.Error("expected hot lead in hot table")
	}
	if strings.Contains(body, ">bob<") {
		t.Error(`"Warm" is not an exact match and must not be bucketed`)
	}
	if !strings.Contains(body, "c@example.com") {
		t.Error("expected warm lead")
	}
	if !strings.Contains(body, "No ❄️ cold leads") {
		t.Error("expected empty cold placeholder")
	}
}

func TestCallLogsPage(t *testing.T) {
	st := openTestStore(t)
	seedLeads(t, st)
	_, h := newTestServer(t, st)
	cookie := login(t, h)

	rec := get(h, "/call-logs", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	// newest first: bob (2h ago) above jane (30 days ago)
	iBob := strings.Index(body, "bob")
	iJane := strings.Index(body, "jane doe")
	if iBob < 0 || iJane < 0 || iBob > iJane {
		t.Error("expected newest calls first")
	}
	if !strings.Contains(body, "asked about pricing") || !strings.Contains(body, "N/A") {
		t.Error("expected summary and N/A placeholders")
	}
	if !strings.Contains(body, "✅") {
		t.Error(`"optional" appointment details count on the call log`)
	}
}

func TestAPIOverview(t *testing.T) {
	st := openTestStore(t)
	seedLeads(t, st)
	_, h := newTestServer(t, st)
	cookie := login(t, h)

	rec := get(h, "/api/overview", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ov dashboard.Overview
	if err := json.NewDecoder(rec.Body).Decode(&ov); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ov.KPI.TotalCalls != 3 || ov.KPI.NewLeads != 2 || len(ov.Leads) != 3 {
		t.Errorf("unexpected overview %+v", ov.KPI)
	}
	if ov.Leads[0].ID != 3 {
		t.Errorf("expected newest first, got id %d", ov.Leads[0].ID)
	}

	rec = get(h, "/api/leads", cookie)
	var b struct {
		Hot  []models.Lead `json:"hot"`
		Warm []models.Lead `json:"warm"`
	}
	json.NewDecoder(rec.Body).Decode(&b)
	if len(b.Hot) != 1 || len(b.Warm) != 1 {
		t.Errorf("unexpected buckets hot=%d warm=%d", len(b.Hot), len(b.Warm))
	}
}

func TestBackendFailureShowsError(t *testing.T) {
	st := openTestStore(t)
	_, h := newTestServer(t, st)
	cookie := login(t, h)
	st.Close()

	rec := get(h, "/dashboard", cookie)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Failed to load data") {
		t.Error("expected generic error message")
	}
	if strings.Contains(rec.Body.String(), "Total Leads") {
		t.Error("error state must not render the data view")
	}

	rec = get(h, "/api/status", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status: expected 503, got %d", rec.Code)
	}
}

// flakyStore fails Recent while down is set.
type flakyStore struct {
	store.RowStore
	down atomic.Bool
}

func (f *flakyStore) Recent(ctx context.Context, limit int) ([]models.Lead, error) {
	if f.down.Load() {
		return nil, errors.New("connection refused")
	}
	return f.RowStore.Recent(ctx, limit)
}

func TestDashboardRecoversAfterBackendFailure(t *testing.T) {
	st := openTestStore(t)
	seedLeads(t, st)
	fs := &flakyStore{RowStore: st}
	fs.down.Store(true)

	srv, err := NewServer(dashboard.New(fs, feed.NewBroker()), session.Gate{Username: "admin", Password: "password123"}, session.NewMemoryStore())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	h := srv.Router()
	cookie := login(t, h)

	if rec := get(h, "/dashboard", cookie); rec.Code != http.StatusInternalServerError {
		t.Fatalf("backend down: expected 500, got %d", rec.Code)
	}

	fs.down.Store(false)
	rec := get(h, "/dashboard", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("backend back: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "kpi-total") {
		t.Error("expected the data view after recovery")
	}

	rec = get(h, "/api/overview", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("api after recovery: expected 200, got %d", rec.Code)
	}
	var ov dashboard.Overview
	if err := json.NewDecoder(rec.Body).Decode(&ov); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ov.KPI.TotalCalls != 3 {
		t.Errorf("totalCalls = %d, want 3", ov.KPI.TotalCalls)
	}
}

func TestCancelledRequestDoesNotPoisonOverview(t *testing.T) {
	st := openTestStore(t)
	seedLeads(t, st)
	_, h := newTestServer(t, st)
	cookie := login(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil).WithContext(ctx)
	req.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if rec := get(h, "/dashboard", cookie); rec.Code != http.StatusOK {
		t.Errorf("expected 200 after a hung-up request, got %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	_, h := newTestServer(t, openTestStore(t))
	rec := get(h, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["api"] != "ok" || resp["backend"] != "ok" {
		t.Errorf("unexpected status %v", resp)
	}
}

func TestPagesAreCompressed(t *testing.T) {
	_, h := newTestServer(t, openTestStore(t))
	req := httptest.NewRequest("GET", "/login", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Errorf("expected gzip encoding, got %q", rec.Header().Get("Content-Encoding"))
	}
}

func TestEventsStreamRefreshes(t *testing.T) {
	st := openTestStore(t)
	srv, h := newTestServer(t, st)
	cookie := login(t, h)

	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/events", nil)
	req.AddCookie(cookie)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	if line, _ := r.ReadString('\n'); !strings.HasPrefix(line, ": connected") {
		t.Fatalf("unexpected first line %q", line)
	}

	seedLeads(t, st)
	srv.Dashboard.Refresh(context.Background())

	deadline := time.After(3 * time.Second)
	lines := make(chan string)
	go func() {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- line
		}
	}()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before refresh event")
			}
			if strings.HasPrefix(line, "data: ") {
				if !strings.Contains(line, `"totalCalls":3`) {
					t.Errorf("unexpected event data %q", line)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for refresh event")
		}
	}
}
