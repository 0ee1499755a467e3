package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/frametech/leads-dashboard/internal/models"
)

// RESTStore talks to a PostgREST endpoint (the REST face of a hosted
// Postgres backend) at <base>/rest/v1/leads.
type RESTStore struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewRESTStore builds a client for baseURL. A nil client gets a default
// one with a 15s timeout.
func NewRESTStore(baseURL, apiKey string, client *http.Client) *RESTStore {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(base, "/rest/v1") {
		base += "/rest/v1"
	}
	return &RESTStore{
		endpoint: base + "/leads",
		apiKey:   apiKey,
		client:   client,
	}
}

func (s *RESTStore) Recent(ctx context.Context, limit int) ([]models.Lead, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc,id.desc")
	q.Set("limit", strconv.Itoa(limit))
	return s.list(ctx, q)
}

func (s *RESTStore) All(ctx context.Context) ([]models.Lead, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.asc,id.asc")
	return s.list(ctx, q)
}

func (s *RESTStore) Count(ctx context.Context) (int64, error) {
	q := url.Values{}
	q.Set("select", "*")
	return s.count(ctx, q)
}

func (s *RESTStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("created_at", "gte."+since.UTC().Format(time.RFC3339Nano))
	return s.count(ctx, q)
}

func (s *RESTStore) Close() error { return nil }

func (s *RESTStore) newRequest(ctx context.Context, method string, q url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	return req, nil
}

func (s *RESTStore) do(req *http.Request) (*http.Response, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		return nil, fmt.Errorf("rest %s: %s", resp.Status, apiErr.Message)
	}
	return nil, fmt.Errorf("rest %s", resp.Status)
}

func (s *RESTStore) list(ctx context.Context, q url.Values) ([]models.Lead, error) {
	req, err := s.newRequest(ctx, http.MethodGet, q)
	if err != nil {
		return nil, err
	}
	resp, err := s.do(req)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer resp.Body.Close()

	var raw []restLead
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode leads: %w", err)
	}
	rows := make([]models.Lead, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, r.lead())
	}
	return rows, nil
}

func (s *RESTStore) count(ctx context.Context, q url.Values) (int64, error) {
	req, err := s.newRequest(ctx, http.MethodHead, q)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")
	resp, err := s.do(req)
	if err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}
	resp.Body.Close()
	return parseContentRange(resp.Header.Get("Content-Range"))
}

// parseContentRange reads the total out of "0-49/123" or "*/123".
func parseContentRange(v string) (int64, error) {
	i := strings.LastIndexByte(v, '/')
	if i < 0 || v[i+1:] == "*" {
		return 0, fmt.Errorf("no exact count in content-range %q", v)
	}
	return strconv.ParseInt(v[i+1:], 10, 64)
}

// restLead mirrors models.Lead with string timestamps: Postgres may send
// them with or without a zone offset.
type restLead struct {
	ID                 int64   `json:"id"`
	Name               *string `json:"name"`
	PhoneNumber        *string `json:"phone_number"`
	Email              *string `json:"email"`
	ReasonForCall      *string `json:"reason_for_call"`
	Summary            *string `json:"summary"`
	AppointmentDetails *string `json:"appointment_details"`
	CalendarLink       *string `json:"calendar_link"`
	AppointmentStart   *string `json:"appointment_start"`
	AppointmentEnd     *string `json:"appointment_end"`
	RescheduleLink     *string `json:"reschedule_link"`
	LeadWarmth         *string `json:"lead_warmth"`
	CreatedAt          *string `json:"created_at"`
	Timestamp          *string `json:"timestamp"`
}

func (r restLead) lead() models.Lead {
	l := models.Lead{
		ID:                 r.ID,
		Name:               r.Name,
		PhoneNumber:        r.PhoneNumber,
		Email:              r.Email,
		ReasonForCall:      r.ReasonForCall,
		Summary:            r.Summary,
		AppointmentDetails: r.AppointmentDetails,
		CalendarLink:       r.CalendarLink,
		AppointmentStart:   r.AppointmentStart,
		AppointmentEnd:     r.AppointmentEnd,
		RescheduleLink:     r.RescheduleLink,
		LeadWarmth:         r.LeadWarmth,
	}
	if t, ok := parseTime(r.CreatedAt); ok {
		l.CreatedAt = t
	}
	if t, ok := parseTime(r.Timestamp); ok {
		l.Timestamp = &t
	}
	return l
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseTime(v *string) (time.Time, bool) {
	if v == nil || *v == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, *v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
