// Package dashboard runs the fetch-and-recount cycle behind the overview
// page and keeps the latest view model.
package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/frametech/leads-dashboard/internal/feed"
	"github.com/frametech/leads-dashboard/internal/leads"
	"github.com/frametech/leads-dashboard/internal/models"
	"github.com/frametech/leads-dashboard/internal/store"
)

// LoadErrorMessage is what the pages show when any query fails.
const LoadErrorMessage = "Failed to load data"

// Overview is the view model of the overview page. A refresh replaces it
// wholesale; nothing is merged.
type Overview struct {
	Leads       []models.Lead `json:"leads"`
	KPI         leads.Summary `json:"kpi"`
	Error       string        `json:"error,omitempty"`
	RefreshedAt time.Time     `json:"refreshed_at"`
}

// Loaded reports whether any refresh has completed.
func (o Overview) Loaded() bool { return !o.RefreshedAt.IsZero() }

type Service struct {
	Store store.RowStore
	Feed  feed.Feed
	Now   func() time.Time

	mu       sync.RWMutex
	gen      uint64
	applied  uint64
	current  Overview
	watchers map[chan Overview]struct{}
}

func New(rs store.RowStore, f feed.Feed) *Service {
	return &Service{
		Store:    rs,
		Feed:     f,
		Now:      time.Now,
		watchers: make(map[chan Overview]struct{}),
	}
}

// Current returns the latest view model.
func (s *Service) Current() Overview {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Refresh fetches the recent window and both counts, then replaces the
// view model. If a newer refresh finished first, this result is dropped.
// Any failure turns the whole view into the error state; there is no retry.
// A refresh whose ctx was cancelled leaves the current view alone.
func (s *Service) Refresh(ctx context.Context) (Overview, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	ov, err := s.load(ctx)
	if err != nil && ctx.Err() != nil {
		log.WithError(err).Debug("dashboard refresh abandoned")
		return s.Current(), err
	}
	if err != nil {
		log.WithError(err).Error("dashboard refresh failed")
		ov = Overview{Leads: []models.Lead{}, Error: LoadErrorMessage, RefreshedAt: s.Now()}
	}
	s.apply(gen, ov)
	return s.Current(), err
}

func (s *Service) load(ctx context.Context) (Overview, error) {
	now := s.Now()

	window, err := s.Store.Recent(ctx, leads.RecentWindow)
	if err != nil {
		return Overview{}, fmt.Errorf("recent leads: %w", err)
	}
	if window == nil {
		window = []models.Lead{}
	}
	total, err := s.Store.Count(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("total count: %w", err)
	}
	newCount, err := s.Store.CountSince(ctx, leads.NewLeadsSince(now))
	if err != nil {
		return Overview{}, fmt.Errorf("new leads count: %w", err)
	}

	return Overview{
		Leads:       window,
		KPI:         leads.Aggregate(window, total, newCount),
		RefreshedAt: now,
	}, nil
}

func (s *Service) apply(gen uint64, ov Overview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen < s.applied {
		log.WithFields(log.Fields{"gen": gen, "applied": s.applied}).Debug("dropping stale refresh")
		return
	}
	s.applied = gen
	s.current = ov

	for ch := range s.watchers {
		// keep only the newest pending update
		select {
		case <-ch:
		default:
		}
		ch <- ov
	}
}

// Run refreshes once, then again on every change event, until ctx is
// cancelled. Cancelling also drops the feed subscription.
func (s *Service) Run(ctx context.Context) error {
	events, err := s.Feed.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to changes: %w", err)
	}
	s.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			log.WithField("source", ev.Source).Debug("leads changed, refreshing")
			s.Refresh(ctx)
		}
	}
}

// Watch returns a channel that receives every new view model, and a func
// that stops the watch. The channel holds at most one pending update.
func (s *Service) Watch() (<-chan Overview, func()) {
	ch := make(chan Overview, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, ch)
			s.mu.Unlock()
		})
	}
}

// Leads returns the three warmth tables, newest first.
func (s *Service) Leads(ctx context.Context) (leads.Buckets, error) {
	rows, err := s.Store.All(ctx)
	if err != nil {
		return leads.Buckets{}, fmt.Errorf("all leads: %w", err)
	}
	return leads.Bucket(rows).ForDisplay(), nil
}

// CallLog returns the newest calls, newest first.
func (s *Service) CallLog(ctx context.Context) ([]models.Lead, error) {
	rows, err := s.Store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("all leads: %w", err)
	}
	return leads.CallLog(rows), nil
}
