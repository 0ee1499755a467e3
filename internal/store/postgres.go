package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/frametech/leads-dashboard/internal/models"
)

const (
	pgRecent     = `SELECT * FROM leads ORDER BY created_at DESC, id DESC LIMIT $1`
	pgAll        = `SELECT * FROM leads ORDER BY created_at ASC, id ASC`
	pgCount      = `SELECT count(*) FROM leads`
	pgCountSince = `SELECT count(*) FROM leads WHERE created_at >= $1`

	pgInsert = `INSERT INTO leads (id, name, phone_number, email, reason_for_call, summary,
	appointment_details, calendar_link, appointment_start, appointment_end, reschedule_link,
	lead_warmth, created_at, timestamp)
VALUES
(:id, :name, :phone_number, :email, :reason_for_call, :summary,
	:appointment_details, :calendar_link, :appointment_start, :appointment_end, :reschedule_link,
	:lead_warmth, :created_at, :timestamp)
ON CONFLICT (id) DO NOTHING`
)

// PGStore reads the hosted leads table directly over Postgres.
type PGStore struct {
	db *sqlx.DB
}

func NewPGStore(dsn string) (*PGStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPGStoreFromDB(db), nil
}

// NewPGStoreFromDB wraps an existing connection. The table may carry
// columns the dashboard doesn't know about, so scans are unsafe.
func NewPGStoreFromDB(db *sqlx.DB) *PGStore {
	return &PGStore{db: db.Unsafe()}
}

func (s *PGStore) Recent(ctx context.Context, limit int) ([]models.Lead, error) {
	rows := []models.Lead{}
	if err := s.db.SelectContext(ctx, &rows, pgRecent, limit); err != nil {
		return nil, fmt.Errorf("select recent leads: %w", err)
	}
	return rows, nil
}

func (s *PGStore) All(ctx context.Context) ([]models.Lead, error) {
	rows := []models.Lead{}
	if err := s.db.SelectContext(ctx, &rows, pgAll); err != nil {
		return nil, fmt.Errorf("select leads: %w", err)
	}
	return rows, nil
}

func (s *PGStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, pgCount); err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}
	return n, nil
}

func (s *PGStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, pgCountSince, since); err != nil {
		return 0, fmt.Errorf("count leads since %s: %w", since.Format(time.RFC3339), err)
	}
	return n, nil
}

// InsertLeads loads rows in one transaction; existing ids are left alone.
func (s *PGStore) InsertLeads(ctx context.Context, leads []models.Lead) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for i := range leads {
		if _, err := tx.NamedExecContext(ctx, pgInsert, &leads[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert lead %d: %w", leads[i].ID, err)
		}
	}
	return tx.Commit()
}

// Exec runs raw SQL, used by the import tool to install the change trigger.
func (s *PGStore) Exec(ctx context.Context, query string) error {
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *PGStore) Close() error {
	return s.db.Close()
}
