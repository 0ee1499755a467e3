package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/frametech/leads-dashboard/internal/models"
)

// RowStore is the read side of the leads table.
type RowStore interface {
	// Recent returns up to limit rows, newest first.
	Recent(ctx context.Context, limit int) ([]models.Lead, error)
	// All returns every row in storage order.
	All(ctx context.Context) ([]models.Lead, error)
	// Count returns the exact number of rows.
	Count(ctx context.Context) (int64, error)
	// CountSince returns the exact number of rows created at or after since.
	CountSince(ctx context.Context, since time.Time) (int64, error)
	Close() error
}

// Loader is implemented by backends the import tool can write to.
type Loader interface {
	InsertLeads(ctx context.Context, leads []models.Lead) error
}

var ErrNotFound = gorm.ErrRecordNotFound

// Open picks a backend from the URL scheme:
// postgres:// and postgresql:// use sqlx, http(s):// a PostgREST endpoint,
// sqlite:// or a bare path the local SQLite mirror.
func Open(backendURL, apiKey string) (RowStore, error) {
	switch {
	case strings.HasPrefix(backendURL, "postgres://"), strings.HasPrefix(backendURL, "postgresql://"):
		return NewPGStore(backendURL)
	case strings.HasPrefix(backendURL, "http://"), strings.HasPrefix(backendURL, "https://"):
		return NewRESTStore(backendURL, apiKey, nil), nil
	case backendURL == "":
		return nil, fmt.Errorf("empty backend url")
	default:
		return NewStore(strings.TrimPrefix(backendURL, "sqlite://"))
	}
}

// Store is the SQLite mirror of the leads table. It also keeps the
// session flags when no other flag store is configured.
type Store struct {
	DB *gorm.DB
}

// NewStore opens/creates the SQLite DB and runs migrations.
func NewStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.Lead{},
		&models.SessionFlag{},
	); err != nil {
		return nil, err
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ----------------------
// Leads
// ----------------------

func (s *Store) Recent(ctx context.Context, limit int) ([]models.Lead, error) {
	var rows []models.Lead
	err := s.DB.WithContext(ctx).Order("created_at desc").Order("id desc").Limit(limit).Find(&rows).Error
	return rows, err
}

func (s *Store) All(ctx context.Context) ([]models.Lead, error) {
	var rows []models.Lead
	err := s.DB.WithContext(ctx).Order("created_at asc").Order("id asc").Find(&rows).Error
	return rows, err
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Lead{}).Count(&n).Error
	return n, err
}

func (s *Store) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Lead{}).Where("created_at >= ?", since.UTC()).Count(&n).Error
	return n, err
}

// InsertLeads upserts rows by id. Rows without an id get one assigned.
// SQLite keeps times as text, so they are stored in UTC to keep ordering
// and range comparisons chronological.
func (s *Store) InsertLeads(ctx context.Context, leads []models.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	rows := make([]models.Lead, len(leads))
	for i, l := range leads {
		l.CreatedAt = l.CreatedAt.UTC()
		if l.Timestamp != nil {
			ts := l.Timestamp.UTC()
			l.Timestamp = &ts
		}
		rows[i] = l
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

// ----------------------
// Session flags
// ----------------------

func (s *Store) GetFlag(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrNotFound
	}
	var f models.SessionFlag
	err := s.DB.WithContext(ctx).Where(&models.SessionFlag{Key: key}).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return f.Value, nil
}

func (s *Store) SetFlag(ctx context.Context, key, value string) error {
	f := models.SessionFlag{Key: key, Value: value}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&f).Error
}

func (s *Store) ClearFlag(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.DB.WithContext(ctx).Delete(&models.SessionFlag{Key: key}).Error
}
