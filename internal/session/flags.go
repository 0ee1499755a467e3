package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/frametech/leads-dashboard/internal/store"
)

// FlagStore persists small string flags by key.
type FlagStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context, key string) error
}

// OpenFlagStore resolves the session_store setting: "memory", "db"
// (the SQLite mirror, db must be non-nil) or a redis:// url.
func OpenFlagStore(kind string, db *store.Store) (FlagStore, error) {
	switch {
	case kind == "memory":
		return NewMemoryStore(), nil
	case kind == "db" || kind == "":
		if db == nil {
			return nil, errors.New("session store \"db\" needs the sqlite backend")
		}
		return NewDBStore(db), nil
	case strings.HasPrefix(kind, "redis://"), strings.HasPrefix(kind, "rediss://"):
		opts, err := redis.ParseURL(kind)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return NewRedisStore(redis.NewClient(opts)), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", kind)
	}
}

// ----------------------
// Memory
// ----------------------

type MemoryStore struct {
	mu    sync.RWMutex
	flags map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flags: make(map[string]string)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.flags[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	m.flags[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.flags, key)
	m.mu.Unlock()
	return nil
}

// ----------------------
// SQLite (sessions table)
// ----------------------

type DBStore struct {
	db *store.Store
}

func NewDBStore(db *store.Store) *DBStore {
	return &DBStore{db: db}
}

func (d *DBStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := d.db.GetFlag(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (d *DBStore) Set(ctx context.Context, key, value string) error {
	return d.db.SetFlag(ctx, key, value)
}

func (d *DBStore) Clear(ctx context.Context, key string) error {
	return d.db.ClearFlag(ctx, key)
}

// ----------------------
// Redis
// ----------------------

const redisPrefix = "leads-dashboard:session:"

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, redisPrefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores the flag without expiry, like the browser storage it replaces.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, redisPrefix+key, value, 0).Err()
}

func (r *RedisStore) Clear(ctx context.Context, key string) error {
	return r.client.Del(ctx, redisPrefix+key).Err()
}
