package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tbxark/tripvoice/internal/logging"
	"github.com/tbxark/tripvoice/types"
)

const defaultLockTTL = 30 * time.Second

// lockEntry holds the per-conversation mutex and its reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes access to conversations. Lock entries are reference
// counted and dropped once no turn holds or waits for them.
type Manager struct {
	store Store

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  Locker
	lockTTL time.Duration
	logger  *slog.Logger
}

type Option func(*Manager)

// WithLocker enables distributed locking across replicas.
func WithLocker(locker Locker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: defaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.locks[id]
	if !ok {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.locks[id]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// WithLock runs fn while holding the conversation's lock.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// The turn context may already be cancelled; release regardless.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"conversation_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Load returns the stored record of id.
func (m *Manager) Load(ctx context.Context, id string) (*types.Record, error) {
	var rec *types.Record
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		rec, err = m.store.Load(ctx, id)
		return err
	})
	return rec, err
}

// LoadOrCreate returns the stored record, or a fresh one at the greeting
// stage. It must be called while holding the lock of id.
func (m *Manager) LoadOrCreate(ctx context.Context, id string) (*types.Record, bool, error) {
	rec, err := m.store.Load(ctx, id)
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("failed to load conversation: %w", err)
	}
	return types.NewRecord(), true, nil
}

// Save stores rec. It must be called while holding the lock of id.
func (m *Manager) Save(ctx context.Context, id string, rec *types.Record) error {
	return m.store.Save(ctx, id, rec)
}

// Delete drops the stored record of id. It must be called while holding the
// lock of id.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}
