// Package session holds the current login and persists it across restarts.
//
// Status starts Unknown until storage has been read. Callers must not treat
// Unknown as anonymous: protected requests wait for it to resolve.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"chub/internal/models"
	"chub/internal/observability"
)

// Status is the three-valued authentication state.
type Status int

const (
	StatusUnknown Status = iota
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent view of the session at one moment.
type Snapshot struct {
	Status Status
	Token  string
	User   *models.User
}

// Manager is the single writer of session state and its durable copy.
type Manager struct {
	store   Store
	backend string
	log     *observability.ClientLogger
	now     func() time.Time

	hydrateMu sync.Mutex

	mu     sync.RWMutex
	status Status
	token  string
	user   *models.User
	known  chan struct{}
	subs   map[int]func(Snapshot)
	nextID int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for status transitions and storage warnings.
func WithLogger(l *observability.Logger) Option {
	return func(m *Manager) { m.log = observability.NewClientLogger("session", l) }
}

// WithClock overrides the clock used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithBackendName labels storage error metrics, e.g. "redis".
func WithBackendName(name string) Option {
	return func(m *Manager) { m.backend = name }
}

// NewManager returns a Manager in StatusUnknown backed by store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		backend: "custom",
		log:     observability.NewClientLogger("session", nil),
		now:     time.Now,
		known:   make(chan struct{}),
		subs:    make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Hydrate reads the stored session once. Later calls are no-ops. A storage
// failure resolves the status to Anonymous and is returned.
func (m *Manager) Hydrate(ctx context.Context) error {
	m.hydrateMu.Lock()
	defer m.hydrateMu.Unlock()
	if m.Status() != StatusUnknown {
		return nil
	}

	token, err := m.store.Get(ctx, KeyToken)
	if errors.Is(err, ErrNotFound) || (err == nil && token == "") {
		m.apply(ctx, StatusAnonymous, "", nil)
		return nil
	}
	if err != nil {
		m.storeError(ctx, "get", err)
		m.apply(ctx, StatusAnonymous, "", nil)
		return fmt.Errorf("hydrate session: %w", err)
	}

	if tokenExpired(token, m.now()) {
		m.log.LogSession(ctx, "unknown", "expired")
		if err := m.store.Delete(ctx, KeyToken, KeyUser); err != nil {
			m.storeError(ctx, "delete", err)
		}
		m.apply(ctx, StatusAnonymous, "", nil)
		return nil
	}

	user, err := m.loadUser(ctx)
	if err != nil {
		m.storeError(ctx, "get", err)
	}
	m.apply(ctx, StatusAuthenticated, token, user)
	return nil
}

func (m *Manager) loadUser(ctx context.Context) (*models.User, error) {
	raw, err := m.store.Get(ctx, KeyUser)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		// The token alone still authenticates; drop the unreadable user.
		if delErr := m.store.Delete(ctx, KeyUser); delErr != nil {
			m.storeError(ctx, "delete", delErr)
		}
		return nil, fmt.Errorf("decode stored user: %w", err)
	}
	return &u, nil
}

// Resolve hydrates if needed and returns the resolved status.
func (m *Manager) Resolve(ctx context.Context) (Status, error) {
	if s := m.Status(); s != StatusUnknown {
		return s, nil
	}
	err := m.Hydrate(ctx)
	return m.Status(), err
}

// WaitKnown blocks until the status leaves Unknown or ctx is done.
func (m *Manager) WaitKnown(ctx context.Context) (Status, error) {
	m.mu.RLock()
	known := m.known
	m.mu.RUnlock()
	select {
	case <-known:
		return m.Status(), nil
	case <-ctx.Done():
		return StatusUnknown, ctx.Err()
	}
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Token returns the bearer token, or "" when not authenticated.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// User returns a copy of the current user, or nil.
func (m *Manager) User() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Snapshot returns status, token and user together.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{Status: m.status, Token: m.token}
	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	return snap
}

// SetSession records a successful login. In-memory state is updated even if
// persisting fails; the persistence error is returned.
func (m *Manager) SetSession(ctx context.Context, token string, user models.User) error {
	if token == "" {
		return errors.New("set session: empty token")
	}
	m.apply(ctx, StatusAuthenticated, token, &user)

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	var errs []error
	if err := m.store.Set(ctx, KeyToken, token); err != nil {
		m.storeError(ctx, "set", err)
		errs = append(errs, err)
	}
	if err := m.store.Set(ctx, KeyUser, string(raw)); err != nil {
		m.storeError(ctx, "set", err)
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("persist session: %w", errors.Join(errs...))
	}
	return nil
}

// ClearSession removes the token and user from memory and storage.
func (m *Manager) ClearSession(ctx context.Context) error {
	m.apply(ctx, StatusAnonymous, "", nil)
	if err := m.store.Delete(ctx, KeyToken, KeyUser); err != nil {
		m.storeError(ctx, "delete", err)
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Subscribe registers fn for every state change and returns a function that
// removes it. fn runs outside the manager's lock.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Close releases the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}

func (m *Manager) apply(ctx context.Context, status Status, token string, user *models.User) {
	m.mu.Lock()
	from := m.status
	m.status = status
	m.token = token
	m.user = user
	if from == StatusUnknown && status != StatusUnknown {
		close(m.known)
	}
	snap := m.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if from != status {
		m.log.LogSession(ctx, from.String(), status.String())
	}
	for _, fn := range subs {
		fn(snap)
	}
}

func (m *Manager) storeError(ctx context.Context, op string, err error) {
	observability.SessionStoreErrors.WithLabelValues(m.backend, op).Inc()
	m.log.LogStorageError(ctx, m.backend, op, err)
}
