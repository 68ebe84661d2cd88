package tenantsql

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/skuid/tenantsql/crypto"
	"github.com/skuid/tenantsql/dialect"
	"github.com/skuid/tenantsql/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Options configure a Manager
type Options struct {
	// Connection is the module level configuration
	Connection ConnectionProps
	// TenantConfig returns per tenant overrides, nil when the tenant has none
	TenantConfig func(tenantID string) *ConnectionProps
	// Getenv reads the DB_* variables, os.Getenv when nil
	Getenv func(string) string
	// Open opens a connection for the merged props, OpenConnection when nil
	Open func(ctx context.Context, props ConnectionProps) (*sql.DB, error)
	// OnConnect runs once for every newly opened tenant
	OnConnect func(ctx context.Context, t *Tenant) error
	// Secrets opens passwords sealed with crypto.Sealer.Seal
	Secrets *crypto.Sealer
	Logger  *zap.Logger
}

/*
Manager keeps one open Tenant per tenant id. Concurrent Resolve calls for the same
id share a single connection attempt.
*/
type Manager struct {
	opts    Options
	logger  *zap.Logger
	mu       sync.RWMutex
	tenants  map[string]*Tenant
	inflight map[string]int
	group    singleflight.Group
}

// NewManager returns a Manager with no open tenants
func NewManager(opts Options) *Manager {
	if opts.Open == nil {
		opts.Open = OpenConnection
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		opts:     opts,
		logger:   logger,
		tenants:  map[string]*Tenant{},
		inflight: map[string]int{},
	}
}

/*
Props returns the connection settings for tenantID. Layers are applied in this
order, highest first: the tenant override, the module configuration, the
environment and finally DefaultProps.
*/
func (m *Manager) Props(tenantID string) ConnectionProps {
	layers := make([]ConnectionProps, 0, 4)
	if m.opts.TenantConfig != nil {
		if override := m.opts.TenantConfig(tenantID); override != nil {
			layers = append(layers, *override)
		}
	}
	layers = append(layers, m.opts.Connection, EnvProps(m.opts.Getenv), DefaultProps)
	return MergeProps(layers...)
}

/*
Resolve returns the open Tenant for tenantID, connecting on first use. An empty
id resolves DefaultTenant.
*/
func (m *Manager) Resolve(ctx context.Context, tenantID string) (*Tenant, error) {
	if tenantID == "" {
		tenantID = DefaultTenant
	}

	if t, ok := m.Lookup(tenantID); ok {
		return t, nil
	}

	v, err, _ := m.group.Do(tenantID, func() (interface{}, error) {
		if t, ok := m.Lookup(tenantID); ok {
			return t, nil
		}
		return m.connect(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Tenant), nil
}

func (m *Manager) connect(ctx context.Context, tenantID string) (*Tenant, error) {
	props := m.Props(tenantID)

	d, err := dialect.ForDriver(props.Driver)
	if err != nil {
		return nil, errs.Wrap(errs.Connection, NewTenantError(err, tenantID, props.Driver), "unsupported database driver")
	}

	if password := props.password(); crypto.IsSealed(password) {
		if m.opts.Secrets == nil {
			return nil, errs.Wrap(errs.Connection, NewTenantError(errors.New("no encryption key configured"), tenantID, props.Driver), "could not read the tenant password")
		}
		opened, err := m.opts.Secrets.Open(password)
		if err != nil {
			return nil, errs.Wrap(errs.Connection, NewTenantError(err, tenantID, props.Driver), "could not read the tenant password")
		}
		props.Password = &opened
	}

	db, err := m.opts.Open(ctx, props)
	if err != nil {
		m.logger.Error("could not open tenant connection",
			zap.String("tenant", tenantID),
			zap.String("driver", props.Driver),
			zap.String("host", props.Host),
			zap.Error(err),
		)
		return nil, errs.Wrap(errs.Connection, NewTenantError(err, tenantID, props.Driver), "could not connect to the tenant database")
	}

	t := NewTenant(tenantID, db, d)
	if m.opts.OnConnect != nil {
		if err := m.opts.OnConnect(ctx, t); err != nil {
			t.Close()
			return nil, errs.Wrap(errs.Connection, NewTenantError(err, tenantID, props.Driver), "tenant connection setup failed")
		}
	}

	m.mu.Lock()
	m.tenants[tenantID] = t
	open := len(m.tenants)
	m.mu.Unlock()

	openTenants.Set(float64(open))
	m.logger.Info("opened tenant connection",
		zap.String("tenant", tenantID),
		zap.String("driver", props.Driver),
		zap.String("database", props.Database),
	)
	return t, nil
}

// Lookup returns the tenant for tenantID if it is already open
func (m *Manager) Lookup(tenantID string) (*Tenant, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[tenantID]
	return t, ok
}

// Tenants lists the ids of all open tenants
func (m *Manager) Tenants() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.tenants))
	for id := range m.tenants {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

/*
Acquire resolves tenantID like Resolve and counts the caller as in flight until
the matching Done.
*/
func (m *Manager) Acquire(ctx context.Context, tenantID string) (*Tenant, error) {
	if tenantID == "" {
		tenantID = DefaultTenant
	}
	for {
		t, err := m.Resolve(ctx, tenantID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		if m.tenants[tenantID] == t {
			m.inflight[tenantID]++
			m.mu.Unlock()
			return t, nil
		}
		m.mu.Unlock()

		// released between Resolve and the count
		if err := ctx.Err(); err != nil {
			return nil, errs.Wrap(errs.Connection, NewTenantError(err, tenantID, ""), "could not connect to the tenant database")
		}
	}
}

/*
Done ends one Acquire. With release set the tenant is released once no other
caller still has it acquired.
*/
func (m *Manager) Done(tenantID string, release bool) error {
	if tenantID == "" {
		tenantID = DefaultTenant
	}

	m.mu.Lock()
	if m.inflight[tenantID] > 1 {
		m.inflight[tenantID]--
		m.mu.Unlock()
		return nil
	}
	delete(m.inflight, tenantID)
	var t *Tenant
	if release {
		t = m.evictLocked(tenantID)
	}
	open := len(m.tenants)
	m.mu.Unlock()

	return m.closeEvicted(tenantID, t, open)
}

// InFlight reports how many acquired callers are still using tenantID
func (m *Manager) InFlight(tenantID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inflight[tenantID]
}

/*
Release closes the tenant's connection right away and forgets it, so the next
Resolve opens a fresh one. Releasing an unknown tenant is a no-op.
*/
func (m *Manager) Release(tenantID string) error {
	m.mu.Lock()
	t := m.evictLocked(tenantID)
	open := len(m.tenants)
	m.mu.Unlock()

	return m.closeEvicted(tenantID, t, open)
}

func (m *Manager) evictLocked(tenantID string) *Tenant {
	t, ok := m.tenants[tenantID]
	if !ok {
		return nil
	}
	delete(m.tenants, tenantID)
	return t
}

func (m *Manager) closeEvicted(tenantID string, t *Tenant, open int) error {
	if t == nil {
		return nil
	}
	openTenants.Set(float64(open))
	m.logger.Debug("released tenant connection", zap.String("tenant", tenantID))
	return t.Close()
}

// Close closes every open tenant
func (m *Manager) Close() error {
	m.mu.Lock()
	tenants := m.tenants
	m.tenants = map[string]*Tenant{}
	m.inflight = map[string]int{}
	m.mu.Unlock()

	var result *multierror.Error
	for id, t := range tenants {
		if err := t.Close(); err != nil {
			result = multierror.Append(result, NewTenantError(err, id, t.Dialect.Name()))
		}
	}
	openTenants.Set(0)
	return result.ErrorOrNil()
}
