package tenantsql

import (
	"context"
	"database/sql"
	"sync"

	"github.com/Masterminds/squirrel"
	"github.com/skuid/tenantsql/dialect"
	"github.com/skuid/tenantsql/errs"
)

// DefaultTenant is the tenant id used when a request names none
const DefaultTenant = "default"

/*
Tenant is one open tenant database together with the squirrel builder and clause
generator bound to its dialect. Bridge and executor calls take a *Tenant, usually
pulled out of the request context with FromContext.
*/
type Tenant struct {
	ID        string
	DB        *sql.DB
	Dialect   dialect.Dialect
	Builder   squirrel.StatementBuilderType
	Generator *dialect.Generator

	closeOnce sync.Once
	closeErr  error
}

// NewTenant binds db to a dialect specific builder and generator
func NewTenant(id string, db *sql.DB, d dialect.Dialect) *Tenant {
	return &Tenant{
		ID:        id,
		DB:        db,
		Dialect:   d,
		Builder:   squirrel.StatementBuilder.PlaceholderFormat(d.Placeholder()),
		Generator: dialect.NewGenerator(d),
	}
}

// Close closes the underlying connection. Only the first call reaches the database.
func (t *Tenant) Close() error {
	t.closeOnce.Do(func() {
		if t.DB != nil {
			t.closeErr = t.DB.Close()
		}
	})
	return t.closeErr
}

type tenantContextKey struct{}

// NewContext returns a copy of ctx carrying t
func NewContext(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, t)
}

// FromContext returns the tenant stored by NewContext
func FromContext(ctx context.Context) (*Tenant, error) {
	t, ok := ctx.Value(tenantContextKey{}).(*Tenant)
	if !ok || t == nil {
		return nil, errs.New(errs.UninitializedBridge, "no tenant connection has been resolved for this request")
	}
	return t, nil
}

func checkTenant(t *Tenant) error {
	if t == nil || t.Generator == nil {
		return errs.New(errs.UninitializedBridge, "no tenant connection has been resolved for this request")
	}
	return nil
}
