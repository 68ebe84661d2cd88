package tenantsql

import (
	"context"
	"database/sql"
	"sync"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/skuid/tenantsql/dialect"
)

// NewMockTenant returns a Tenant whose connection is a sqlmock database
func NewMockTenant(id string, d dialect.Dialect) (*Tenant, sqlmock.Sqlmock, error) {
	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, err
	}
	return NewTenant(id, db, d), mock, nil
}

/*
MockOpener can be used as Options.Open in tests. Every call opens a new sqlmock
database, records the props it was called with and hands the mock to OnOpen so
expectations can be set before the manager uses the connection.
*/
type MockOpener struct {
	OnOpen func(props ConnectionProps, mock sqlmock.Sqlmock)
	Err    error

	mu    sync.Mutex
	calls []ConnectionProps
	mocks []sqlmock.Sqlmock
}

// Open satisfies Options.Open
func (o *MockOpener) Open(ctx context.Context, props ConnectionProps) (*sql.DB, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.calls = append(o.calls, props)
	if o.Err != nil {
		return nil, o.Err
	}

	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, err
	}
	o.mocks = append(o.mocks, mock)
	if o.OnOpen != nil {
		o.OnOpen(props, mock)
	}
	return db, nil
}

// Calls returns the props of every Open call so far
func (o *MockOpener) Calls() []ConnectionProps {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]ConnectionProps(nil), o.calls...)
}

// Mocks returns the sqlmock of every successful Open call so far
func (o *MockOpener) Mocks() []sqlmock.Sqlmock {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]sqlmock.Sqlmock(nil), o.mocks...)
}
