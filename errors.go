package tenantsql

import (
	"fmt"
)

// QueryError holds additional information about an SQL query failure
type QueryError struct {
	Err   error
	Query string
}

/*
NewQueryError returns a new QueryError object, populated with
extra information about which query failed
*/
func NewQueryError(err error, query string) *QueryError {
	return &QueryError{
		Err:   err,
		Query: query,
	}
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: Query: %s", e.Err, e.Query)
}

// Unwrap returns the driver error
func (e *QueryError) Unwrap() error {
	return e.Err
}

// TenantError says which tenant a connection failure belongs to
type TenantError struct {
	Err    error
	Tenant string
	Driver string
}

/*
NewTenantError returns a new TenantError object, populated with
extra information about which tenant failed to connect
*/
func NewTenantError(err error, tenant, driver string) *TenantError {
	return &TenantError{
		Err:    err,
		Tenant: tenant,
		Driver: driver,
	}
}

func (e *TenantError) Error() string {
	return fmt.Sprintf("%s: Tenant '%s', Driver '%s'", e.Err, e.Tenant, e.Driver)
}

// Unwrap returns the connection error
func (e *TenantError) Unwrap() error {
	return e.Err
}
