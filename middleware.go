package tenantsql

import (
	"net/http"

	"github.com/skuid/tenantsql/handler"
	"go.uber.org/zap"
)

// TenantHeader is the request header naming the tenant
const TenantHeader = "tenant"

/*
MiddlewareBuilder builds the HTTP middleware that resolves the request's tenant
and stores it in the request context.
*/
type MiddlewareBuilder struct {
	manager            *Manager
	multitenant        bool
	closeAfterResponse bool
	header             string
	logger             *zap.Logger
}

// NewMiddlewareBuilder returns a single tenant builder for m
func NewMiddlewareBuilder(m *Manager) *MiddlewareBuilder {
	return &MiddlewareBuilder{
		manager: m,
		header:  TenantHeader,
		logger:  m.logger,
	}
}

// Multitenant makes the middleware read the tenant id from the request header
func (b *MiddlewareBuilder) Multitenant(enabled bool) *MiddlewareBuilder {
	b.multitenant = enabled
	return b
}

// CloseAfterResponse releases the tenant's connection once the last request using
// it has been answered. It only applies in multitenant mode.
func (b *MiddlewareBuilder) CloseAfterResponse(enabled bool) *MiddlewareBuilder {
	b.closeAfterResponse = enabled
	return b
}

// Header changes the header the tenant id is read from
func (b *MiddlewareBuilder) Header(name string) *MiddlewareBuilder {
	b.header = name
	return b
}

// Build returns the middleware
func (b *MiddlewareBuilder) Build() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := DefaultTenant
			if b.multitenant {
				if id := r.Header.Get(b.header); id != "" {
					tenantID = id
				}
			}

			t, err := b.manager.Acquire(r.Context(), tenantID)
			if err != nil {
				handler.WriteError(w, r, err, b.logger)
				return
			}
			defer func() {
				if err := b.manager.Done(tenantID, b.multitenant && b.closeAfterResponse); err != nil {
					b.logger.Warn("could not release tenant connection",
						zap.String("tenant", tenantID),
						zap.Error(err),
					)
				}
			}()

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), t)))
		})
	}
}
