/*
Package tenantsql gives HTTP services one SQL connection per tenant and a bridge
between structured filters and squirrel query chains.

Connections:

A Manager opens tenant connections lazily and keeps them for reuse. Settings are
layered, highest first: the per tenant override, the module configuration, the
DB_* environment variables and DefaultProps.

	manager := tenantsql.NewManager(tenantsql.Options{
		TenantConfig: func(id string) *tenantsql.ConnectionProps {
			return &tenantsql.ConnectionProps{Database: "tenant_" + id}
		},
	})
	defer manager.Close()

Supported drivers are mysql, postgres (lib/pq), pgx and sqlite3. Setting a
ServiceName traces every statement through dd-trace-go.

Middleware:

The middleware resolves the request's tenant and stores it in the request
context. In multitenant mode the tenant id is read from the "tenant" header.

	router.Use(tenantsql.NewMiddlewareBuilder(manager).Multitenant(true).Build())

With CloseAfterResponse the tenant's connection is closed once the last request
using it has been answered. Handlers pull the tenant back out with FromContext.

Bridge:

Where and Order render qp.WhereOptions and qp.OrderSpec with the tenant's
dialect and splice the result into any squirrel builder with a Where or OrderBy
step. Values are inlined as escaped literals, so the chain's own bindings are
left alone.

	t, err := tenantsql.FromContext(r.Context())
	q, err := tenantsql.Where(t, t.Builder.Select("*").From("users"), qp.WhereOptions{
		"age": qp.WhereOptions{qp.OpGte: 18},
	})

SelectGrid and CountGrid do the same for a grid request parsed by the filter
package.

Running statements:

Run and RunQuery compile a squirrel chain and execute it. Select statements
return rows as column name to value maps, inserts return the new id when the
driver reports one, updates and deletes return the number of affected rows.

	res, err := tenantsql.RunQuery(ctx, t, q, tenantsql.WithTx(tx))

Errors:

Every failure is an *errs.Error whose kind decides the HTTP status written by the
handler package. Driver errors are wrapped in a QueryError carrying the failed
statement.
*/
package tenantsql
