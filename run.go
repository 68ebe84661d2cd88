package tenantsql

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/skuid/tenantsql/errs"
)

// StatementKind is the kind of statement a Plan runs
type StatementKind int

// Statement kinds, Select is the fallback for builders we cannot classify
const (
	Select StatementKind = iota
	Insert
	Update
	Delete
)

func (k StatementKind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "select"
	}
}

// Plan is a compiled statement ready to run
type Plan struct {
	SQL      string
	Bindings []interface{}
	Kind     StatementKind
}

// Querier is satisfied by both *sql.DB and *sql.Tx
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// QueryOptions control how Run executes a Plan
type QueryOptions struct {
	Type         StatementKind
	Replacements []interface{}
	Tx           Querier
}

// QueryOption sets one field of QueryOptions
type QueryOption func(*QueryOptions)

// WithTx runs the statement on tx instead of the tenant's pool
func WithTx(tx Querier) QueryOption {
	return func(o *QueryOptions) {
		o.Tx = tx
	}
}

// WithType overrides the inferred statement kind
func WithType(kind StatementKind) QueryOption {
	return func(o *QueryOptions) {
		o.Type = kind
	}
}

// WithReplacements overrides the compiled bindings
func WithReplacements(args ...interface{}) QueryOption {
	return func(o *QueryOptions) {
		o.Replacements = args
	}
}

/*
Result holds what Run produced. Select fills Rows. Insert fills InsertID when the
driver reports one, plus RowsAffected. Update and Delete fill RowsAffected only.
*/
type Result struct {
	Kind         StatementKind
	Rows         []map[string]interface{}
	InsertID     *int64
	RowsAffected int64
}

// Compile renders q and classifies it by builder type
func Compile(q squirrel.Sqlizer) (Plan, error) {
	if q == nil {
		return Plan{}, errs.New(errs.Internal, "nothing to compile")
	}

	sqlText, args, err := q.ToSql()
	if err != nil {
		return Plan{}, errs.Wrap(errs.Internal, err, "could not compile statement")
	}

	kind := Select
	switch q.(type) {
	case squirrel.InsertBuilder:
		kind = Insert
	case squirrel.UpdateBuilder:
		kind = Update
	case squirrel.DeleteBuilder:
		kind = Delete
	}

	return Plan{
		SQL:      sqlText,
		Bindings: args,
		Kind:     kind,
	}, nil
}

/*
Run builds a statement with the tenant's builder, compiles it and executes it.
Options passed by the caller win over the compiled bindings and kind.

	res, err := tenantsql.Run(ctx, t, func(b squirrel.StatementBuilderType) squirrel.Sqlizer {
		return b.Update("users").Set("name", "x").Where(squirrel.Eq{"id": 1})
	})
*/
func Run(ctx context.Context, t *Tenant, build func(squirrel.StatementBuilderType) squirrel.Sqlizer, opts ...QueryOption) (*Result, error) {
	if err := checkTenant(t); err != nil {
		return nil, err
	}
	return RunQuery(ctx, t, build(t.Builder), opts...)
}

// RunQuery compiles and executes a chain that was already built, e.g. by SelectGrid
func RunQuery(ctx context.Context, t *Tenant, q squirrel.Sqlizer, opts ...QueryOption) (*Result, error) {
	plan, err := Compile(q)
	if err != nil {
		return nil, err
	}

	options := QueryOptions{
		Type:         plan.Kind,
		Replacements: plan.Bindings,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return t.Exec(ctx, plan.SQL, options)
}

// Exec runs sqlText on the tenant according to options
func (t *Tenant) Exec(ctx context.Context, sqlText string, options QueryOptions) (result *Result, err error) {
	if err := checkTenant(t); err != nil {
		return nil, err
	}

	var q Querier = t.DB
	if options.Tx != nil {
		q = options.Tx
	}

	start := time.Now()
	defer func() {
		observeQuery(t.ID, options.Type, start, err)
	}()

	result = &Result{Kind: options.Type}

	if options.Type == Select {
		rows, err := q.QueryContext(ctx, sqlText, options.Replacements...)
		if err != nil {
			return nil, queryFailed(err, sqlText)
		}
		result.Rows, err = scanRows(rows)
		if err != nil {
			return nil, queryFailed(err, sqlText)
		}
		return result, nil
	}

	res, err := q.ExecContext(ctx, sqlText, options.Replacements...)
	if err != nil {
		return nil, queryFailed(err, sqlText)
	}

	if options.Type == Insert {
		// lib/pq does not support LastInsertId
		if id, idErr := res.LastInsertId(); idErr == nil {
			result.InsertID = &id
		}
	}

	result.RowsAffected, err = res.RowsAffected()
	if err != nil {
		return nil, queryFailed(err, sqlText)
	}
	return result, nil
}

func queryFailed(err error, sqlText string) error {
	return errs.Wrap(errs.Connection, NewQueryError(err, sqlText), "query failed")
}
