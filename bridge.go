package tenantsql

import (
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/skuid/tenantsql/dialect"
	"github.com/skuid/tenantsql/errs"
	"github.com/skuid/tenantsql/filter"
	qp "github.com/skuid/tenantsql/queryparts"
)

// alwaysTrue is attached when a filter renders no condition
const alwaysTrue = "1=1"

// orderProbeTable is the placeholder table of the SELECT used to render ORDER BY
const orderProbeTable = "DUMP"

// WhereChain is any squirrel builder with a Where step
type WhereChain[B any] interface {
	Where(pred interface{}, args ...interface{}) B
}

// OrderChain is any squirrel builder with an OrderBy step
type OrderChain[B any] interface {
	OrderBy(orderBys ...string) B
}

/*
Where renders filter with the tenant's generator and attaches the condition to b
as a raw expression. An empty filter attaches 1=1.

	q, err := tenantsql.Where(t, t.Builder.Select("*").From("users"), qp.WhereOptions{"name": "x"})
*/
func Where[B WhereChain[B]](t *Tenant, b B, filter qp.WhereOptions) (B, error) {
	if err := checkTenant(t); err != nil {
		return b, err
	}

	clause, err := t.Generator.WhereQuery(filter)
	if err != nil {
		return b, errs.Wrap(errs.ClientInput, err, "invalid filter")
	}

	condition := strings.TrimSpace(strings.Replace(clause, "WHERE", "", 1))
	if condition == "" {
		condition = alwaysTrue
	}
	return b.Where(squirrel.Expr(escapePlaceholders(t, condition))), nil
}

/*
Order renders order with the tenant's generator and appends it to b as a raw ORDER
BY fragment. An empty order leaves b untouched.
*/
func Order[B OrderChain[B]](t *Tenant, b B, order qp.OrderSpec) (B, error) {
	if err := checkTenant(t); err != nil {
		return b, err
	}
	if len(order) == 0 {
		return b, nil
	}

	stmt, err := t.Generator.SelectQuery(orderProbeTable, dialect.SelectOptions{Order: order})
	if err != nil {
		return b, errs.Wrap(errs.ClientInput, err, "invalid order")
	}

	stmt = strings.Replace(stmt, ";", "", -1)
	idx := strings.Index(stmt, "ORDER BY")
	if idx < 0 {
		return b, nil
	}
	fragment := strings.TrimSpace(stmt[idx+len("ORDER BY"):])
	if fragment == "" {
		return b, nil
	}
	return b.OrderBy(escapePlaceholders(t, fragment)), nil
}

/*
ApplyGrid attaches a parsed grid request to an existing select chain: the filter,
the order, the limit and the offset. Columns are left to the caller.
*/
func ApplyGrid(t *Tenant, b squirrel.SelectBuilder, q filter.QueryOptions) (squirrel.SelectBuilder, error) {
	b, err := Where(t, b, q.Where)
	if err != nil {
		return b, err
	}
	b, err = Order(t, b, q.Order)
	if err != nil {
		return b, err
	}
	if q.Limit != nil {
		b = b.Limit(*q.Limit)
	}
	if q.Offset > 0 {
		b = b.Offset(q.Offset)
	}
	return b, nil
}

/*
SelectGrid starts a select on table for a grid request. The requested attributes
become quoted columns, or * when none were asked for.
*/
func SelectGrid(t *Tenant, table string, q filter.QueryOptions) (squirrel.SelectBuilder, error) {
	if err := checkTenant(t); err != nil {
		return squirrel.SelectBuilder{}, err
	}

	columns := []string{"*"}
	if len(q.Attributes) > 0 {
		columns = make([]string, 0, len(q.Attributes))
		for _, attr := range q.Attributes {
			columns = append(columns, t.Generator.QuoteColumn(attr))
		}
	}
	b := t.Builder.Select(columns...).From(t.Generator.QuoteColumn(table))
	return ApplyGrid(t, b, q)
}

// CountGrid counts the rows of table matching the grid request's filter
func CountGrid(t *Tenant, table string, q filter.QueryOptions) (squirrel.SelectBuilder, error) {
	if err := checkTenant(t); err != nil {
		return squirrel.SelectBuilder{}, err
	}
	b := t.Builder.Select("COUNT(*) AS count").From(t.Generator.QuoteColumn(table))
	return Where(t, b, q.Where)
}

// escapePlaceholders keeps literal question marks intact under numbered placeholder formats
func escapePlaceholders(t *Tenant, fragment string) string {
	if t.Dialect.Placeholder() == squirrel.Question {
		return fragment
	}
	return strings.Replace(fragment, "?", "??", -1)
}
