package filter

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/skuid/tenantsql/errs"
	qp "github.com/skuid/tenantsql/queryparts"
)

// UnknownOperatorError is returned when a column's condition map holds a key that is not an operator
type UnknownOperatorError struct {
	Token  string
	Column string
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown operator '%s' on column '%s'", e.Token, e.Column)
}

/*
ToOperatorExpr rewrites a parsed filter into WhereOptions:

  - operator tokens such as "gt" or "in" become qp.Op keys
  - any other key is a column, dotted names are wrapped as $a.b$
  - strings are JSON decoded when they hold valid JSON, so "5" becomes 5
  - lists are rewritten item by item

Inside a column's condition map every key must be an operator token. Rewriting
an already rewritten filter returns it unchanged.
*/
func ToOperatorExpr(v interface{}) (interface{}, error) {
	return rewrite(v, "")
}

// rewrite converts v, column is set while inside a column's condition
func rewrite(v interface{}, column string) (interface{}, error) {
	switch val := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			rewritten, err := rewrite(item, column)
			if err != nil {
				return nil, err
			}
			out[i] = rewritten
		}
		return out, nil
	case map[string]interface{}:
		where := make(qp.WhereOptions, len(val))
		for k, item := range val {
			where[k] = item
		}
		return rewriteMap(where, column)
	case qp.WhereOptions:
		return rewriteMap(val, column)
	case string:
		var parsed interface{}
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(val, &parsed); err != nil {
			return val, nil
		}
		switch parsed.(type) {
		case map[string]interface{}, []interface{}:
			return rewrite(parsed, column)
		}
		return parsed, nil
	}
	return v, nil
}

func rewriteMap(m qp.WhereOptions, column string) (qp.WhereOptions, error) {
	out := make(qp.WhereOptions, len(m))
	for k, v := range m {
		var op qp.Op
		switch key := k.(type) {
		case qp.Op:
			op = key
		case string:
			parsed, isOp := qp.ParseOp(key)
			if isOp {
				op = parsed
				break
			}
			if column != "" {
				return nil, errs.Wrap(errs.ClientInput, &UnknownOperatorError{Token: key, Column: column}, "invalid filter")
			}
			ref := qp.ColumnRef(key)
			switch v.(type) {
			case map[string]interface{}, qp.WhereOptions, []interface{}:
				rewritten, err := rewrite(v, ref)
				if err != nil {
					return nil, err
				}
				out[ref] = rewritten
			default:
				out[ref] = v
			}
			continue
		default:
			return nil, errs.New(errs.ClientInput, fmt.Sprintf("invalid filter key %v", k))
		}

		// top level and/or hold whole filters, everything else holds values
		childColumn := column
		if childColumn == "" && !op.IsLogical() {
			childColumn = op.Token()
		}
		rewritten, err := rewrite(v, childColumn)
		if err != nil {
			return nil, err
		}
		out[op] = rewritten
	}
	return out, nil
}
