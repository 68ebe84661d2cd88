package dialect

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	qp "github.com/skuid/tenantsql/queryparts"
	"github.com/valyala/bytebufferpool"
)

const timeLayout = "2006-01-02 15:04:05.000"

/*
Generator renders WhereOptions and OrderSpecs into SQL for one dialect. It is the
clause source the bridge splices into squirrel chains, so every value it emits is
an escaped literal and never a placeholder.
*/
type Generator struct {
	dialect Dialect
}

// SelectOptions are the parts of a SELECT statement the Generator understands
type SelectOptions struct {
	Attributes []string
	Where      qp.WhereOptions
	Order      qp.OrderSpec
	Limit      *uint64
	Offset     uint64
}

// NewGenerator returns a Generator for d
func NewGenerator(d Dialect) *Generator {
	return &Generator{dialect: d}
}

// Dialect returns the dialect the Generator renders for
func (g *Generator) Dialect() Dialect {
	return g.dialect
}

/*
WhereQuery renders where as "WHERE <condition>". An empty filter renders as an
empty string.
*/
func (g *Generator) WhereQuery(where qp.WhereOptions) (string, error) {
	cond, err := g.whereItems(where, " AND ")
	if err != nil {
		return "", err
	}
	if cond == "" {
		return "", nil
	}
	return "WHERE " + cond, nil
}

/*
SelectQuery renders a complete SELECT statement terminated by a semicolon, e.g.

	SELECT * FROM `DUMP` ORDER BY `name` DESC;
*/
func (g *Generator) SelectQuery(table string, opts SelectOptions) (string, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString("SELECT ")
	if len(opts.Attributes) == 0 {
		buf.WriteString("*")
	} else {
		for i, attr := range opts.Attributes {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(g.QuoteColumn(attr))
		}
	}
	buf.WriteString(" FROM ")
	buf.WriteString(g.QuoteColumn(table))

	where, err := g.WhereQuery(opts.Where)
	if err != nil {
		return "", err
	}
	if where != "" {
		buf.WriteString(" ")
		buf.WriteString(where)
	}

	order, err := g.OrderQuery(opts.Order)
	if err != nil {
		return "", err
	}
	if order != "" {
		buf.WriteString(" ORDER BY ")
		buf.WriteString(order)
	}

	if opts.Limit != nil {
		buf.WriteString(" LIMIT ")
		buf.WriteString(strconv.FormatUint(*opts.Limit, 10))
	}
	if opts.Offset > 0 {
		buf.WriteString(" OFFSET ")
		buf.WriteString(strconv.FormatUint(opts.Offset, 10))
	}
	buf.WriteString(";")

	return buf.String(), nil
}

// OrderQuery renders the items of an ORDER BY clause without the keyword
func (g *Generator) OrderQuery(order qp.OrderSpec) (string, error) {
	parts := make([]string, 0, len(order))
	for _, item := range order {
		direction := strings.ToUpper(strings.TrimSpace(item.Direction))
		if direction == "" {
			direction = qp.Asc
		}
		if direction != qp.Asc && direction != qp.Desc {
			return "", fmt.Errorf("dialect: order direction must be ASC or DESC, got %q", item.Direction)
		}

		var column string
		switch c := item.Column.(type) {
		case qp.Literal:
			column = string(c)
		case string:
			column = g.QuoteColumn(c)
		default:
			return "", fmt.Errorf("dialect: unsupported order column type %T", item.Column)
		}
		if column == "" {
			return "", fmt.Errorf("dialect: empty order column")
		}
		parts = append(parts, column+" "+direction)
	}
	return strings.Join(parts, ", "), nil
}

// Escape renders v as a SQL literal
func (g *Generator) Escape(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		return g.dialect.Bool(val), nil
	case string:
		return g.dialect.QuoteString(val), nil
	case []byte:
		return g.dialect.Bytes(val), nil
	case int:
		return strconv.FormatInt(int64(val), 10), nil
	case int8:
		return strconv.FormatInt(int64(val), 10), nil
	case int16:
		return strconv.FormatInt(int64(val), 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float32:
		return formatFloat(float64(val))
	case float64:
		return formatFloat(val)
	case json.Number:
		if _, err := val.Float64(); err != nil {
			return "", fmt.Errorf("dialect: invalid number %q", val.String())
		}
		return val.String(), nil
	case time.Time:
		return g.dialect.QuoteString(val.UTC().Format(timeLayout)), nil
	case []interface{}:
		return g.escapeList(val)
	case []string:
		list := make([]interface{}, len(val))
		for i, s := range val {
			list[i] = s
		}
		return g.escapeList(list)
	}
	return "", fmt.Errorf("dialect: cannot escape value of type %T", v)
}

func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("dialect: %v is not a valid SQL number", f)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

func (g *Generator) escapeList(list []interface{}) (string, error) {
	if len(list) == 0 {
		return "(NULL)", nil
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		lit, err := g.Escape(item)
		if err != nil {
			return "", err
		}
		parts = append(parts, lit)
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}

// QuoteColumn quotes every part of a possibly dotted or $wrapped$ column name
func (g *Generator) QuoteColumn(column string) string {
	if column == "*" {
		return column
	}
	parts := strings.Split(qp.UnwrapColumnRef(column), ".")
	for i, part := range parts {
		if part == "*" {
			continue
		}
		parts[i] = g.dialect.QuoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}

// sortedKeys orders column names alphabetically, followed by operators in declaration order
func sortedKeys(where qp.WhereOptions) []interface{} {
	keys := make([]interface{}, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		si, iIsString := keys[i].(string)
		sj, jIsString := keys[j].(string)
		switch {
		case iIsString && jIsString:
			return si < sj
		case iIsString:
			return true
		case jIsString:
			return false
		}
		oi, _ := keys[i].(qp.Op)
		oj, _ := keys[j].(qp.Op)
		return oi < oj
	})
	return keys
}

// whereItems renders each entry of where and joins the non-empty results
func (g *Generator) whereItems(where qp.WhereOptions, joiner string) (string, error) {
	parts := make([]string, 0, len(where))
	for _, key := range sortedKeys(where) {
		value := where[key]
		var (
			part string
			err  error
		)
		switch k := key.(type) {
		case string:
			part, err = g.columnCondition(k, value)
		case qp.Op:
			if !k.IsLogical() {
				return "", fmt.Errorf("dialect: operator %s needs a column", k)
			}
			part, err = g.logical(k, value, "")
		default:
			return "", fmt.Errorf("dialect: unsupported where key type %T", key)
		}
		if err != nil {
			return "", err
		}
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, joiner), nil
}

/*
logical renders an OpAnd or OpOr group. When column is set the group is nested
under that column, so scalar items compare against it.
*/
func (g *Generator) logical(op qp.Op, value interface{}, column string) (string, error) {
	joiner := " AND "
	if op == qp.OpOr {
		joiner = " OR "
	}

	var items []interface{}
	switch v := value.(type) {
	case []interface{}:
		items = v
	case qp.WhereOptions:
		for _, key := range sortedKeys(v) {
			items = append(items, qp.WhereOptions{key: v[key]})
		}
	default:
		if column == "" {
			return "", fmt.Errorf("dialect: %s expects a list or a mapping, got %T", op, value)
		}
		items = []interface{}{v}
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		var (
			part string
			err  error
		)
		sub, isMap := item.(qp.WhereOptions)
		switch {
		case isMap && column == "":
			part, err = g.whereItems(sub, " AND ")
			if err == nil && len(sub) > 1 && part != "" {
				part = "(" + part + ")"
			}
		case column != "":
			part, err = g.columnCondition(column, item)
		default:
			return "", fmt.Errorf("dialect: %s item must be a mapping, got %T", op, item)
		}
		if err != nil {
			return "", err
		}
		if part != "" {
			parts = append(parts, part)
		}
	}

	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, joiner) + ")", nil
}

// columnCondition renders the condition for one column
func (g *Generator) columnCondition(column string, value interface{}) (string, error) {
	quoted := g.QuoteColumn(column)

	switch v := value.(type) {
	case nil:
		return quoted + " IS NULL", nil
	case qp.WhereOptions:
		parts := make([]string, 0, len(v))
		for _, key := range sortedKeys(v) {
			op, ok := key.(qp.Op)
			if !ok {
				return "", fmt.Errorf("dialect: unknown operator %v on column %s", key, column)
			}
			var (
				part string
				err  error
			)
			if op.IsLogical() {
				part, err = g.logical(op, v[key], column)
			} else {
				part, err = g.comparison(quoted, op, v[key])
			}
			if err != nil {
				return "", err
			}
			if part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) > 1 {
			return "(" + strings.Join(parts, " AND ") + ")", nil
		}
		return strings.Join(parts, ""), nil
	case []interface{}, []string:
		return g.comparison(quoted, qp.OpIn, v)
	case map[string]interface{}:
		return "", fmt.Errorf("dialect: column %s holds an untranslated filter", column)
	}
	return g.comparison(quoted, qp.OpEq, value)
}

var comparisonSymbols = map[qp.Op]string{
	qp.OpEq:  "=",
	qp.OpNe:  "!=",
	qp.OpGt:  ">",
	qp.OpGte: ">=",
	qp.OpLt:  "<",
	qp.OpLte: "<=",
}

// comparison renders "<quoted> <op> <value>"
func (g *Generator) comparison(quoted string, op qp.Op, value interface{}) (string, error) {
	switch op {
	case qp.OpEq, qp.OpNe, qp.OpGt, qp.OpGte, qp.OpLt, qp.OpLte:
		if value == nil {
			switch op {
			case qp.OpEq:
				return quoted + " IS NULL", nil
			case qp.OpNe:
				return quoted + " IS NOT NULL", nil
			}
		}
		lit, err := g.Escape(value)
		if err != nil {
			return "", err
		}
		return quoted + " " + comparisonSymbols[op] + " " + lit, nil
	case qp.OpIn, qp.OpNotIn:
		list, ok := value.([]interface{})
		if !ok {
			if strs, isStrings := value.([]string); isStrings {
				list = make([]interface{}, len(strs))
				for i, s := range strs {
					list[i] = s
				}
			} else {
				list = []interface{}{value}
			}
		}
		lit, err := g.escapeList(list)
		if err != nil {
			return "", err
		}
		if op == qp.OpNotIn {
			return quoted + " NOT IN " + lit, nil
		}
		return quoted + " IN " + lit, nil
	case qp.OpSubstring:
		lit := g.dialect.QuoteString("%" + fmt.Sprint(value) + "%")
		return quoted + " LIKE " + lit, nil
	case qp.OpIs:
		switch v := value.(type) {
		case nil:
			return quoted + " IS NULL", nil
		case bool:
			if v {
				return quoted + " IS TRUE", nil
			}
			return quoted + " IS FALSE", nil
		}
		return "", fmt.Errorf("dialect: %s only accepts null or a boolean, got %T", op, value)
	}
	return "", fmt.Errorf("dialect: unsupported operator %s", op)
}
