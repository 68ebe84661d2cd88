package queryparts

import "strings"

/*
WhereOptions is a rewritten filter expression. Keys are either an Op or a string
column name. Column names referencing another table are wrapped as $table.column$.
Values are scalars, []interface{} or nested WhereOptions.
*/
type WhereOptions map[interface{}]interface{}

// And combines conditions into a single OpAnd list
func And(conditions ...interface{}) WhereOptions {
	if conditions == nil {
		conditions = []interface{}{}
	}
	return WhereOptions{OpAnd: conditions}
}

// Or combines conditions into a single OpOr list
func Or(conditions ...interface{}) WhereOptions {
	if conditions == nil {
		conditions = []interface{}{}
	}
	return WhereOptions{OpOr: conditions}
}

// ColumnRef wraps a dotted column path so it is read as a raw column reference
func ColumnRef(column string) string {
	if IsColumnRef(column) || !strings.Contains(column, ".") {
		return column
	}
	return "$" + column + "$"
}

// IsColumnRef reports whether column is already wrapped as $path$
func IsColumnRef(column string) bool {
	return len(column) > 2 && strings.HasPrefix(column, "$") && strings.HasSuffix(column, "$")
}

// UnwrapColumnRef strips the $ markers added by ColumnRef
func UnwrapColumnRef(column string) string {
	if IsColumnRef(column) {
		return column[1 : len(column)-1]
	}
	return column
}
