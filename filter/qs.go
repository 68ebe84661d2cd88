/*
Package filter turns grid style query strings into structured filter options.

	?page=2&rowsPerPage=5&sortBy=name&sortType=DESC&where[age][gt]=30

Query strings are parsed with go-qs: a[b]=v builds nested mappings and a[]=v
appends to a list. Mappings keyed only by small indexes, as in a[0]=v, are
turned into lists afterwards.
*/
package filter

import (
	"sort"
	"strconv"
	"strings"

	qs "github.com/derekstavis/go-qs"
	"github.com/skuid/tenantsql/errs"
)

// arrayLimit is the largest index that still produces a list instead of a mapping
const arrayLimit = 20

/*
ParseQuery parses a raw query string, with or without the leading "?", into
nested mappings and lists. Values are always strings. Keys that disagree on their
shape, such as a=1&a[b]=2, are a ClientInput error.
*/
func ParseQuery(raw string) (map[string]interface{}, error) {
	raw = strings.TrimPrefix(raw, "?")
	if raw == "" {
		return map[string]interface{}{}, nil
	}

	query, err := qs.Unmarshal(raw)
	if err != nil {
		return nil, errs.Wrap(errs.ClientInput, err, "the query string could not be parsed")
	}
	return compact(query).(map[string]interface{}), nil
}

// compact turns mappings keyed only by small indexes into lists and missing values into ""
func compact(v interface{}) interface{} {
	switch node := v.(type) {
	case nil:
		return ""
	case []interface{}:
		for i, item := range node {
			node[i] = compact(item)
		}
		return node
	case map[string]interface{}:
		indexes := make([]int, 0, len(node))
		for k, child := range node {
			node[k] = compact(child)
			if idx, err := strconv.Atoi(k); err == nil && idx >= 0 && idx <= arrayLimit && strconv.Itoa(idx) == k {
				indexes = append(indexes, idx)
			}
		}

		if len(node) == 0 || len(indexes) != len(node) {
			return node
		}

		sort.Ints(indexes)
		list := make([]interface{}, 0, len(indexes))
		for _, idx := range indexes {
			list = append(list, node[strconv.Itoa(idx)])
		}
		return list
	}
	return v
}
