package filter

import (
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/skuid/tenantsql/errs"
	qp "github.com/skuid/tenantsql/queryparts"
)

// DefaultRowsPerPage is used when a request does not set rowsPerPage
const DefaultRowsPerPage = 10

// unlimited is the rowsPerPage value that turns paging off
const unlimited = "-1"

var dottedIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)+$`)

// Request holds the recognized grid keys of a query string
type Request struct {
	Page        string
	RowsPerPage string
	Where       interface{}
	Search      interface{}
	SortBy      string
	SortType    string
	Attributes  []string
}

// QueryOptions are the resolved select options for a grid request
type QueryOptions struct {
	Where      qp.WhereOptions
	Order      qp.OrderSpec
	Limit      *uint64
	Offset     uint64
	Attributes []string
}

// ParseRequest parses raw and picks out the grid keys
func ParseRequest(raw string) (Request, error) {
	query, err := ParseQuery(raw)
	if err != nil {
		return Request{}, err
	}

	req := Request{
		Page:        firstString(query["page"]),
		RowsPerPage: firstString(query["rowsPerPage"]),
		Where:       query["where"],
		Search:      query["search"],
		SortBy:      firstString(query["sortBy"]),
		SortType:    firstString(query["sortType"]),
	}

	switch attrs := query["attributes"].(type) {
	case nil:
	case string:
		for _, attr := range strings.Split(attrs, ",") {
			if attr = strings.TrimSpace(attr); attr != "" {
				req.Attributes = append(req.Attributes, attr)
			}
		}
	case []interface{}:
		for _, item := range attrs {
			attr, ok := item.(string)
			if !ok {
				return req, errs.New(errs.ClientInput, "attributes must be a list of column names")
			}
			req.Attributes = append(req.Attributes, attr)
		}
	default:
		return req, errs.New(errs.ClientInput, "attributes must be a list of column names")
	}

	return req, nil
}

// RequestFromHTTP parses the grid keys of r's query string
func RequestFromHTTP(r *http.Request) (Request, error) {
	return ParseRequest(r.URL.RawQuery)
}

// GridQuery parses and resolves the grid request carried by r
func GridQuery(r *http.Request) (QueryOptions, error) {
	req, err := RequestFromHTTP(r)
	if err != nil {
		return QueryOptions{}, err
	}
	return BuildGridQuery(req)
}

func firstString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []interface{}:
		if len(val) > 0 {
			return firstString(val[0])
		}
	}
	return ""
}

/*
BuildGridQuery resolves a Request into QueryOptions. The filter is always an AND
group holding the rewritten where and, when search is set, an OR over the
rewritten search. The offset is rowsPerPage * (page - 1) and never negative.
*/
func BuildGridQuery(req Request) (QueryOptions, error) {
	conditions := []interface{}{}

	if req.Where != nil {
		where, err := filterValue(req.Where, "where")
		if err != nil {
			return QueryOptions{}, err
		}
		conditions = append(conditions, where)
	}

	if req.Search != nil {
		search, err := filterValue(req.Search, "search")
		if err != nil {
			return QueryOptions{}, err
		}
		conditions = append(conditions, qp.WhereOptions{qp.OpOr: search})
	}

	order, err := buildOrder(req.SortBy, req.SortType)
	if err != nil {
		return QueryOptions{}, err
	}

	limit, offset, err := paging(req.Page, req.RowsPerPage)
	if err != nil {
		return QueryOptions{}, err
	}

	return QueryOptions{
		Where:      qp.And(conditions...),
		Order:      order,
		Limit:      limit,
		Offset:     offset,
		Attributes: req.Attributes,
	}, nil
}

// filterValue rewrites a where or search parameter. A JSON string is accepted in place of brackets.
func filterValue(v interface{}, name string) (interface{}, error) {
	if s, ok := v.(string); ok {
		var parsed interface{}
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(s, &parsed); err != nil {
			return nil, errs.Wrap(errs.ClientInput, err, fmt.Sprintf("%s must be an object", name))
		}
		v = parsed
	}

	switch v.(type) {
	case map[string]interface{}, qp.WhereOptions:
		return ToOperatorExpr(v)
	case []interface{}:
		items, err := ToOperatorExpr(v)
		if err != nil {
			return nil, err
		}
		return qp.And(items.([]interface{})...), nil
	}
	return nil, errs.New(errs.ClientInput, fmt.Sprintf("%s must be an object", name))
}

func buildOrder(sortBy, sortType string) (qp.OrderSpec, error) {
	if sortBy == "" || sortType == "" {
		return nil, nil
	}

	direction := strings.ToUpper(strings.TrimSpace(sortType))
	if direction != qp.Asc && direction != qp.Desc {
		return nil, errs.New(errs.ClientInput, "sortType must be ASC or DESC")
	}

	if strings.Contains(sortBy, ".") {
		if !dottedIdentifier.MatchString(sortBy) {
			return nil, errs.New(errs.ClientInput, fmt.Sprintf("invalid sortBy '%s'", sortBy))
		}
		return qp.OrderSpec{{Column: qp.Literal(sortBy), Direction: direction}}, nil
	}
	return qp.OrderSpec{{Column: sortBy, Direction: direction}}, nil
}

func paging(page, rowsPerPage string) (*uint64, uint64, error) {
	perPage := int64(DefaultRowsPerPage)
	if rowsPerPage != "" {
		n, err := strconv.ParseInt(rowsPerPage, 10, 64)
		if err != nil || (n < 0 && rowsPerPage != unlimited) {
			return nil, 0, errs.New(errs.ClientInput, "rowsPerPage must be a positive number or -1")
		}
		perPage = n
	}

	pageNumber := int64(1)
	if page != "" {
		n, err := strconv.ParseInt(page, 10, 64)
		if err != nil {
			return nil, 0, errs.New(errs.ClientInput, "page must be a number")
		}
		pageNumber = n
	}

	var limit *uint64
	if rowsPerPage != unlimited {
		l := uint64(perPage)
		limit = &l
	}

	if pageNumber < 1 || perPage <= 0 {
		return limit, 0, nil
	}
	if pageNumber-1 > math.MaxInt64/perPage {
		return nil, 0, errs.New(errs.ClientInput, "page is out of range")
	}
	return limit, uint64(perPage * (pageNumber - 1)), nil
}
