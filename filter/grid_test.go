package filter

import (
	"net/http/httptest"
	"testing"

	"github.com/skuid/tenantsql/errs"
	qp "github.com/skuid/tenantsql/queryparts"
	"github.com/stretchr/testify/assert"
)

func uint64Ptr(v uint64) *uint64 {
	return &v
}

func TestBuildGridQuery(t *testing.T) {
	testCases := []struct {
		desc    string
		query   string
		want    QueryOptions
		wantErr errs.Kind
	}{
		{
			"defaults",
			"",
			QueryOptions{
				Where:  qp.And(),
				Limit:  uint64Ptr(10),
				Offset: 0,
			},
			0,
		},
		{
			"page and sort",
			"?page=2&rowsPerPage=5&sortBy=name&sortType=DESC",
			QueryOptions{
				Where:  qp.And(),
				Order:  qp.OrderSpec{{Column: "name", Direction: "DESC"}},
				Limit:  uint64Ptr(5),
				Offset: 5,
			},
			0,
		},
		{
			"unlimited rows",
			"rowsPerPage=-1&page=3",
			QueryOptions{
				Where: qp.And(),
				Limit: nil,
			},
			0,
		},
		{
			"dotted sort is a literal and direction is upper cased",
			"sortBy=user.name&sortType=asc",
			QueryOptions{
				Where: qp.And(),
				Order: qp.OrderSpec{{Column: qp.Literal("user.name"), Direction: "ASC"}},
				Limit: uint64Ptr(10),
			},
			0,
		},
		{
			"sort needs both keys",
			"sortBy=name",
			QueryOptions{
				Where: qp.And(),
				Limit: uint64Ptr(10),
			},
			0,
		},
		{
			"where and search",
			"where[age][gt]=30&search[name][contain]=jo&search[email][contain]=jo&attributes[]=id&attributes[]=name",
			QueryOptions{
				Where: qp.And(
					qp.WhereOptions{"age": qp.WhereOptions{qp.OpGt: float64(30)}},
					qp.WhereOptions{qp.OpOr: qp.WhereOptions{
						"name":  qp.WhereOptions{qp.OpSubstring: "jo"},
						"email": qp.WhereOptions{qp.OpSubstring: "jo"},
					}},
				),
				Limit:      uint64Ptr(10),
				Attributes: []string{"id", "name"},
			},
			0,
		},
		{
			"where as JSON",
			`where={"user.id":{"in":[1,2]}}`,
			QueryOptions{
				Where: qp.And(
					qp.WhereOptions{"$user.id$": qp.WhereOptions{qp.OpIn: []interface{}{float64(1), float64(2)}}},
				),
				Limit: uint64Ptr(10),
			},
			0,
		},
		{
			"comma separated attributes",
			"attributes=id,%20name",
			QueryOptions{
				Where:      qp.And(),
				Limit:      uint64Ptr(10),
				Attributes: []string{"id", "name"},
			},
			0,
		},
		{
			"page zero clamps the offset",
			"page=0&rowsPerPage=5",
			QueryOptions{
				Where: qp.And(),
				Limit: uint64Ptr(5),
			},
			0,
		},
		{
			"non numeric page",
			"page=two",
			QueryOptions{},
			errs.ClientInput,
		},
		{
			"page too large for the offset",
			"page=9223372036854775807&rowsPerPage=5",
			QueryOptions{},
			errs.ClientInput,
		},
		{
			"negative rows per page",
			"rowsPerPage=-5",
			QueryOptions{},
			errs.ClientInput,
		},
		{
			"bad direction",
			"sortBy=name&sortType=up",
			QueryOptions{},
			errs.ClientInput,
		},
		{
			"literal sort must be an identifier",
			"sortBy=a.b;drop&sortType=asc",
			QueryOptions{},
			errs.ClientInput,
		},
		{
			"unknown operator",
			"where[age][bigger]=3",
			QueryOptions{},
			errs.ClientInput,
		},
		{
			"where must be an object",
			"where=abc",
			QueryOptions{},
			errs.ClientInput,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert := assert.New(t)

			req, err := ParseRequest(tc.query)
			assert.NoError(err)

			got, err := BuildGridQuery(req)
			if tc.wantErr != 0 {
				assert.Error(err)
				assert.Equal(tc.wantErr, errs.KindOf(err))
				return
			}
			assert.NoError(err)
			assert.Equal(tc.want, got)
		})
	}
}

func TestLargeUnlimitedPage(t *testing.T) {
	assert := assert.New(t)

	req, err := ParseRequest("page=9223372036854775807&rowsPerPage=-1")
	assert.NoError(err)
	got, err := BuildGridQuery(req)
	assert.NoError(err)
	assert.Nil(got.Limit)
	assert.Equal(uint64(0), got.Offset)
}

func TestGridQueryFromHTTP(t *testing.T) {
	assert := assert.New(t)

	r := httptest.NewRequest("GET", "/users?page=3&rowsPerPage=20&where[active]=true", nil)
	got, err := GridQuery(r)
	assert.NoError(err)
	assert.Equal(uint64(40), got.Offset)
	assert.Equal(uint64(20), *got.Limit)
	assert.Equal(qp.And(qp.WhereOptions{"active": "true"}), got.Where)
}

func TestParseRequestAttributes(t *testing.T) {
	_, err := ParseRequest("attributes[a]=1")
	assert.Error(t, err)
	assert.True(t, errs.Is(err, errs.ClientInput))
}
