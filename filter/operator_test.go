package filter

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/skuid/tenantsql/errs"
	qp "github.com/skuid/tenantsql/queryparts"
	"github.com/stretchr/testify/assert"
)

func TestToOperatorExpr(t *testing.T) {
	testCases := []struct {
		desc string
		give interface{}
		want interface{}
	}{
		{
			"operator under a column",
			map[string]interface{}{"a": map[string]interface{}{"gt": 5}},
			qp.WhereOptions{"a": qp.WhereOptions{qp.OpGt: 5}},
		},
		{
			"string values are JSON decoded",
			map[string]interface{}{"a": map[string]interface{}{"gte": "5", "lt": "x"}},
			qp.WhereOptions{"a": qp.WhereOptions{qp.OpGte: float64(5), qp.OpLt: "x"}},
		},
		{
			"dotted columns are wrapped",
			map[string]interface{}{"a.b": 1},
			qp.WhereOptions{"$a.b$": 1},
		},
		{
			"scalar column values are kept as they are",
			map[string]interface{}{"age": "30"},
			qp.WhereOptions{"age": "30"},
		},
		{
			"lists are rewritten item by item",
			map[string]interface{}{"id": map[string]interface{}{"in": []interface{}{"1", "2"}}},
			qp.WhereOptions{"id": qp.WhereOptions{qp.OpIn: []interface{}{float64(1), float64(2)}}},
		},
		{
			"top level or holds filters",
			map[string]interface{}{"or": []interface{}{
				map[string]interface{}{"user.name": map[string]interface{}{"contain": "jo"}},
				map[string]interface{}{"deleted": "null"},
			}},
			qp.WhereOptions{qp.OpOr: []interface{}{
				qp.WhereOptions{"$user.name$": qp.WhereOptions{qp.OpSubstring: "jo"}},
				qp.WhereOptions{"deleted": "null"},
			}},
		},
		{
			"null strings decode under operators",
			map[string]interface{}{"deleted": map[string]interface{}{"is": "null"}},
			qp.WhereOptions{"deleted": qp.WhereOptions{qp.OpIs: nil}},
		},
		{
			"plain strings pass through",
			"hello",
			"hello",
		},
		{
			"JSON strings decode",
			"true",
			true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert := assert.New(t)

			got, err := ToOperatorExpr(tc.give)
			assert.NoError(err)
			assert.Equal(tc.want, got)

			again, err := ToOperatorExpr(got)
			assert.NoError(err)
			assert.Equal(got, again)
		})
	}
}

func TestToOperatorExprUnknownOperator(t *testing.T) {
	assert := assert.New(t)

	_, err := ToOperatorExpr(map[string]interface{}{"a": map[string]interface{}{"foo": "1"}})
	assert.Error(err)
	assert.True(errs.Is(err, errs.ClientInput))

	var unknown *UnknownOperatorError
	assert.True(errors.As(err, &unknown))
	assert.Equal("foo", unknown.Token)
	assert.Equal("a", unknown.Column)
}
