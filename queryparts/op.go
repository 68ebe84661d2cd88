package queryparts

import "fmt"

/*
Op is a comparison or logical operator kind used as a key inside WhereOptions.
The set is closed: ParseOp is the only way a client token becomes an Op.
*/
type Op int

const (
	OpEq Op = iota + 1
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpNotIn
	OpSubstring
	OpIs
	OpAnd
	OpOr
)

// tokens are the operator names accepted from filter query strings
var tokens = map[string]Op{
	"eq":      OpEq,
	"ne":      OpNe,
	"gt":      OpGt,
	"gte":     OpGte,
	"lt":      OpLt,
	"lte":     OpLte,
	"in":      OpIn,
	"notIn":   OpNotIn,
	"contain": OpSubstring,
	"is":      OpIs,
	"and":     OpAnd,
	"or":      OpOr,
}

// ParseOp maps a client token such as "gte" or "notIn" to its Op
func ParseOp(token string) (Op, bool) {
	op, ok := tokens[token]
	return op, ok
}

// Token returns the client token for op
func (op Op) Token() string {
	for token, o := range tokens {
		if o == op {
			return token
		}
	}
	return ""
}

// IsLogical is true for OpAnd and OpOr
func (op Op) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

func (op Op) String() string {
	if token := op.Token(); token != "" {
		return "Op." + token
	}
	return fmt.Sprintf("Op(%d)", int(op))
}
