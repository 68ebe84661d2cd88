package queryparts

/*
Literal is a raw SQL reference. It is emitted without quoting, so only values that
were checked by the caller may become a Literal.
*/
type Literal string

// Order directions
const (
	Asc  = "ASC"
	Desc = "DESC"
)

/*
OrderItem holds information about a request to order by a column. Column is either
a string, quoted by the dialect, or a Literal.
*/
type OrderItem struct {
	Column    interface{}
	Direction string
}

// OrderSpec is an ordered list of OrderItems
type OrderSpec []OrderItem
