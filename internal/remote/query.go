// Package remote describes the data store the app talks to: relations are
// read with a Query value and written with upserts, inserts, deletes and
// named RPCs. pkg/backend and internal/repository implement Store.
package remote

import (
	"context"
	"fmt"

	"github.com/penne-app/penne/internal/errors"
)

// Relations
const (
	RelHallRatings = "dining_hall_ratings"
	RelMenus       = "menus"
	RelDishRatings = "dish_ratings"
	RelHalls       = "dining_halls"
	RelComments    = "dining_comments"
	RelProfiles    = "profiles"
	RelFriends     = "friends"
)

// Atomic counter RPCs. Each takes a single dish_id argument.
const (
	RPCIncrementUpvote   = "increment_dish_upvote"
	RPCDecrementUpvote   = "decrement_dish_upvote"
	RPCIncrementDownvote = "increment_dish_downvote"
	RPCDecrementDownvote = "decrement_dish_downvote"
)

// CounterRPC returns the RPC that applies delta (+1 or -1) to the upvote or
// downvote counter. It returns "" for a zero delta.
func CounterRPC(upvote bool, delta int) string {
	switch {
	case delta > 0 && upvote:
		return RPCIncrementUpvote
	case delta < 0 && upvote:
		return RPCDecrementUpvote
	case delta > 0:
		return RPCIncrementDownvote
	case delta < 0:
		return RPCDecrementDownvote
	}
	return ""
}

// IsCounterRPC reports whether fn names one of the counter RPCs
func IsCounterRPC(fn string) bool {
	switch fn {
	case RPCIncrementUpvote, RPCDecrementUpvote, RPCIncrementDownvote, RPCDecrementDownvote:
		return true
	}
	return false
}

// Store executes queries and writes against the data store
type Store interface {
	Select(ctx context.Context, q Query) ([]Record, error)
	Upsert(ctx context.Context, relation string, row Record, conflict []string) error
	Insert(ctx context.Context, relation string, row Record) (Record, error)
	Delete(ctx context.Context, q Query) (int64, error)
	Call(ctx context.Context, fn string, args Record) error
}

// Op is a filter operator
type Op string

const (
	OpEq    Op = "eq"
	OpNeq   Op = "neq"
	OpGt    Op = "gt"
	OpGte   Op = "gte"
	OpLt    Op = "lt"
	OpLte   Op = "lte"
	OpLike  Op = "like"
	OpILike Op = "ilike"
	OpIn    Op = "in"
)

// Valid reports whether op is a known operator
func (op Op) Valid() bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpLike, OpILike, OpIn:
		return true
	}
	return false
}

// Filter restricts rows by a column comparison. For OpIn, Value is []any.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Order sorts rows by a column
type Order struct {
	Column     string
	Descending bool
}

// Query selects rows from a relation. A zero Limit means no limit and empty
// Columns means all columns.
type Query struct {
	Relation string
	Columns  []string
	Filters  []Filter
	Order    []Order
	Limit    int
}

// From starts a query on a relation
func From(relation string) Query {
	return Query{Relation: relation}
}

// Select sets the returned columns
func (q Query) Select(columns ...string) Query {
	q.Columns = append([]string(nil), columns...)
	return q
}

// Where appends a filter
func (q Query) Where(column string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Column: column, Op: op, Value: value})
	return q
}

func (q Query) Eq(column string, value any) Query     { return q.Where(column, OpEq, value) }
func (q Query) Neq(column string, value any) Query    { return q.Where(column, OpNeq, value) }
func (q Query) ILike(column, pattern string) Query    { return q.Where(column, OpILike, pattern) }
func (q Query) In(column string, values ...any) Query { return q.Where(column, OpIn, values) }

// OrderBy appends a sort key
func (q Query) OrderBy(column string, descending bool) Query {
	q.Order = append(append([]Order(nil), q.Order...), Order{Column: column, Descending: descending})
	return q
}

// LimitTo caps the number of returned rows
func (q Query) LimitTo(n int) Query {
	q.Limit = n
	return q
}

// Validate checks the query before any I/O
func (q Query) Validate() error {
	if q.Relation == "" {
		return errors.Validation("query has no relation")
	}
	if q.Limit < 0 {
		return errors.Validationf("negative limit %d", q.Limit)
	}
	for _, f := range q.Filters {
		if f.Column == "" {
			return errors.Validation("filter has no column")
		}
		if !f.Op.Valid() {
			return errors.Validationf("unknown filter operator %q", f.Op)
		}
		if f.Op == OpIn {
			if _, ok := f.Value.([]any); !ok {
				return errors.Validationf("filter %s.in needs a list value", f.Column)
			}
		}
	}
	for _, o := range q.Order {
		if o.Column == "" {
			return errors.Validation("order has no column")
		}
	}
	return nil
}

func (q Query) String() string {
	return fmt.Sprintf("%s%v where %v order %v limit %d", q.Relation, q.Columns, q.Filters, q.Order, q.Limit)
}

// Strings converts a string slice to an In value list
func Strings(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Int64s converts an int64 slice to an In value list
func Int64s(values []int64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
