package customer

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/uptrace/bun"

	"github.com/Additional-Code/seido/internal/database"
	"github.com/Additional-Code/seido/internal/entity"
)

// Query is a lazily evaluated selection of customers. Every builder method
// returns a new Query; nothing runs until List, First or Count is called.
// Row order is unspecified unless OrderBy is used.
type Query struct {
	session *database.Session
	steps   []func(*bun.SelectQuery) *bun.SelectQuery
	limited bool
	skipped bool
}

func (q Query) with(step func(*bun.SelectQuery) *bun.SelectQuery) Query {
	steps := make([]func(*bun.SelectQuery) *bun.SelectQuery, 0, len(q.steps)+1)
	steps = append(steps, q.steps...)
	q.steps = append(steps, step)
	return q
}

// Where filters with a bun condition, e.g. Where("last_name = ?", "Berg").
func (q Query) Where(cond string, args ...any) Query {
	return q.with(func(sq *bun.SelectQuery) *bun.SelectQuery { return sq.Where(cond, args...) })
}

// OrderBy sorts by an SQL expression, e.g. OrderBy("last_name ASC").
func (q Query) OrderBy(expr string, args ...any) Query {
	return q.with(func(sq *bun.SelectQuery) *bun.SelectQuery { return sq.OrderExpr(expr, args...) })
}

// Take keeps at most n customers.
func (q Query) Take(n int) Query {
	q = q.with(func(sq *bun.SelectQuery) *bun.SelectQuery { return sq.Limit(n) })
	q.limited = true
	return q
}

// Skip drops the first n customers.
func (q Query) Skip(n int) Query {
	q = q.with(func(sq *bun.SelectQuery) *bun.SelectQuery { return sq.Offset(n) })
	q.skipped = true
	return q
}

// List materializes the query.
func (q Query) List(ctx context.Context) ([]entity.Customer, error) {
	if q.session.Closed() {
		return nil, database.ErrSessionClosed
	}
	var customers []entity.Customer
	if err := q.build(&customers).Scan(ctx); err != nil {
		return nil, err
	}
	return customers, nil
}

// First returns the first customer of the query, or ErrNotFound.
func (q Query) First(ctx context.Context) (*entity.Customer, error) {
	customers, err := q.Take(1).List(ctx)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, ErrNotFound
	}
	return &customers[0], nil
}

// Count returns the number of customers matching the filters. Take, Skip and
// OrderBy do not affect it.
func (q Query) Count(ctx context.Context) (int, error) {
	if q.session.Closed() {
		return 0, database.ErrSessionClosed
	}
	n, err := q.build((*entity.Customer)(nil)).Count(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

func (q Query) build(model any) *bun.SelectQuery {
	sq := q.session.Select(model)
	for _, step := range q.steps {
		sq = step(sq)
	}
	// sqlite and mysql reject OFFSET without LIMIT.
	if q.skipped && !q.limited {
		sq = sq.Limit(math.MaxInt)
	}
	return sq
}
