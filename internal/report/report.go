// Package report runs read-only aggregate and join queries over customers
// and orders. Nothing in it writes to the database.
package report

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"golang.org/x/text/currency"

	"github.com/Additional-Code/seido/internal/config"
	"github.com/Additional-Code/seido/internal/database"
	"github.com/Additional-Code/seido/internal/entity"
)

var reportTracer = otel.Tracer("github.com/Additional-Code/seido/report")

// Module provides the Reporter to Fx.
var Module = fx.Provide(NewReporter)

// CustomerOrders is one customer with all of its orders, possibly none.
type CustomerOrders struct {
	entity.Customer `bun:",extend"`

	Orders []entity.Order `bun:"rel:has-many,join:customer_id=customer_id"`
}

// CustomerOrderRow is one matching (customer, order) pair.
type CustomerOrderRow struct {
	CustomerID uuid.UUID       `bun:"customer_id" json:"customer_id"`
	FirstName  string          `bun:"first_name" json:"first_name"`
	LastName   string          `bun:"last_name" json:"last_name"`
	OrderID    uuid.UUID       `bun:"order_id" json:"order_id"`
	Value      decimal.Decimal `bun:"value" json:"value"`
}

// Partition splits customers by whether they have placed any order.
type Partition struct {
	WithOrders    int `json:"with_orders"`
	WithoutOrders int `json:"without_orders"`
}

// Summary gathers the headline numbers of the dataset.
type Summary struct {
	Customers  int             `json:"customers"`
	Orders     int             `json:"orders"`
	Total      decimal.Decimal `json:"total"`
	TotalText  string          `json:"total_text"`
	JoinedRows int             `json:"joined_rows"`
	Partition  Partition       `json:"partition"`
}

// Reporter runs reporting queries on the reader connection.
type Reporter struct {
	db   bun.IDB
	unit currency.Unit
}

// NewReporter builds a Reporter on the reader connection.
func NewReporter(conns *database.Connections, cfg config.Config) *Reporter {
	return &Reporter{db: conns.Reader, unit: cfg.Report.Currency}
}

// Currency is the unit totals are formatted in.
func (r *Reporter) Currency() currency.Unit {
	return r.unit
}

// CustomerCount counts stored customers.
func (r *Reporter) CustomerCount(ctx context.Context) (int, error) {
	return r.db.NewSelect().Model((*entity.Customer)(nil)).Count(ctx)
}

// OrderCount counts stored orders.
func (r *Reporter) OrderCount(ctx context.Context) (int, error) {
	return r.db.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
}

// OrderTotal sums the value of every order; zero when there are none.
func (r *Reporter) OrderTotal(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.NewSelect().
		Model((*entity.Order)(nil)).
		ColumnExpr("COALESCE(SUM(value), 0)").
		Scan(ctx, &total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum orders: %w", err)
	}
	return total, nil
}

// TopOrders returns the n orders with the highest value, highest first.
func (r *Reporter) TopOrders(ctx context.Context, n int) ([]entity.Order, error) {
	if n <= 0 {
		return nil, nil
	}
	var orders []entity.Order
	err := r.db.NewSelect().
		Model(&orders).
		OrderExpr("value DESC").
		OrderExpr("order_id").
		Limit(n).
		Scan(ctx)
	return orders, err
}

// GroupJoin returns every customer with its orders, customers without orders
// included with an empty list.
func (r *Reporter) GroupJoin(ctx context.Context) ([]CustomerOrders, error) {
	ctx, span := reportTracer.Start(ctx, "Reporter.GroupJoin")
	defer span.End()

	var rows []CustomerOrders
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Orders").
		OrderExpr("customer.last_name, customer.first_name, customer.customer_id").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "group join failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("report.customers", len(rows)))
	return rows, nil
}

// Partition counts customers with and without orders.
func (r *Reporter) Partition(ctx context.Context) (Partition, error) {
	groups, err := r.GroupJoin(ctx)
	if err != nil {
		return Partition{}, err
	}
	return partition(groups), nil
}

func partition(groups []CustomerOrders) Partition {
	var p Partition
	for _, g := range groups {
		if len(g.Orders) == 0 {
			p.WithoutOrders++
		} else {
			p.WithOrders++
		}
	}
	return p
}

// InnerJoin returns one row per customer/order pair. limit <= 0 returns all rows.
func (r *Reporter) InnerJoin(ctx context.Context, limit int) ([]CustomerOrderRow, error) {
	ctx, span := reportTracer.Start(ctx, "Reporter.InnerJoin", trace.WithAttributes(attribute.Int("report.limit", limit)))
	defer span.End()

	q := r.joined().
		ColumnExpr("c.customer_id, c.first_name, c.last_name, o.order_id, o.value").
		OrderExpr("c.last_name, c.first_name, o.value DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []CustomerOrderRow
	if err := q.Scan(ctx, &rows); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inner join failed")
		return nil, err
	}
	return rows, nil
}

// InnerJoinCount counts the rows InnerJoin would return.
func (r *Reporter) InnerJoinCount(ctx context.Context) (int, error) {
	return r.joined().Count(ctx)
}

func (r *Reporter) joined() *bun.SelectQuery {
	return r.db.NewSelect().
		TableExpr("customers AS c").
		Join("JOIN orders AS o ON o.customer_id = c.customer_id")
}

// Summary runs the counting queries and formats the order total.
func (r *Reporter) Summary(ctx context.Context) (Summary, error) {
	ctx, span := reportTracer.Start(ctx, "Reporter.Summary")
	defer span.End()

	var (
		s   Summary
		err error
	)
	if s.Customers, err = r.CustomerCount(ctx); err != nil {
		return Summary{}, fmt.Errorf("count customers: %w", err)
	}
	if s.Orders, err = r.OrderCount(ctx); err != nil {
		return Summary{}, fmt.Errorf("count orders: %w", err)
	}
	if s.Total, err = r.OrderTotal(ctx); err != nil {
		return Summary{}, err
	}
	if s.JoinedRows, err = r.InnerJoinCount(ctx); err != nil {
		return Summary{}, fmt.Errorf("count joined rows: %w", err)
	}
	if s.Partition, err = r.Partition(ctx); err != nil {
		return Summary{}, err
	}
	s.TotalText = entity.FormatAmount(r.unit, s.Total)
	return s, nil
}
