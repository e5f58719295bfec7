package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/seido/internal/database"
	"github.com/Additional-Code/seido/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/seido/repository/order")

var (
	// ErrNotFound is returned when an order is missing.
	ErrNotFound = errors.New("order not found")
	// ErrCustomerMissing is returned when an order references an unknown customer.
	ErrCustomerMissing = errors.New("order references a missing customer")
	// ErrWriteFailed is returned when an insert affects an unexpected number of rows.
	ErrWriteFailed = errors.New("order write failed")
)

// Repository gives access to orders on a borrowed session. Orders are
// created and read; they are not updated or deleted through it.
type Repository struct {
	session *database.Session
}

// NewRepository wires a repository on session.
func NewRepository(session *database.Session) *Repository {
	return &Repository{session: session}
}

// Stage queues the insert of o and the check that its customer exists,
// without committing. The seeder uses it to batch many orders in one save.
func (r *Repository) Stage(o *entity.Order) error {
	if o == nil {
		return errors.New("nil order")
	}
	if o.OrderID == uuid.Nil {
		o.OrderID = uuid.New()
	}
	customerID := o.CustomerID
	return errors.Join(
		r.session.Guard(func(ctx context.Context, db bun.IDB) error {
			exists, err := db.NewSelect().Model((*entity.Customer)(nil)).Where("customer_id = ?", customerID).Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%w: %s", ErrCustomerMissing, customerID)
			}
			return nil
		}),
		r.session.Add(o),
	)
}

// Create persists o after checking that its customer exists, in one transaction.
func (r *Repository) Create(ctx context.Context, o *entity.Order) (*entity.Order, error) {
	if err := r.Stage(o); err != nil {
		return nil, err
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(
		attribute.String("order.id", o.OrderID.String()),
		attribute.String("customer.id", o.CustomerID.String()),
	))
	defer span.End()

	if _, err := r.session.SaveChanges(ctx); err != nil {
		if errors.Is(err, database.ErrRowCount) {
			err = fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return nil, err
	}
	return o, nil
}

// Read fetches an order by primary key.
func (r *Repository) Read(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Read", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	o := &entity.Order{OrderID: id}
	err := r.session.Select(o).WherePK().Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return o, nil
}

// ListByCustomer returns the orders of one customer, largest value first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListByCustomer", trace.WithAttributes(attribute.String("customer.id", customerID.String())))
	defer span.End()

	var orders []entity.Order
	err := r.session.Select(&orders).
		Where("customer_id = ?", customerID).
		OrderExpr("value DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}
