package customer

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
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/seido/internal/config"
	"github.com/Additional-Code/seido/internal/database"
	"github.com/Additional-Code/seido/internal/entity"
)

const scope = "github.com/Additional-Code/seido/repository/customer"

var (
	repoTracer = otel.Tracer(scope)
	writes, _  = otel.Meter(scope).Int64Counter("customer.repository.writes",
		metric.WithDescription("Customer writes by operation and outcome"))
)

var (
	// ErrNotFound is returned when no customer has the requested id.
	ErrNotFound = errors.New("customer not found")
	// ErrWriteFailed is returned when a write affects an unexpected number of rows.
	ErrWriteFailed = errors.New("customer write failed")
	// ErrAlreadyExists is returned by Create for an id that is already stored.
	ErrAlreadyExists = errors.New("customer already exists")
	// ErrReferenced is returned by Delete under the reject policy when orders
	// still reference the customer.
	ErrReferenced = errors.New("customer is referenced by orders")
)

// Repository exposes CRUD access to customers on a borrowed session.
// It never closes the session; the caller owns it.
type Repository struct {
	session *database.Session
	policy  string
}

// NewRepository wires a repository on session. policy is config.DeleteReject
// or config.DeleteCascade; anything else is treated as reject.
func NewRepository(session *database.Session, policy string) *Repository {
	if policy != config.DeleteCascade {
		policy = config.DeleteReject
	}
	return &Repository{session: session, policy: policy}
}

// Create inserts c, assigning a fresh id when it has none.
func (r *Repository) Create(ctx context.Context, c *entity.Customer) (*entity.Customer, error) {
	if c == nil {
		return nil, errors.New("nil customer")
	}
	if c.CustomerID == uuid.Nil {
		c.CustomerID = uuid.New()
	}
	ctx, span := startSpan(ctx, "CustomerRepository.Create", c.CustomerID)
	defer span.End()

	id := c.CustomerID
	err := errors.Join(
		r.session.Guard(func(ctx context.Context, db bun.IDB) error {
			exists, err := db.NewSelect().Model((*entity.Customer)(nil)).Where("customer_id = ?", id).Exists(ctx)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
			}
			return nil
		}),
		r.session.Add(c),
	)
	if err != nil {
		return nil, err
	}
	if err := r.commit(ctx, span, "create"); err != nil {
		return nil, err
	}
	return c, nil
}

// Read fetches one customer by id.
func (r *Repository) Read(ctx context.Context, id uuid.UUID) (*entity.Customer, error) {
	if r.session.Closed() {
		return nil, database.ErrSessionClosed
	}
	ctx, span := startSpan(ctx, "CustomerRepository.Read", id)
	defer span.End()

	c := &entity.Customer{CustomerID: id}
	err := r.session.Select(c).WherePK().Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return c, nil
}

// ReadAll returns a lazy query over every stored customer.
func (r *Repository) ReadAll(ctx context.Context) Query {
	return Query{session: r.session}
}

// Update overwrites the stored fields of c.CustomerID with the values in c.
func (r *Repository) Update(ctx context.Context, c *entity.Customer) (*entity.Customer, error) {
	if c == nil {
		return nil, errors.New("nil customer")
	}
	if _, err := r.Read(ctx, c.CustomerID); err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "CustomerRepository.Update", c.CustomerID)
	defer span.End()

	if err := r.session.Update(c); err != nil {
		return nil, err
	}
	if err := r.commit(ctx, span, "update"); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes the customer and returns it as it was before deletion.
// Orders referencing the customer are handled according to the delete policy.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (*entity.Customer, error) {
	existing, err := r.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "CustomerRepository.Delete", id)
	defer span.End()
	span.SetAttributes(attribute.String("customer.delete_policy", r.policy))

	var stageErr error
	switch r.policy {
	case config.DeleteCascade:
		stageErr = r.session.RemoveWhere((*entity.Order)(nil), "customer_id = ?", id)
	default:
		stageErr = r.session.Guard(func(ctx context.Context, db bun.IDB) error {
			n, err := db.NewSelect().Model((*entity.Order)(nil)).Where("customer_id = ?", id).Count(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: %d order(s)", ErrReferenced, n)
			}
			return nil
		})
	}
	if err := errors.Join(stageErr, r.session.Remove(existing)); err != nil {
		return nil, err
	}
	if err := r.commit(ctx, span, "delete"); err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *Repository) commit(ctx context.Context, span trace.Span, op string) error {
	_, err := r.session.SaveChanges(ctx)

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, database.ErrRowCount):
		err = fmt.Errorf("%w: %w", ErrWriteFailed, err)
		outcome = "write_failed"
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrReferenced):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	writes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return err
}

func startSpan(ctx context.Context, name string, id uuid.UUID) (context.Context, trace.Span) {
	return repoTracer.Start(ctx, name, trace.WithAttributes(attribute.String("customer.id", id.String())))
}
