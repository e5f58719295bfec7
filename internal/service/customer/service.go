package customer

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/seido/internal/cache"
	"github.com/Additional-Code/seido/internal/config"
	"github.com/Additional-Code/seido/internal/database"
	"github.com/Additional-Code/seido/internal/entity"
	"github.com/Additional-Code/seido/internal/messaging"
	customerrepo "github.com/Additional-Code/seido/internal/repository/customer"
	orderrepo "github.com/Additional-Code/seido/internal/repository/order"
	"github.com/Additional-Code/seido/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/seido/service/customer")

var errorRules = []errorbank.Rule{
	{Target: customerrepo.ErrNotFound, Kind: errorbank.KindNotFound, Message: "customer not found"},
	{Target: customerrepo.ErrAlreadyExists, Kind: errorbank.KindConflict, Message: "customer already exists"},
	{Target: customerrepo.ErrReferenced, Kind: errorbank.KindConflict, Message: "customer still has orders"},
	{Target: customerrepo.ErrWriteFailed, Kind: errorbank.KindConflict, Message: "customer was modified concurrently"},
}

// Page is one window of the customer listing.
type Page struct {
	Customers []entity.Customer
	Total     int
	Limit     int
	Offset    int
}

// Service runs customer use cases, one unit of work per call.
type Service struct {
	conns     *database.Connections
	policy    string
	cache     cache.Store
	cacheTTL  time.Duration
	publisher messaging.Client
	logger    *zap.Logger
	now       func() time.Time

	// writes counts committed updates and deletes. Get skips or undoes its
	// cache fill when a write lands while it is reading.
	writes atomic.Uint64
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Conns     *database.Connections
	Cache     cache.Store
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		conns:     p.Conns,
		policy:    p.Config.Customers.DeletePolicy,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		publisher: p.Publisher,
		logger:    p.Logger,
		now:       time.Now,
	}
}

// List returns customers ordered by name.
func (s *Service) List(ctx context.Context, limit, offset int) (Page, error) {
	ctx, span := serviceTracer.Start(ctx, "CustomerService.List")
	defer span.End()

	page := Page{Limit: limit, Offset: offset}
	err := s.conns.WithSession(ctx, func(ctx context.Context, session *database.Session) error {
		query := s.repo(session).ReadAll(ctx)

		total, err := query.Count(ctx)
		if err != nil {
			return err
		}
		page.Total = total

		query = query.OrderBy("last_name ASC, first_name ASC, customer_id ASC")
		if limit > 0 {
			query = query.Take(limit)
		}
		if offset > 0 {
			query = query.Skip(offset)
		}
		page.Customers, err = query.List(ctx)
		return err
	})
	if err != nil {
		return Page{}, s.fail(span, "list customers", err)
	}
	return page, nil
}

// Get retrieves a customer by id, consulting the cache first.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*entity.Customer, error) {
	ctx, span := s.start(ctx, "CustomerService.Get", id)
	defer span.End()

	if c, err := s.fromCache(ctx, id); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return c, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("customer cache read failed", zap.Stringer("id", id), zap.Error(err))
	}

	gen := s.writes.Load()
	var found *entity.Customer
	err := s.conns.WithSession(ctx, func(ctx context.Context, session *database.Session) error {
		var err error
		found, err = s.repo(session).Read(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "read customer", err)
	}

	if s.writes.Load() == gen {
		s.storeInCache(ctx, found)
		if s.writes.Load() != gen {
			s.evict(ctx, id)
		}
	}
	return found, nil
}

// Create stores a new customer with a generated id.
func (s *Service) Create(ctx context.Context, firstName, lastName string) (*entity.Customer, error) {
	ctx, span := serviceTracer.Start(ctx, "CustomerService.Create")
	defer span.End()

	var created *entity.Customer
	err := s.conns.WithSession(ctx, func(ctx context.Context, session *database.Session) error {
		var err error
		created, err = s.repo(session).Create(ctx, &entity.Customer{FirstName: firstName, LastName: lastName})
		return err
	})
	if err != nil {
		return nil, s.fail(span, "create customer", err)
	}
	span.SetAttributes(attribute.String("customer.id", created.CustomerID.String()))

	s.storeInCache(ctx, created)
	s.publish(ctx, EventCreated, created)
	return created, nil
}

// Update replaces the names of the customer with id.
func (s *Service) Update(ctx context.Context, id uuid.UUID, firstName, lastName string) (*entity.Customer, error) {
	ctx, span := s.start(ctx, "CustomerService.Update", id)
	defer span.End()

	var updated *entity.Customer
	err := s.conns.WithSession(ctx, func(ctx context.Context, session *database.Session) error {
		var err error
		updated, err = s.repo(session).Update(ctx, &entity.Customer{CustomerID: id, FirstName: firstName, LastName: lastName})
		return err
	})
	if err != nil {
		return nil, s.fail(span, "update customer", err)
	}

	s.writes.Add(1)
	s.evict(ctx, id)
	s.publish(ctx, EventUpdated, updated)
	return updated, nil
}

// Delete removes the customer with id and returns it as it was.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (*entity.Customer, error) {
	ctx, span := s.start(ctx, "CustomerService.Delete", id)
	defer span.End()

	var deleted *entity.Customer
	err := s.conns.WithSession(ctx, func(ctx context.Context, session *database.Session) error {
		var err error
		deleted, err = s.repo(session).Delete(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "delete customer", err)
	}

	s.writes.Add(1)
	s.evict(ctx, id)
	s.publish(ctx, EventDeleted, deleted)
	return deleted, nil
}

// Orders lists the orders of the customer with id, largest first.
func (s *Service) Orders(ctx context.Context, id uuid.UUID) ([]entity.Order, error) {
	ctx, span := s.start(ctx, "CustomerService.Orders", id)
	defer span.End()

	var orders []entity.Order
	err := s.conns.WithSession(ctx, func(ctx context.Context, session *database.Session) error {
		if _, err := s.repo(session).Read(ctx, id); err != nil {
			return err
		}
		var err error
		orders, err = orderrepo.NewRepository(session).ListByCustomer(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "list customer orders", err)
	}
	return orders, nil
}

func (s *Service) repo(session *database.Session) *customerrepo.Repository {
	return customerrepo.NewRepository(session, s.policy)
}

func (s *Service) start(ctx context.Context, name string, id uuid.UUID) (context.Context, trace.Span) {
	return serviceTracer.Start(ctx, name, trace.WithAttributes(attribute.String("customer.id", id.String())))
}

// fail converts repository errors to errorbank errors and records them on span.
func (s *Service) fail(span trace.Span, action string, err error) error {
	translated := errorbank.Translate(err, errorRules...)
	if errorbank.KindOf(translated) == errorbank.KindInternal {
		s.logger.Error(action+" failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, action)
		return errorbank.Internal("failed to "+action, errorbank.WithCause(err))
	}
	return translated
}

func (s *Service) publish(ctx context.Context, eventType string, c *entity.Customer) {
	payload, err := json.Marshal(Event{
		Type:       eventType,
		CustomerID: c.CustomerID,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Error("marshal customer event", zap.String("type", eventType), zap.Error(err))
		return
	}
	msg := messaging.Message{
		Key:     []byte(c.CustomerID.String()),
		Value:   payload,
		Headers: map[string]string{messaging.HeaderEventType: eventType},
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("publish customer event", zap.String("type", eventType), zap.Error(err))
	}
}

func (s *Service) fromCache(ctx context.Context, id uuid.UUID) (*entity.Customer, error) {
	raw, err := s.cache.Get(ctx, CacheKey(id))
	if err != nil {
		return nil, err
	}
	var c entity.Customer
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) storeInCache(ctx context.Context, c *entity.Customer) {
	raw, err := json.Marshal(c)
	if err == nil {
		err = s.cache.Set(ctx, CacheKey(c.CustomerID), raw, s.cacheTTL)
	}
	if err != nil {
		s.logger.Warn("customer cache write failed", zap.Stringer("id", c.CustomerID), zap.Error(err))
	}
}

func (s *Service) evict(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Delete(ctx, CacheKey(id)); err != nil {
		s.logger.Warn("customer cache evict failed", zap.Stringer("id", id), zap.Error(err))
	}
}
