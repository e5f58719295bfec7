package seeder

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/seido/internal/database"
	"github.com/Additional-Code/seido/internal/entity"
	orderrepo "github.com/Additional-Code/seido/internal/repository/order"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Result reports what a seed run inserted.
type Result struct {
	Customers int
	Orders    int
}

// Seeder fills the database with random customers and orders.
type Seeder struct {
	conns  *database.Connections
	logger *zap.Logger
	rnd    *rand.Rand
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{
		conns:  conns,
		logger: logger,
		rnd:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// WithRand replaces the random source. A seeded source reproduces customer
// names, order ownership and order values; identifiers stay random.
func (s *Seeder) WithRand(rnd *rand.Rand) *Seeder {
	s.rnd = rnd
	return s
}

// Seed inserts customers and orders in one unit of work. Each order belongs to
// a customer drawn uniformly from the customers created by this run.
func (s *Seeder) Seed(ctx context.Context, customers, orders int) (Result, error) {
	if customers < 0 || orders < 0 {
		return Result{}, errors.New("seed sizes must not be negative")
	}
	if orders > 0 && customers == 0 {
		return Result{}, errors.New("orders need at least one customer")
	}

	err := s.conns.WithSession(ctx, func(ctx context.Context, session *database.Session) error {
		created := make([]*entity.Customer, 0, customers)
		for i := 0; i < customers; i++ {
			c := entity.NewCustomerFrom(s.rnd)
			if err := session.Add(c); err != nil {
				return err
			}
			created = append(created, c)
		}

		orderRepo := orderrepo.NewRepository(session)
		for i := 0; i < orders; i++ {
			owner := created[s.rnd.IntN(len(created))]
			value := decimal.New(100+s.rnd.Int64N(100_000), -2)
			if err := orderRepo.Stage(entity.NewOrder(owner.CustomerID, value)); err != nil {
				return err
			}
		}

		_, err := session.SaveChanges(ctx)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	if s.logger != nil {
		s.logger.Info("seeded database", zap.Int("customers", customers), zap.Int("orders", orders))
	}
	return Result{Customers: customers, Orders: orders}, nil
}

// SeedIfEmpty seeds only when no customer is stored yet.
func (s *Seeder) SeedIfEmpty(ctx context.Context, customers, orders int) (Result, bool, error) {
	n, err := s.conns.Reader.NewSelect().Model((*entity.Customer)(nil)).Count(ctx)
	if err != nil {
		return Result{}, false, err
	}
	if n > 0 {
		return Result{}, false, nil
	}
	res, err := s.Seed(ctx, customers, orders)
	return res, err == nil, err
}
