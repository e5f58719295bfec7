package order_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/seido/internal/database"
	"github.com/Additional-Code/seido/internal/entity"
	"github.com/Additional-Code/seido/internal/repository/order"
	"github.com/Additional-Code/seido/internal/testutil"
)

func setup(t *testing.T) (*order.Repository, *database.Connections, *entity.Customer) {
	t.Helper()
	conns := testutil.OpenSQLite(t)
	c := entity.NewCustomer()
	_, err := conns.Writer.NewInsert().Model(c).Exec(context.Background())
	require.NoError(t, err)

	session := database.NewSession(conns)
	t.Cleanup(func() { _ = session.Close() })
	return order.NewRepository(session), conns, c
}

func TestCreateAndRead(t *testing.T) {
	ctx := context.Background()
	repo, _, c := setup(t)

	created, err := repo.Create(ctx, entity.NewOrder(c.CustomerID, decimal.RequireFromString("99.50")))
	require.NoError(t, err)

	read, err := repo.Read(ctx, created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, c.CustomerID, read.CustomerID)
	assert.True(t, read.Value.Equal(decimal.RequireFromString("99.5")), "got %s", read.Value)
}

func TestCreateRequiresExistingCustomer(t *testing.T) {
	ctx := context.Background()
	repo, conns, _ := setup(t)

	_, err := repo.Create(ctx, entity.NewOrder(uuid.New(), decimal.NewFromInt(5)))
	require.ErrorIs(t, err, order.ErrCustomerMissing)

	n, err := conns.Reader.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReadNotFound(t *testing.T) {
	repo, _, _ := setup(t)

	_, err := repo.Read(context.Background(), uuid.New())
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestListByCustomer(t *testing.T) {
	ctx := context.Background()
	repo, _, c := setup(t)

	for _, v := range []int64{10, 30, 20} {
		_, err := repo.Create(ctx, entity.NewOrder(c.CustomerID, decimal.NewFromInt(v)))
		require.NoError(t, err)
	}

	orders, err := repo.ListByCustomer(ctx, c.CustomerID)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.True(t, orders[0].Value.Equal(decimal.NewFromInt(30)))
	assert.True(t, orders[2].Value.Equal(decimal.NewFromInt(10)))

	none, err := repo.ListByCustomer(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}
