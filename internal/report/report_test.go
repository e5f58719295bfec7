package report_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/currency"

	"github.com/Additional-Code/seido/internal/config"
	"github.com/Additional-Code/seido/internal/database"
	"github.com/Additional-Code/seido/internal/entity"
	"github.com/Additional-Code/seido/internal/report"
	"github.com/Additional-Code/seido/internal/seeder"
	"github.com/Additional-Code/seido/internal/testutil"
)

func newReporter(conns *database.Connections) *report.Reporter {
	return report.NewReporter(conns, config.Config{Report: config.Report{Currency: currency.USD}})
}

// fixture stores three customers: anna with two orders, bo with one, cay with none.
func fixture(t *testing.T) (*database.Connections, map[string]*entity.Customer) {
	t.Helper()
	ctx := context.Background()
	conns := testutil.OpenSQLite(t)

	people := map[string]*entity.Customer{
		"anna": {FirstName: "Anna", LastName: "Andersson"},
		"bo":   {FirstName: "Bo", LastName: "Berg"},
		"cay":  {FirstName: "Cay", LastName: "Carlsson"},
	}
	for _, c := range people {
		c.CustomerID = entity.NewCustomer().CustomerID
		_, err := conns.Writer.NewInsert().Model(c).Exec(ctx)
		require.NoError(t, err)
	}
	orders := []*entity.Order{
		entity.NewOrder(people["anna"].CustomerID, decimal.RequireFromString("10.25")),
		entity.NewOrder(people["anna"].CustomerID, decimal.RequireFromString("20.50")),
		entity.NewOrder(people["bo"].CustomerID, decimal.RequireFromString("5.00")),
	}
	for _, o := range orders {
		_, err := conns.Writer.NewInsert().Model(o).Exec(ctx)
		require.NoError(t, err)
	}
	return conns, people
}

func TestCountsAndTotal(t *testing.T) {
	ctx := context.Background()
	conns, _ := fixture(t)
	r := newReporter(conns)

	customers, err := r.CustomerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, customers)

	orders, err := r.OrderCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, orders)

	total, err := r.OrderTotal(ctx)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("35.75")), "got %s", total)
}

func TestOrderTotalEmpty(t *testing.T) {
	r := newReporter(testutil.OpenSQLite(t))

	total, err := r.OrderTotal(context.Background())
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestTopOrders(t *testing.T) {
	ctx := context.Background()
	conns, _ := fixture(t)
	r := newReporter(conns)

	top, err := r.TopOrders(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.True(t, top[0].Value.Equal(decimal.RequireFromString("20.50")))
	assert.True(t, top[1].Value.Equal(decimal.RequireFromString("10.25")))

	all, err := r.TopOrders(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := r.TopOrders(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGroupJoinAndPartition(t *testing.T) {
	ctx := context.Background()
	conns, people := fixture(t)
	r := newReporter(conns)

	groups, err := r.GroupJoin(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 3)

	byID := map[string]int{}
	for _, g := range groups {
		byID[g.CustomerID.String()] = len(g.Orders)
	}
	assert.Equal(t, 2, byID[people["anna"].CustomerID.String()])
	assert.Equal(t, 1, byID[people["bo"].CustomerID.String()])
	assert.Equal(t, 0, byID[people["cay"].CustomerID.String()])

	p, err := r.Partition(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.Partition{WithOrders: 2, WithoutOrders: 1}, p)
}

func TestInnerJoin(t *testing.T) {
	ctx := context.Background()
	conns, people := fixture(t)
	r := newReporter(conns)

	rows, err := r.InnerJoin(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.NotEqual(t, people["cay"].CustomerID, row.CustomerID)
	}
	assert.Equal(t, "Andersson", rows[0].LastName)
	assert.True(t, rows[0].Value.Equal(decimal.RequireFromString("20.50")))

	limited, err := r.InnerJoin(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := r.InnerJoinCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSummaryReferenceScenario(t *testing.T) {
	ctx := context.Background()
	conns := testutil.OpenSQLite(t)
	_, err := seeder.New(conns, zap.NewNop()).Seed(ctx, 100, 500)
	require.NoError(t, err)

	s, err := newReporter(conns).Summary(ctx)
	require.NoError(t, err)

	assert.Equal(t, 100, s.Customers)
	assert.Equal(t, 500, s.Orders)
	assert.Equal(t, 500, s.JoinedRows)
	assert.Equal(t, 100, s.Partition.WithOrders+s.Partition.WithoutOrders)
	assert.True(t, s.Total.IsPositive())
	assert.Contains(t, s.TotalText, "$")
}
