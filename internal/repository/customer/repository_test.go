package customer_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/Additional-Code/seido/internal/config"
	"github.com/Additional-Code/seido/internal/database"
	"github.com/Additional-Code/seido/internal/entity"
	"github.com/Additional-Code/seido/internal/repository/customer"
	"github.com/Additional-Code/seido/internal/testutil"
)

func newRepo(t *testing.T, policy string) (*customer.Repository, *database.Session, *database.Connections) {
	t.Helper()
	conns := testutil.OpenSQLite(t)
	session := database.NewSession(conns)
	t.Cleanup(func() { _ = session.Close() })
	return customer.NewRepository(session, policy), session, conns
}

func addOrders(t *testing.T, conns *database.Connections, customerID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		o := entity.NewOrder(customerID, decimal.NewFromInt(int64(10*(i+1))))
		_, err := conns.Writer.NewInsert().Model(o).Exec(context.Background())
		require.NoError(t, err)
	}
}

func orderCount(t *testing.T, conns *database.Connections) int {
	t.Helper()
	n, err := conns.Reader.NewSelect().Model((*entity.Order)(nil)).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestCreateReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, session, _ := newRepo(t, config.DeleteReject)

	created, err := repo.Create(ctx, entity.NewCustomer())
	require.NoError(t, err)
	assert.Zero(t, session.Pending())

	read, err := repo.Read(ctx, created.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, created.CustomerID, read.CustomerID)
	assert.Equal(t, created.FirstName, read.FirstName)
	assert.Equal(t, created.LastName, read.LastName)
}

func TestCreateAssignsID(t *testing.T) {
	repo, _, _ := newRepo(t, config.DeleteReject)

	created, err := repo.Create(context.Background(), &entity.Customer{FirstName: "Anna", LastName: "Berg"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.CustomerID)
}

func TestCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newRepo(t, config.DeleteReject)

	original, err := repo.Create(ctx, &entity.Customer{FirstName: "Anna", LastName: "Berg"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &entity.Customer{CustomerID: original.CustomerID, FirstName: "Other", LastName: "Name"})
	require.ErrorIs(t, err, customer.ErrAlreadyExists)

	read, err := repo.Read(ctx, original.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, "Anna", read.FirstName)
}

func TestReadNotFound(t *testing.T) {
	repo, _, _ := newRepo(t, config.DeleteReject)

	_, err := repo.Read(context.Background(), uuid.New())
	require.ErrorIs(t, err, customer.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newRepo(t, config.DeleteReject)

	c, err := repo.Create(ctx, &entity.Customer{FirstName: "Anna", LastName: "Berg"})
	require.NoError(t, err)

	changed := *c
	changed.FirstName += "_Updated"
	changed.LastName += "_Updated"
	updated, err := repo.Update(ctx, &changed)
	require.NoError(t, err)
	assert.Equal(t, "Anna_Updated", updated.FirstName)

	read, err := repo.Read(ctx, c.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, "Berg_Updated", read.LastName)
}

func TestUpdateWithIdenticalValues(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newRepo(t, config.DeleteReject)

	c, err := repo.Create(ctx, &entity.Customer{FirstName: "Anna", LastName: "Berg"})
	require.NoError(t, err)

	same := *c
	_, err = repo.Update(ctx, &same)
	require.NoError(t, err)

	read, err := repo.Read(ctx, c.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, c.FirstName, read.FirstName)
	assert.Equal(t, c.LastName, read.LastName)

	n, err := repo.ReadAll(ctx).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpdateNotFound(t *testing.T) {
	repo, _, _ := newRepo(t, config.DeleteReject)

	_, err := repo.Update(context.Background(), &entity.Customer{CustomerID: uuid.New(), FirstName: "x"})
	require.ErrorIs(t, err, customer.ErrNotFound)
}

func TestDeleteThenRead(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newRepo(t, config.DeleteReject)

	before, err := repo.ReadAll(ctx).Count(ctx)
	require.NoError(t, err)

	c, err := repo.Create(ctx, entity.NewCustomer())
	require.NoError(t, err)

	all, err := repo.ReadAll(ctx).List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, before+1)

	deleted, err := repo.Delete(ctx, c.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, c.CustomerID, deleted.CustomerID)
	assert.Equal(t, c.FirstName, deleted.FirstName)

	_, err = repo.Read(ctx, c.CustomerID)
	require.ErrorIs(t, err, customer.ErrNotFound)

	after, err := repo.ReadAll(ctx).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDeleteNotFound(t *testing.T) {
	repo, _, _ := newRepo(t, config.DeleteReject)

	_, err := repo.Delete(context.Background(), uuid.New())
	require.ErrorIs(t, err, customer.ErrNotFound)
}

func TestDeleteRejectsReferencedCustomer(t *testing.T) {
	ctx := context.Background()
	repo, _, conns := newRepo(t, config.DeleteReject)

	c, err := repo.Create(ctx, entity.NewCustomer())
	require.NoError(t, err)
	addOrders(t, conns, c.CustomerID, 2)

	_, err = repo.Delete(ctx, c.CustomerID)
	require.ErrorIs(t, err, customer.ErrReferenced)

	_, err = repo.Read(ctx, c.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, 2, orderCount(t, conns))
}

func TestDeleteCascadesOrders(t *testing.T) {
	ctx := context.Background()
	repo, _, conns := newRepo(t, config.DeleteCascade)

	keep, err := repo.Create(ctx, entity.NewCustomer())
	require.NoError(t, err)
	drop, err := repo.Create(ctx, entity.NewCustomer())
	require.NoError(t, err)
	addOrders(t, conns, keep.CustomerID, 1)
	addOrders(t, conns, drop.CustomerID, 3)

	_, err = repo.Delete(ctx, drop.CustomerID)
	require.NoError(t, err)

	assert.Equal(t, 1, orderCount(t, conns))
	_, err = repo.Read(ctx, drop.CustomerID)
	require.ErrorIs(t, err, customer.ErrNotFound)
}

func TestReadAllQuery(t *testing.T) {
	ctx := context.Background()
	repo, _, conns := newRepo(t, config.DeleteReject)

	for _, name := range []string{"Berg", "Lind", "Berg", "Olsson", "Berg"} {
		_, err := repo.Create(ctx, &entity.Customer{FirstName: "Kim", LastName: name})
		require.NoError(t, err)
	}

	all, err := repo.ReadAll(ctx).List(ctx)
	require.NoError(t, err)
	count, err := repo.ReadAll(ctx).Count(ctx)
	require.NoError(t, err)
	direct, err := conns.Reader.NewSelect().Model((*entity.Customer)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, len(all), count)
	assert.Equal(t, direct, count)

	first3, err := repo.ReadAll(ctx).Take(3).List(ctx)
	require.NoError(t, err)
	assert.Len(t, first3, 3)

	bergs := repo.ReadAll(ctx).Where("last_name = ?", "Berg")
	n, err := bergs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := bergs.Take(2).List(ctx)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	sorted, err := repo.ReadAll(ctx).OrderBy("last_name DESC").List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Olsson", sorted[0].LastName)

	skipped, err := repo.ReadAll(ctx).OrderBy("last_name DESC").Skip(1).Take(1).List(ctx)
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, "Lind", skipped[0].LastName)

	_, err = repo.ReadAll(ctx).Where("last_name = ?", "Nobody").First(ctx)
	require.ErrorIs(t, err, customer.ErrNotFound)
}

func TestReadAllSkipWithoutTake(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newRepo(t, config.DeleteReject)

	for _, name := range []string{"Berg", "Lind", "Olsson"} {
		_, err := repo.Create(ctx, &entity.Customer{FirstName: "Kim", LastName: name})
		require.NoError(t, err)
	}

	rest, err := repo.ReadAll(ctx).Skip(1).List(ctx)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	sorted, err := repo.ReadAll(ctx).OrderBy("last_name ASC").Skip(2).List(ctx)
	require.NoError(t, err)
	require.Len(t, sorted, 1)
	assert.Equal(t, "Olsson", sorted[0].LastName)

	none, err := repo.ReadAll(ctx).Skip(5).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)

	n, err := repo.ReadAll(ctx).Skip(1).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestClosedSession(t *testing.T) {
	ctx := context.Background()
	repo, session, _ := newRepo(t, config.DeleteReject)
	require.NoError(t, session.Close())

	_, err := repo.Create(ctx, entity.NewCustomer())
	require.ErrorIs(t, err, database.ErrSessionClosed)
	_, err = repo.Read(ctx, uuid.New())
	require.ErrorIs(t, err, database.ErrSessionClosed)
	_, err = repo.ReadAll(ctx).List(ctx)
	require.ErrorIs(t, err, database.ErrSessionClosed)
}

func newMockRepo(t *testing.T) (*customer.Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	session := database.NewSession(&database.Connections{Writer: db, Reader: db, Driver: "sqlite"})
	return customer.NewRepository(session, config.DeleteCascade), mock
}

func TestUpdateZeroRowsIsWriteFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM "customers"`).
		WillReturnRows(sqlmock.NewRows([]string{"customer_id", "first_name", "last_name"}).AddRow(id.String(), "Anna", "Berg"))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "customers"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), &entity.Customer{CustomerID: id, FirstName: "Anna", LastName: "Lind"})
	require.ErrorIs(t, err, customer.ErrWriteFailed)
	require.ErrorIs(t, err, database.ErrRowCount)
	assert.NotErrorIs(t, err, customer.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateZeroRowsIsWriteFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO "customers"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), &entity.Customer{FirstName: "Anna", LastName: "Berg"})
	require.ErrorIs(t, err, customer.ErrWriteFailed)
	require.ErrorIs(t, err, database.ErrRowCount)
	assert.NotErrorIs(t, err, customer.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteZeroRowsIsWriteFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM "customers"`).
		WillReturnRows(sqlmock.NewRows([]string{"customer_id", "first_name", "last_name"}).AddRow(id.String(), "Anna", "Berg"))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "orders"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM "customers"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Delete(context.Background(), id)
	require.ErrorIs(t, err, customer.ErrWriteFailed)
	require.NoError(t, mock.ExpectationsWereMet())
}
