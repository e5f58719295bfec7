package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/seido/internal/config"
	"github.com/Additional-Code/seido/internal/database"
	"github.com/Additional-Code/seido/internal/entity"
	"github.com/Additional-Code/seido/internal/testutil"
)

func countCustomers(t *testing.T, conns *database.Connections) int {
	t.Helper()
	n, err := conns.Reader.NewSelect().Model((*entity.Customer)(nil)).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestSessionStagesUntilSave(t *testing.T) {
	ctx := context.Background()
	conns := testutil.OpenSQLite(t)
	s := database.NewSession(conns)
	defer s.Close()

	require.NoError(t, s.Add(entity.NewCustomer()))
	require.NoError(t, s.Add(entity.NewCustomer()))
	assert.Equal(t, 2, s.Pending())
	assert.Zero(t, countCustomers(t, conns))

	n, err := s.SaveChanges(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Zero(t, s.Pending())
	assert.Equal(t, 2, countCustomers(t, conns))
}

func TestSessionDiscard(t *testing.T) {
	conns := testutil.OpenSQLite(t)
	s := database.NewSession(conns)
	defer s.Close()

	require.NoError(t, s.Add(entity.NewCustomer()))
	s.Discard()

	n, err := s.SaveChanges(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, countCustomers(t, conns))
}

func TestSessionRollsBackOnGuardFailure(t *testing.T) {
	ctx := context.Background()
	conns := testutil.OpenSQLite(t)
	s := database.NewSession(conns)
	defer s.Close()

	boom := errors.New("boom")
	require.NoError(t, s.Add(entity.NewCustomer()))
	require.NoError(t, s.Guard(func(ctx context.Context, db bun.IDB) error { return boom }))

	_, err := s.SaveChanges(ctx)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, s.Pending())
	assert.Zero(t, countCustomers(t, conns))
}

func TestSessionRowCountMismatch(t *testing.T) {
	ctx := context.Background()
	conns := testutil.OpenSQLite(t)
	s := database.NewSession(conns)
	defer s.Close()

	require.NoError(t, s.Add(entity.NewCustomer()))
	require.NoError(t, s.Update(entity.NewCustomer()))

	_, err := s.SaveChanges(ctx)
	require.ErrorIs(t, err, database.ErrRowCount)

	var rcErr *database.RowCountError
	require.ErrorAs(t, err, &rcErr)
	assert.Equal(t, "update", rcErr.Op)
	assert.Equal(t, "customers", rcErr.Table)
	assert.EqualValues(t, 0, rcErr.Actual)
	assert.Zero(t, countCustomers(t, conns))
}

func TestSessionClose(t *testing.T) {
	conns := testutil.OpenSQLite(t)
	s := database.NewSession(conns)

	require.NoError(t, s.Add(entity.NewCustomer()))
	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	assert.Zero(t, s.Pending())

	require.ErrorIs(t, s.Add(entity.NewCustomer()), database.ErrSessionClosed)
	_, err := s.SaveChanges(context.Background())
	require.ErrorIs(t, err, database.ErrSessionClosed)
	require.ErrorIs(t, s.Close(), database.ErrSessionClosed)
}

func TestWithSessionReleases(t *testing.T) {
	conns := testutil.OpenSQLite(t)

	var captured *database.Session
	err := conns.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		captured = s
		return s.Add(entity.NewCustomer())
	})
	require.NoError(t, err)
	assert.True(t, captured.Closed())
	assert.Zero(t, countCustomers(t, conns))
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := database.Open(config.Database{Driver: "sqlite"})
	require.ErrorIs(t, err, config.ErrConfigurationMissing)

	_, err = database.Open(config.Database{Driver: "oracle", WriterDSN: "x"})
	require.Error(t, err)
}
