package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

var (
	// ErrSessionClosed is returned when staging or committing on a closed Session.
	ErrSessionClosed = errors.New("session closed")
	// ErrRowCount is returned when a staged change affects an unexpected number of rows.
	ErrRowCount = errors.New("unexpected affected row count")
)

// AnyRows marks a staged change whose row count is not checked.
const AnyRows int64 = -1

// RowCountError describes the staged change that failed its row count check.
type RowCountError struct {
	Op       string
	Table    string
	Expected int64
	Actual   int64
}

func (e *RowCountError) Error() string {
	return fmt.Sprintf("%s %s: expected %d row(s), affected %d", e.Op, e.Table, e.Expected, e.Actual)
}

// Is lets errors.Is match ErrRowCount.
func (e *RowCountError) Is(target error) bool {
	return target == ErrRowCount
}

type change struct {
	op     string
	table  string
	expect int64
	exec   func(ctx context.Context, tx bun.Tx) (int64, error)
}

// Session is a unit of work over the configured connections.
//
// Writes are staged in memory by Add, Update, Remove, RemoveWhere and Guard and
// reach the database only when SaveChanges commits them in a single
// transaction. A Session is not safe for concurrent use; acquire one per
// logical operation and Close it when done.
type Session struct {
	conns   *Connections
	pending []change
	closed  bool
}

// NewSession opens a unit of work on conns.
func NewSession(conns *Connections) *Session {
	return &Session{conns: conns}
}

// WithSession runs fn with a fresh Session and always closes it afterwards.
func (c *Connections) WithSession(ctx context.Context, fn func(context.Context, *Session) error) error {
	s := NewSession(c)
	defer s.Close()
	return fn(ctx, s)
}

// Select starts a read query for model on the reader connection.
func (s *Session) Select(model any) *bun.SelectQuery {
	return s.conns.Reader.NewSelect().Model(model)
}

// Add stages an insert of model.
func (s *Session) Add(model any) error {
	return s.stage(change{op: "insert", table: tableName(s.conns.Writer, model), expect: 1,
		exec: func(ctx context.Context, tx bun.Tx) (int64, error) {
			return rowsAffected(tx.NewInsert().Model(model).Exec(ctx))
		}})
}

// Update stages an update of every non-key column of model, matched by primary key.
func (s *Session) Update(model any) error {
	return s.stage(change{op: "update", table: tableName(s.conns.Writer, model), expect: 1,
		exec: func(ctx context.Context, tx bun.Tx) (int64, error) {
			return rowsAffected(tx.NewUpdate().Model(model).WherePK().Exec(ctx))
		}})
}

// Remove stages a delete of model, matched by primary key.
func (s *Session) Remove(model any) error {
	return s.stage(change{op: "delete", table: tableName(s.conns.Writer, model), expect: 1,
		exec: func(ctx context.Context, tx bun.Tx) (int64, error) {
			return rowsAffected(tx.NewDelete().Model(model).WherePK().Exec(ctx))
		}})
}

// RemoveWhere stages a delete of every row of model's table matching where.
func (s *Session) RemoveWhere(model any, where string, args ...any) error {
	return s.stage(change{op: "delete", table: tableName(s.conns.Writer, model), expect: AnyRows,
		exec: func(ctx context.Context, tx bun.Tx) (int64, error) {
			return rowsAffected(tx.NewDelete().Model(model).Where(where, args...).Exec(ctx))
		}})
}

// Guard stages a check that runs inside the commit transaction, in order with
// the other staged changes. A non-nil error from fn aborts the commit.
func (s *Session) Guard(fn func(ctx context.Context, tx bun.IDB) error) error {
	return s.stage(change{op: "guard", expect: AnyRows,
		exec: func(ctx context.Context, tx bun.Tx) (int64, error) {
			return 0, fn(ctx, tx)
		}})
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed
}

// Pending reports the number of staged changes.
func (s *Session) Pending() int {
	return len(s.pending)
}

// Discard drops staged changes without touching the database.
func (s *Session) Discard() {
	s.pending = nil
}

// SaveChanges commits every staged change in one transaction and returns the
// total number of affected rows. Nothing is applied when any change fails.
// Staged changes are cleared whether or not the commit succeeds.
func (s *Session) SaveChanges(ctx context.Context) (int64, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}
	pending := s.pending
	s.pending = nil
	if len(pending) == 0 {
		return 0, nil
	}

	var total int64
	err := s.conns.Writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		total = 0
		for _, c := range pending {
			n, err := c.exec(ctx, tx)
			if err != nil {
				if c.op == "guard" {
					return err
				}
				return fmt.Errorf("%s %s: %w", c.op, c.table, err)
			}
			if c.expect != AnyRows && n != c.expect {
				return &RowCountError{Op: c.op, Table: c.table, Expected: c.expect, Actual: n}
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Close discards staged changes and invalidates the session.
func (s *Session) Close() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.pending = nil
	s.closed = true
	return nil
}

func (s *Session) stage(c change) error {
	if s.closed {
		return ErrSessionClosed
	}
	s.pending = append(s.pending, c)
	return nil
}

func rowsAffected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func tableName(db *bun.DB, model any) string {
	if name := db.NewSelect().Model(model).GetTableName(); name != "" {
		return name
	}
	return fmt.Sprintf("%T", model)
}
