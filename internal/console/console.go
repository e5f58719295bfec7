// Package console prints the demonstration report: dataset counts, relational
// queries and a customer CRUD round trip.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/seido/internal/config"
	"github.com/Additional-Code/seido/internal/database"
	"github.com/Additional-Code/seido/internal/entity"
	"github.com/Additional-Code/seido/internal/report"
	customerrepo "github.com/Additional-Code/seido/internal/repository/customer"
)

// ErrCheckFailed is returned when a CRUD round trip reads back something other
// than what it wrote.
var ErrCheckFailed = errors.New("crud check failed")

const updatedSuffix = "_Updated"

// Module provides the console to Fx.
var Module = fx.Provide(New)

// Console writes report sections to an io.Writer.
type Console struct {
	conns    *database.Connections
	reporter *report.Reporter
	db       config.Database
	policy   string
	topN     int
	out      io.Writer
	logger   *zap.Logger
}

// Params defines dependencies for constructing Console.
type Params struct {
	fx.In

	Conns    *database.Connections
	Reporter *report.Reporter
	Config   config.Config
	Logger   *zap.Logger
	Out      io.Writer `optional:"true"`
}

// New wires a Console. Output goes to io.Discard unless Out is supplied.
func New(p Params) *Console {
	out := p.Out
	if out == nil {
		out = io.Discard
	}
	return &Console{
		conns:    p.Conns,
		reporter: p.Reporter,
		db:       p.Config.Database,
		policy:   p.Config.Customers.DeletePolicy,
		topN:     max(p.Config.Report.TopOrders, 1),
		out:      out,
		logger:   p.Logger,
	}
}

// WithOutput returns a copy of c writing to w.
func (c *Console) WithOutput(w io.Writer) *Console {
	cp := *c
	cp.out = w
	return &cp
}

// Run prints every section in order and stops at the first error.
func (c *Console) Run(ctx context.Context) error {
	c.Connection()
	for _, section := range []func(context.Context) error{c.Counts, c.Queries, c.CRUD} {
		if err := section(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Connection prints the driver and the DSN with any password masked.
func (c *Console) Connection() {
	c.printf("Database driver: %s\n", c.db.Driver)
	c.printf("Connection string to Database: %s\n", RedactDSN(c.db.Driver, c.db.WriterDSN))
}

// Counts prints the number of customers and orders.
func (c *Console) Counts(ctx context.Context) error {
	c.heading("Query Database")

	customers, err := c.reporter.CustomerCount(ctx)
	if err != nil {
		return err
	}
	orders, err := c.reporter.OrderCount(ctx)
	if err != nil {
		return err
	}
	c.printf("Nr of Customers: %d\n", customers)
	c.printf("Nr of Orders: %d\n", orders)
	return nil
}

// Queries prints the aggregate, ordering and join results.
func (c *Console) Queries(ctx context.Context) error {
	c.heading("Query Database with joins")

	summary, err := c.reporter.Summary(ctx)
	if err != nil {
		return err
	}
	c.printf("Nr of orders: %d\n", summary.Orders)
	c.printf("Total order value: %s\n", summary.TotalText)

	top, err := c.reporter.TopOrders(ctx, c.topN)
	if err != nil {
		return err
	}
	c.printf("\nTop %d orders:\n", c.topN)
	for _, o := range top {
		c.printf("%s  %s\n", o, o.Total(c.reporter.Currency()))
	}

	p := summary.Partition
	c.printf("\nOuterJoin: Customer - Order via GroupJoin by Customer, Count: %d\n", p.WithOrders+p.WithoutOrders)
	c.printf("GroupJoin with Order list Count == 0: %d\n", p.WithoutOrders)
	c.printf("GroupJoin with Order list Count != 0: %d\n", p.WithOrders)
	c.printf("InnerJoin Customer - Order via Join, Count: %d\n", summary.JoinedRows)
	return nil
}

// CRUD exercises the customer repository on one session and prints each step.
// Read-back mismatches are reported and returned as ErrCheckFailed.
func (c *Console) CRUD(ctx context.Context) error {
	c.heading("Query Database CRUD")

	var failures []string
	check := func(ok bool, pass, fail string) {
		if ok {
			c.printf("%s\n", pass)
			return
		}
		c.printf("ERROR: %s\n", fail)
		failures = append(failures, fail)
	}

	err := c.conns.WithSession(ctx, func(ctx context.Context, session *database.Session) error {
		repo := customerrepo.NewRepository(session, c.policy)

		c.printf("Testing ReadAll()\n")
		all, err := repo.ReadAll(ctx).OrderBy("last_name, first_name, customer_id").List(ctx)
		if err != nil {
			return err
		}
		c.printf("Nr of Customers %d\n", len(all))
		c.printf("\nFirst 5 Customers\n")
		for _, cust := range all[:min(5, len(all))] {
			c.printf("%s\n", cust)
		}

		if len(all) == 0 {
			c.printf("\nNo customers stored; skipping Read and Update\n")
		} else {
			last := all[len(all)-1]

			c.printf("\nTesting Read()\n")
			read, err := repo.Read(ctx, last.CustomerID)
			if err != nil {
				return err
			}
			c.printf("Last Customer.\n%s\n", last)
			c.printf("Read Customer with CustomerID == Last Customer\n%s\n", read)
			check(*read == last, "Customers Equal", "customers not equal after read")

			c.printf("\nTesting Update()\n")
			read.FirstName += updatedSuffix
			read.LastName += updatedSuffix
			updated, err := repo.Update(ctx, read)
			if err != nil {
				return err
			}
			c.printf("Last Customer with updated names.\n%s\n", updated)

			updated.FirstName = strings.TrimSuffix(updated.FirstName, updatedSuffix)
			updated.LastName = strings.TrimSuffix(updated.LastName, updatedSuffix)
			restored, err := repo.Update(ctx, updated)
			if err != nil {
				return err
			}
			c.printf("Last Customer with restored names.\n%s\n", restored)
			check(*restored == last, "Customers Equal", "customer not restored after update")
		}

		c.printf("\nTesting Create()\n")
		fresh := *entity.NewCustomer()
		inserted, err := repo.Create(ctx, &entity.Customer{CustomerID: fresh.CustomerID, FirstName: fresh.FirstName, LastName: fresh.LastName})
		if err != nil {
			return err
		}
		stored, err := repo.Read(ctx, fresh.CustomerID)
		if err != nil {
			return err
		}
		c.printf("Customer created.\n%s\n", fresh)
		c.printf("Customer Inserted in Db.\n%s\n", inserted)
		c.printf("Customer Read from Db.\n%s\n", stored)
		check(*inserted == fresh && *stored == fresh, "Customers Equal", "customers not equal after create")

		c.printf("\nTesting Delete()\n")
		deleted, err := repo.Delete(ctx, fresh.CustomerID)
		if err != nil {
			return err
		}
		c.printf("Customer to delete.\n%s\n", fresh)
		c.printf("Deleted Customer.\n%s\n", deleted)
		check(*deleted == fresh, "Customer Equal", "deleted customer differs from created")

		_, err = repo.Read(ctx, fresh.CustomerID)
		switch {
		case errors.Is(err, customerrepo.ErrNotFound):
			c.printf("Customer confirmed removed from Db\n")
		case err != nil:
			return err
		default:
			check(false, "", "customer not removed")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		c.logger.Warn("crud round trip mismatches", zap.Strings("failures", failures))
		return fmt.Errorf("%w: %s", ErrCheckFailed, strings.Join(failures, "; "))
	}
	return nil
}

// RedactDSN masks the password in a connection string.
func RedactDSN(driver, dsn string) string {
	switch driver {
	case "mysql":
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil || cfg.Passwd == "" {
			return dsn
		}
		cfg.Passwd = "xxxxx"
		return cfg.FormatDSN()
	case "postgres":
		u, err := url.Parse(dsn)
		if err != nil || u.User == nil {
			return dsn
		}
		return u.Redacted()
	default:
		return dsn
	}
}

func (c *Console) heading(title string) {
	c.printf("\n\n%s\n%s\n", title, strings.Repeat("-", len(title)))
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
