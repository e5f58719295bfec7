package report

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/currency"

	"github.com/Additional-Code/seido/internal/config"
	"github.com/Additional-Code/seido/internal/dto"
	"github.com/Additional-Code/seido/internal/entity"
	"github.com/Additional-Code/seido/internal/presentation/http/response"
	"github.com/Additional-Code/seido/internal/report"
	"github.com/Additional-Code/seido/pkg/errorbank"
)

const maxRows = 1000

// Reporter is the read-only query surface the handler depends on.
type Reporter interface {
	Currency() currency.Unit
	Summary(ctx context.Context) (report.Summary, error)
	TopOrders(ctx context.Context, n int) ([]entity.Order, error)
	InnerJoin(ctx context.Context, limit int) ([]report.CustomerOrderRow, error)
}

// Handler exposes reporting endpoints over HTTP.
type Handler struct {
	reporter  Reporter
	topOrders int
}

// NewHandler constructs a report Handler. topOrders is the default n for /reports/top-orders.
func NewHandler(reporter *report.Reporter, cfg config.Config) *Handler {
	return newHandler(reporter, cfg.Report.TopOrders)
}

func newHandler(reporter Reporter, topOrders int) *Handler {
	return &Handler{reporter: reporter, topOrders: max(topOrders, 1)}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/reports")
	g.GET("/summary", h.summary)
	g.GET("/top-orders", h.top)
	g.GET("/customer-orders", h.customerOrders)
}

func (h *Handler) summary(c echo.Context) error {
	b := response.New(c)
	s, err := h.reporter.Summary(c.Request().Context())
	if err != nil {
		return b.WithError(errorbank.Internal("failed to build summary", errorbank.WithCause(err))).Build()
	}
	return b.WithData(s).Build()
}

func (h *Handler) top(c echo.Context) error {
	b := response.New(c)
	n, err := rowsParam(c, "n", h.topOrders)
	if err != nil {
		return b.WithError(err).Build()
	}
	orders, err := h.reporter.TopOrders(c.Request().Context(), n)
	if err != nil {
		return b.WithError(errorbank.Internal("failed to load top orders", errorbank.WithCause(err))).Build()
	}
	return b.WithData(dto.NewOrderResponses(orders, h.reporter.Currency())).WithMeta("n", n).Build()
}

func (h *Handler) customerOrders(c echo.Context) error {
	b := response.New(c)
	limit, err := rowsParam(c, "limit", 50)
	if err != nil {
		return b.WithError(err).Build()
	}
	rows, err := h.reporter.InnerJoin(c.Request().Context(), limit)
	if err != nil {
		return b.WithError(errorbank.Internal("failed to join customers and orders", errorbank.WithCause(err))).Build()
	}
	if rows == nil {
		rows = []report.CustomerOrderRow{}
	}
	return b.WithData(rows).WithMeta("limit", limit).Build()
}

func rowsParam(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxRows {
		return 0, errorbank.BadRequest("invalid "+name, errorbank.WithDetail(name, raw), errorbank.WithDetail("max", maxRows))
	}
	return n, nil
}
