package customer

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/currency"

	"github.com/Additional-Code/seido/internal/config"
	"github.com/Additional-Code/seido/internal/dto"
	"github.com/Additional-Code/seido/internal/entity"
	"github.com/Additional-Code/seido/internal/presentation/http/request"
	"github.com/Additional-Code/seido/internal/presentation/http/response"
	customersvc "github.com/Additional-Code/seido/internal/service/customer"
	"github.com/Additional-Code/seido/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/seido/transport/http/customer")

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Service is the customer use-case surface the handler depends on.
type Service interface {
	List(ctx context.Context, limit, offset int) (customersvc.Page, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Customer, error)
	Create(ctx context.Context, firstName, lastName string) (*entity.Customer, error)
	Update(ctx context.Context, id uuid.UUID, firstName, lastName string) (*entity.Customer, error)
	Delete(ctx context.Context, id uuid.UUID) (*entity.Customer, error)
	Orders(ctx context.Context, id uuid.UUID) ([]entity.Order, error)
}

// Handler exposes customer endpoints over HTTP.
type Handler struct {
	svc  Service
	unit currency.Unit
}

// NewHandler constructs a customer Handler.
func NewHandler(svc *customersvc.Service, cfg config.Config) *Handler {
	return newHandler(svc, cfg.Report.Currency)
}

func newHandler(svc Service, unit currency.Unit) *Handler {
	return &Handler{svc: svc, unit: unit}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/customers")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/orders", h.orders)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	limit, err := queryInt(c, "limit", defaultLimit)
	if err != nil {
		return b.WithError(err).Build()
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return b.WithError(err).Build()
	}
	limit = min(max(limit, 1), maxLimit)

	ctx, span := httpTracer.Start(c.Request().Context(), "customers.list", trace.WithAttributes(
		attribute.Int("page.limit", limit),
		attribute.Int("page.offset", offset),
	))
	defer span.End()

	page, err := h.svc.List(ctx, limit, offset)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewCustomerResponses(page.Customers)).WithPage(page.Total, page.Limit, page.Offset).Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	ctx, span := h.start(c, "customers.get", id)
	defer span.End()

	found, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewCustomerResponse(found)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CustomerRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "customers.create")
	defer span.End()

	created, err := h.svc.Create(ctx, payload.FirstName, payload.LastName)
	if err != nil {
		return b.WithError(err).Build()
	}
	c.Response().Header().Set(echo.HeaderLocation, "/customers/"+created.CustomerID.String())
	return b.WithStatus(http.StatusCreated).WithData(dto.NewCustomerResponse(created)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.CustomerRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := h.start(c, "customers.update", id)
	defer span.End()

	updated, err := h.svc.Update(ctx, id, payload.FirstName, payload.LastName)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewCustomerResponse(updated)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	ctx, span := h.start(c, "customers.delete", id)
	defer span.End()

	deleted, err := h.svc.Delete(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewCustomerResponse(deleted)).Build()
}

func (h *Handler) orders(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	ctx, span := h.start(c, "customers.orders", id)
	defer span.End()

	orders, err := h.svc.Orders(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponses(orders, h.unit)).WithMeta("count", len(orders)).Build()
}

func (h *Handler) start(c echo.Context, name string, id uuid.UUID) (context.Context, trace.Span) {
	return httpTracer.Start(c.Request().Context(), name, trace.WithAttributes(attribute.String("customer.id", id.String())))
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, errorbank.BadRequest("invalid customer id", errorbank.WithCause(err))
	}
	return id, nil
}

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errorbank.BadRequest("invalid "+name, errorbank.WithDetail(name, raw))
	}
	return n, nil
}
