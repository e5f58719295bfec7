package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/seido/internal/config"
	"github.com/Additional-Code/seido/internal/database"
	"github.com/Additional-Code/seido/internal/observability"
	"github.com/Additional-Code/seido/internal/presentation/http/request"
	"github.com/Additional-Code/seido/internal/presentation/http/response"
	"github.com/Additional-Code/seido/pkg/errorbank"
)

// Module exposes the HTTP server lifecycle to Fx.
var Module = fx.Module("http_server",
	fx.Provide(NewEcho),
	fx.Invoke(Run),
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewEcho configures the Echo router with middleware, validation and health routes.
func NewEcho(cfg config.Config, obs *observability.Manager, conns *database.Connections, logger *zap.Logger) *echo.Echo {
	e := newRouter(conns, logger)
	if obs.TracingEnabled() {
		e.Use(otelecho.Middleware(cfg.Observability.ServiceName))
	}
	if h := obs.MetricsHandler(); h != nil {
		e.GET(obs.PrometheusPath(), echo.WrapHandler(h))
	}
	return e
}

func newRouter(db Pinger, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = request.NewValidator()
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			kind := errorbank.KindInternal
			switch he.Code {
			case http.StatusNotFound:
				kind = errorbank.KindNotFound
			case http.StatusBadRequest, http.StatusMethodNotAllowed:
				kind = errorbank.KindBadRequest
			}
			err = errorbank.New(kind, http.StatusText(he.Code), errorbank.WithCause(err))
			_ = response.New(c).WithStatus(he.Code).WithError(err).Build()
			return
		}
		logger.Error("http request failed", zap.String("path", c.Path()), zap.Error(err))
		_ = response.New(c).WithError(err).Build()
	}

	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		b := response.New(c)
		if err := db.Ping(ctx); err != nil {
			return b.WithError(errorbank.Unavailable("database unreachable", errorbank.WithCause(err))).Build()
		}
		return b.WithData(map[string]string{"status": "ok"}).Build()
	})

	return e
}

// Run starts the HTTP server and ties it to the Fx lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, e *echo.Echo, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting HTTP server", zap.String("addr", addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return server.Shutdown(ctx)
		},
	})
}
