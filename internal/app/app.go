package app

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Additional-Code/seido/internal/cache"
	"github.com/Additional-Code/seido/internal/config"
	"github.com/Additional-Code/seido/internal/console"
	"github.com/Additional-Code/seido/internal/database"
	"github.com/Additional-Code/seido/internal/logger"
	"github.com/Additional-Code/seido/internal/messaging"
	"github.com/Additional-Code/seido/internal/migration"
	"github.com/Additional-Code/seido/internal/observability"
	"github.com/Additional-Code/seido/internal/report"
	"github.com/Additional-Code/seido/internal/seeder"
	grpcserver "github.com/Additional-Code/seido/internal/server/grpc"
	httpserver "github.com/Additional-Code/seido/internal/server/http"
	servicecustomer "github.com/Additional-Code/seido/internal/service/customer"
	transporthttp "github.com/Additional-Code/seido/internal/transport/http"
	"github.com/Additional-Code/seido/internal/worker"
	workercustomer "github.com/Additional-Code/seido/internal/worker/customer"
)

// Storage is the minimum needed to talk to the database.
var Storage = fx.Options(
	config.Module,
	logger.Module,
	database.Module,
)

// Tools adds the one-shot console components: migrations, seeding and reports.
var Tools = fx.Options(
	Storage,
	migration.Module,
	seeder.Module,
	report.Module,
	console.Module,
)

// Core provides the modules shared by the long-running executables.
var Core = fx.Options(
	Storage,
	fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: l.Named("fx")}
	}),
	cache.Module,
	messaging.Module,
	observability.Module,
	report.Module,
	servicecustomer.Module,
)

// HTTP wires the HTTP and gRPC servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
	grpcserver.Module,
)

// Worker exposes background event processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workercustomer.Module,
)

// Module is the default application wiring.
var Module = HTTP
