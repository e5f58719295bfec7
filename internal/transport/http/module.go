package http

import (
	"go.uber.org/fx"

	customertransport "github.com/Additional-Code/seido/internal/transport/http/customer"
	reporttransport "github.com/Additional-Code/seido/internal/transport/http/report"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	customertransport.Module,
	reporttransport.Module,
)
