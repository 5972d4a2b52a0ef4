package http

import (
	"go.uber.org/fx"

	"crosspost-connect/internal/delivery/http/handler"
	"crosspost-connect/internal/delivery/http/router"
)

var Module = fx.Module("http",
	fx.Provide(
		handler.NewHealthHandler,
		handler.NewConnectionHandler,
		handler.NewLogHandler,
		router.NewRouter,
	),
)
