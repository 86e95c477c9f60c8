package router

import (
	"github.com/vkazmirchuk/tagmate/core/logger"
	tg "github.com/vkazmirchuk/tagmate/core/telegram"
	"github.com/vkazmirchuk/tagmate/core/telegram/middleware"
	"log/slog"
)

// CommandRoutes prepares command handlers wrapped with shared middleware.
// Permission checks are NOT applied here: chat-scoped admin checks depend
// on live platform state and are performed explicitly at the top of each
// handler that needs them.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		h := def.Handler
		h = middleware.RecoverMiddleware(h)
		h = middleware.LoggerMiddleware(h)
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  h,
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
	)

	return routes
}
