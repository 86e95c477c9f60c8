package router

import (
	"time"

	tg "github.com/vkazmirchuk/tagmate/core/telegram"
	"github.com/vkazmirchuk/tagmate/core/telegram/middleware"
	"github.com/vkazmirchuk/tagmate/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// FSM defines the minimal interface required from the session manager.
type FSM interface {
	InProgress(key state.Key) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for plain-text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the plain-text route. Commands are matched by the
// transport before OnText fires, so a fresh command always wins over an
// open dialog; everything else is treated as a dialog continuation when
// a session is open for this (chat, user), and is inert otherwise.
func TextRoutes(fsmMgr FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if fsmMgr != nil && fsmMgr.InProgress(state.KeyFor(c)) {
			return handleWithSummary(c, "fsm", start, "", "", func() error {
				return fsmMgr.ManagerHandler(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
	}
}
