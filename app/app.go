// Package app assembles the bot: configuration, storage, sessions,
// handlers, and the Telegram runtime options.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vkazmirchuk/tagmate/bot"
	"github.com/vkazmirchuk/tagmate/bot/registry"
	"github.com/vkazmirchuk/tagmate/core/bootstrap"
	"github.com/vkazmirchuk/tagmate/core/cmd"
	coreconfig "github.com/vkazmirchuk/tagmate/core/config"
	coretelegram "github.com/vkazmirchuk/tagmate/core/telegram"
	"github.com/vkazmirchuk/tagmate/core/telegram/router"
	"github.com/vkazmirchuk/tagmate/core/telegram/state"
)

// App carries the assembled application.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	sessions state.Manager
	handlers *bot.Handlers
}

// Bootstrap initializes logging and storage, then builds the handlers.
func Bootstrap(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}

	skipDB := cfg.Storage.Driver == coreconfig.StorageDriverMemory
	res, err := bootstrap.Run(bootstrap.Options{
		Config:       &cfg.Config,
		Database:     cfg.Database,
		SkipDatabase: skipDB,
	})
	if err != nil {
		return nil, err
	}

	var reg registry.Registry
	if skipDB {
		reg = registry.NewMemory(cfg.Groups.PerChatLimit)
	} else {
		reg = registry.NewPostgres(res.DB, cfg.Groups.PerChatLimit)
	}

	ttl := time.Duration(cfg.Telegram.SessionTTLMinutes) * time.Minute
	sessions := state.NewMemoryManager(ttl)
	handlers := bot.NewHandlers(reg, sessions, cfg.Groups.CancelLabel, cfg.Groups.PerChatLimit)

	return &App{
		cfg:      cfg,
		db:       res.DB,
		sessions: sessions,
		handlers: handlers,
	}, nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	for name, command := range a.handlers.Commands() {
		reg.RegisterCommand(name, command)
	}

	routes := router.CommandRoutes(reg)
	routes = append(routes, router.TextRoutes(a.sessions, reg, router.TextOptions{})...)

	return coretelegram.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Config, nil),
		Routes:      routes,
		OnStart: func(_ context.Context, rt coretelegram.Runtime) error {
			// Gate and mention resolution need the live bot.
			a.handlers.Bind(rt.Bot)
			return nil
		},
		OnStop: func(_ context.Context, _ coretelegram.Runtime) error {
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}, nil
}
