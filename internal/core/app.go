// Package core wires the application together: config, logging, the bot
// transport, storage, sessions, the conversation engine and the dispatcher,
// and runs them under one supervisor.
package core

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"mailerbot/internal/config"
	"mailerbot/internal/conversation"
	"mailerbot/internal/dispatch"
	"mailerbot/internal/media"
	"mailerbot/internal/platform"
	"mailerbot/internal/session"
	"mailerbot/internal/store"
	"mailerbot/internal/transport"
	"mailerbot/internal/transport/telegram"
	logx "mailerbot/pkg/logx"
)

// StopReason is recorded in shutdown logs.
type StopReason string

const (
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager
	sup     *Supervisor

	logs *logx.Service
	log  logx.Logger

	adapter  transport.Adapter
	store    store.Store
	sessions *session.Manager
	media    *media.Store
	engine   *conversation.Engine
	disp     *dispatch.Dispatcher

	dispatchOn bool
	updates    chan transport.Update
}

// NewApp loads the config and builds every component. The platform dialer
// is injected: the repo programs against platform.Dialer and the concrete
// MTProto client is supplied by the build that links one.
func NewApp(cfgPath string, dialer platform.Dialer) (*App, error) {
	if dialer == nil {
		return nil, errors.New("core: platform dialer is required")
	}

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logs.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, logs.Logger().With(logx.String("comp", "store")))
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(cfg.Sessions.Dir, dialer,
		logs.Logger().With(logx.String("comp", "session")))
	if err != nil {
		return nil, err
	}
	md, err := media.NewStore(cfg.Media.Dir,
		logs.Logger().With(logx.String("comp", "media")))
	if err != nil {
		return nil, err
	}

	engine := conversation.NewEngine(conversation.Config{
		OwnerID:      cfg.Owner.UserID,
		AdminContact: cfg.Owner.Contact,
	}, adapter, st, sessions, md,
		logs.Logger().With(logx.String("comp", "conversation")))

	retryDelay, err := config.ParseDurationOrDefault("dispatcher.retry_delay", cfg.Dispatcher.RetryDelay, 5*time.Second)
	if err != nil {
		return nil, err
	}
	var limiter *rate.Limiter
	if cfg.Dispatcher.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Dispatcher.RatePerSec), cfg.Dispatcher.RatePerSec)
	}
	sender := dispatch.NewSender(dispatch.RetryPolicy{
		MaxAttempts: cfg.Dispatcher.MaxAttempts,
		Delay:       retryDelay,
	}, limiter, logs.Logger().With(logx.String("comp", "sender")))
	disp := dispatch.New(st, sessions, sender,
		logs.Logger().With(logx.String("comp", "dispatch")))

	return &App{
		cfgPath:    cfgPath,
		cfgm:       cfgm,
		logs:       logs,
		log:        log,
		adapter:    adapter,
		store:      st,
		sessions:   sessions,
		media:      md,
		engine:     engine,
		disp:       disp,
		dispatchOn: cfg.Dispatcher.IsEnabled(),
		updates:    make(chan transport.Update, 256),
	}, nil
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))
	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	// One handling path for all principals: events run to completion in
	// arrival order, so per-principal state never sees two events at once.
	a.sup.Go0("events", func(c context.Context) {
		for {
			select {
			case <-c.Done():
				return
			case u := <-a.updates:
				a.engine.HandleUpdate(c, u)
			}
		}
	})

	if a.dispatchOn {
		a.sup.Go("dispatch", a.disp.Run)
	} else {
		a.log.Warn("dispatcher disabled via config")
	}

	// Hot reload: only logging applies live; everything else takes effect
	// on the next restart.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(logx.Config{
					Level:   newCfg.Logging.Level,
					Console: newCfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: newCfg.Logging.File.Enabled,
						Path:    newCfg.Logging.File.Path,
					},
				})
				a.log.Info("logging config applied", logx.String("level", newCfg.Logging.Level))
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	// Bounded shutdown steps so one component cannot stall the stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- fn(stepCtx) }()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
	}

	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("store", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}
