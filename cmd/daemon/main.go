package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/lross/livemediad/internal/artwork"
	"github.com/lross/livemediad/internal/config"
	"github.com/lross/livemediad/internal/domain"
	"github.com/lross/livemediad/internal/engine"
	"github.com/lross/livemediad/internal/lockwatch"
	"github.com/lross/livemediad/internal/notify"
	"github.com/lross/livemediad/internal/overlay"
	"github.com/lross/livemediad/internal/render"
	"github.com/lross/livemediad/internal/sched"
	"github.com/lross/livemediad/internal/tracker"
)

// AppOptions is the full dependency graph, exported so tests can validate
// it with fx.ValidateApp
var AppOptions = fx.Options(
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	fx.Provide(
		newLogger,
		newClock,

		config.NewStore,
		func(s *config.Store) domain.Prefs { return s },

		tracker.NewMprisTracker,
		func(t *tracker.MprisTracker) domain.Tracker { return t },

		lockwatch.NewMonitor,
		func(m *lockwatch.Monitor) domain.LockMonitor { return m },

		overlay.NewSignal,
		func(s *overlay.Signal) domain.OverlaySignal { return s },
		overlay.NewDBusSource,

		notify.NewDesktopNotifier,
		func(n *notify.DesktopNotifier) domain.Notifier { return n },

		artwork.NewResolver,
		func(r *artwork.Resolver) domain.ArtResolver { return r },

		render.NewRenderer,
		sched.New,
		engine.NewEngine,
	),

	fx.Invoke(registerHooks),
)

func main() {
	app := fx.New(AppOptions)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	<-ctx.Done()

	if err := app.Stop(context.Background()); err != nil {
		panic(err)
	}
}

// newLogger creates a new zap logger instance
func newLogger() (*zap.Logger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// newClock provides the real wall clock; tests substitute a fake one
func newClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

// registerHooks starts the signal-driven components and tears everything
// down in reverse order. The blocking Start methods run in goroutines and
// are cancelled through their Stop methods, so a missing bus peer never
// blocks daemon startup.
func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	trk *tracker.MprisTracker,
	lock *lockwatch.Monitor,
	src *overlay.DBusSource,
	notifier *notify.DesktopNotifier,
	eng *engine.Engine,
) {
	runDetached := func(name string, start func(context.Context) error) {
		go func() {
			if err := start(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("Component exited", zap.String("component", name), zap.Error(err))
			}
		}()
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("livemediad starting")
			runDetached("tracker", trk.Start)
			runDetached("lockwatch", lock.Start)
			runDetached("overlay", src.Start)
			runDetached("notifier", notifier.Start)
			return eng.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("livemediad shutting down")
			// Teardown must succeed even when any Start never completed
			if err := eng.Stop(ctx); err != nil {
				logger.Warn("Engine stop failed", zap.Error(err))
			}
			if err := notifier.Stop(ctx); err != nil {
				logger.Warn("Notifier stop failed", zap.Error(err))
			}
			if err := src.Stop(ctx); err != nil {
				logger.Warn("Overlay source stop failed", zap.Error(err))
			}
			if err := lock.Stop(ctx); err != nil {
				logger.Warn("Lock monitor stop failed", zap.Error(err))
			}
			if err := trk.Stop(ctx); err != nil {
				logger.Warn("Tracker stop failed", zap.Error(err))
			}
			return nil
		},
	})
}
