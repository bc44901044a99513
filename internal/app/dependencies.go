package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/wekker/wekker/internal/config"
	"github.com/wekker/wekker/internal/event_bus"
	"github.com/wekker/wekker/pkg/alarm"
	"github.com/wekker/wekker/pkg/eventsource"
	"github.com/wekker/wekker/pkg/reconciler"
	"github.com/wekker/wekker/pkg/timer"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Bus *event_bus.EventBus

	AlarmRepo     alarm.Repository
	BlacklistRepo alarm.BlacklistRepository
	AlarmService  *alarm.ServiceImpl
	AlarmHandler  *alarm.Handler

	Timer  *timer.SystemTimer
	Source eventsource.EventSource

	Reconciler  *reconciler.Reconciler
	Coalescer   *reconciler.Coalescer
	SyncHandler *reconciler.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(ctx context.Context, db *sql.DB, cfg config.Application) (*Dependencies, error) {
	deps := &Dependencies{}

	deps.Bus = event_bus.NewEventBus()
	deps.Timer = timer.NewSystemTimer(deps.Bus)

	deps.AlarmRepo = alarm.NewRepository(db)
	deps.BlacklistRepo = alarm.NewBlacklistRepository(db)
	deps.AlarmService = alarm.NewService(deps.AlarmRepo, deps.BlacklistRepo, deps.Timer, deps.Bus)
	deps.AlarmHandler = alarm.NewHandler(deps.AlarmService)

	horizon := time.Duration(cfg.Sync.HorizonHours) * time.Hour
	source, err := eventsource.NewFromConfig(ctx, cfg.Source, horizon)
	if err != nil {
		return nil, err
	}
	deps.Source = source

	deps.Reconciler = reconciler.NewReconciler(deps.AlarmRepo, deps.BlacklistRepo, deps.Source, deps.Timer, deps.Bus, cfg.Sync.Calendars)
	deps.Coalescer = reconciler.NewCoalescer(deps.Reconciler)
	deps.SyncHandler = reconciler.NewHandler(deps.Coalescer, deps.Reconciler, deps.Source)

	// A fired alarm leaves a past-due row behind; nudge the engine so the
	// next pass cleans it up promptly instead of waiting for the fallback tick.
	deps.Bus.Subscribe(event_bus.EventTypeAlarmFired, func(e event_bus.Event) error {
		deps.Coalescer.Notify("alarm fired")
		return nil
	})

	return deps, nil
}
