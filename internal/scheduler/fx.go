package scheduler

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(New),
)

// Start runs the scheduler loop for the lifetime of the app. Invoked
// explicitly by the daemon entrypoint; the one-shot entrypoints skip
// it.
func Start(lc fx.Lifecycle, sched *Scheduler) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go sched.RunForever(runCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
