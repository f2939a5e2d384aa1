package config

import (
	"context"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/go-rtrtr/rtrtr/metrics"
	"github.com/go-rtrtr/rtrtr/target"
)

// Run spawns every unit and target under one errgroup bound to ctx and
// waits for all of them. An HTTP target's route is registered on app
// before its update loop starts. Each unit/target registers a
// metrics.Source with collection on start and unregisters it on return, so
// /metrics and /status never describe something no longer running. The
// RTR/http target types built by Build never return from Run except on a
// fatal, unrecoverable failure (per spec §4.5's unit lifecycle), so Run
// itself only returns once ctx is cancelled or one of them does.
func (m *Manager) Run(ctx context.Context, app *fiber.App, collection *metrics.Collection) error {
	g, ctx := errgroup.WithContext(ctx)

	for name, u := range m.Units {
		name, u := name, u
		g.Go(func() error {
			unregister := metrics.WireUnit(collection, name, u)
			defer unregister()
			err := u.Run(ctx)
			if err != nil && ctx.Err() == nil {
				logrus.WithField("unit", name).WithError(err).Error("unit terminated")
			}
			return err
		})
	}

	for name, t := range m.Targets {
		name, t := name, t
		var unregister func()
		switch concrete := t.(type) {
		case *target.HTTP:
			concrete.Register(app)
			unregister = metrics.WireHTTPTarget(collection, name, concrete)
		case *target.RTR:
			unregister = metrics.WireRTRTarget(collection, name, concrete)
		}
		g.Go(func() error {
			if unregister != nil {
				defer unregister()
			}
			err := t.Run(ctx)
			if err != nil && ctx.Err() == nil {
				logrus.WithField("target", name).WithError(err).Error("target terminated")
			}
			return err
		})
	}

	return g.Wait()
}
