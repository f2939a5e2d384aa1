package metrics

import (
	fiber "github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Register wires /metrics and /status onto app. /metrics is assembled by
// hand rather than via promhttp.Handler() because the Collection's
// register/unregister bookkeeping (spec §6, Design Notes) is bespoke
// behavior promhttp doesn't provide: a private prometheus.Registry holds
// only c, Gather() runs c.Collect() through it, and the resulting
// MetricFamilies are written with prometheus/expfmt exactly as
// promhttp.Handler would internally.
func Register(app *fiber.App, c *Collection) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(c)

	app.Get("/metrics", func(ctx *fiber.Ctx) error {
		families, err := registry.Gather()
		if err != nil {
			return ctx.Status(fiber.StatusInternalServerError).SendString(err.Error())
		}
		ctx.Set(fiber.HeaderContentType, string(expfmt.FmtText))
		enc := expfmt.NewEncoder(ctx.Response().BodyWriter(), expfmt.FmtText)
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				return ctx.Status(fiber.StatusInternalServerError).SendString(err.Error())
			}
		}
		return nil
	})

	app.Get("/status", func(ctx *fiber.Ctx) error {
		ctx.Set(fiber.HeaderContentType, fiber.MIMETextPlain)
		return ctx.SendString(c.StatusText())
	})
}
