package observability

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMetricsApp builds the small HTTP surface of the monitor: a Prometheus
// scrape endpoint and a liveness probe.
func NewMetricsApp() *fiber.App {
	RegisterMetrics()

	app := fiber.New(fiber.Config{
		AppName:               "presence-monitor",
		DisableStartupMessage: true,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return app
}
