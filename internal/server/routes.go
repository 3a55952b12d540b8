package server

import (
	"github.com/gofiber/fiber/v2"

	"profilescraper/internal/core/scrape"
	"profilescraper/internal/health"
)

type Dependencies struct {
	Scrape *scrape.Service
	Checks map[string]health.Checker
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	// Health endpoints
	healthHandler := health.NewHealthHandler(d.Checks)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")
	scrape.NewHandler(d.Scrape).Register(api)

	return healthHandler
}
