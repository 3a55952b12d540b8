package server

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"profilescraper/internal/core/scrape"
	"profilescraper/internal/health"
)

func TestRegisterRoutes(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	app := fiber.New()
	h := RegisterRoutes(app, Dependencies{
		Scrape: scrape.NewService(scrape.Config{}, scrape.Deps{}),
		Checks: map[string]health.Checker{"redis": func(context.Context) error { return nil }},
	})
	h.SetReady()

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/v1/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var routes []string
	for _, r := range app.GetRoutes(true) {
		routes = append(routes, r.Method+" "+r.Path)
	}
	require.Contains(t, routes, "POST /v1/scrape")
	require.Contains(t, routes, "GET /v1/scrape/:profile")
	require.Contains(t, routes, "GET /v1/scrape/:profile/job")
	require.Contains(t, routes, "GET /v1/posts")
}
