package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

// NewHTTPServer wraps a fiber app in the go-router adapter. The fiber app
// is returned too: listeners, shutdown and fiber's test helpers take it.
func NewHTTPServer(cfg ...fiber.Config) (router.Server[*fiber.App], *fiber.App) {
	var app *fiber.App
	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app = router.DefaultFiberOptions(fiber.New(cfg...))
		return app
	})
	return srv, app
}
