package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"stashdocs/internal/http/middleware"
	"stashdocs/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Health probes stay public; everything touching files requires an
// authenticated principal.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.FileService, jwtSecret string) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	auth := middleware.Auth(jwtSecret)

	app.Post("/stashes/:stashID/files", auth, CreateFile(svc))
	app.Get("/files/:id", auth, GetFile(svc))
	app.Patch("/files/:id", auth, UpdateFile(svc))
	app.Post("/files/:id/revert", auth, RevertFile(svc))
	app.Get("/files/:id/versions", auth, ListFileVersions(svc))
	app.Delete("/files/:id", auth, DeleteFile(svc))
}
