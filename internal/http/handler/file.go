package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"stashdocs/internal/http/middleware"
	"stashdocs/internal/service"
)

// Handlers stay free of business logic: they validate the shape of the
// request, resolve the principal, call the service, and translate errors.

// HealthCheck verifies DB connectivity.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness probe.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

type createFileRequest struct {
	Name    string   `json:"name"`
	Content string   `json:"content"`
	DocType string   `json:"doc_type"`
	Tags    []string `json:"tags"`
}

// CreateFile handles POST /stashes/:stashID/files.
func CreateFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stashID := c.Params("stashID")
		if _, err := uuid.Parse(stashID); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid stash id format")
		}

		var req createFileRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "cannot parse request body")
		}
		if req.Name == "" {
			return writeError(c, fiber.StatusBadRequest, "NAME_REQUIRED", "name is required")
		}

		f, err := svc.CreateFile(c.UserContext(), middleware.PrincipalID(c), stashID, req.Name, req.Content, req.DocType, req.Tags)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(f)
	}
}

// GetFile handles GET /files/:id.
func GetFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		f, err := svc.GetFile(c.UserContext(), middleware.PrincipalID(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(f)
	}
}

type updateFileRequest struct {
	Name    *string  `json:"name"`
	Content *string  `json:"content"`
	Tags    []string `json:"tags"`
}

// UpdateFile handles PATCH /files/:id. Only provided fields change; a
// version is created only when content actually changes.
func UpdateFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		var req updateFileRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "cannot parse request body")
		}

		f, err := svc.UpdateFile(c.UserContext(), middleware.PrincipalID(c), id, service.UpdateFileInput{
			Name:    req.Name,
			Content: req.Content,
			Tags:    req.Tags,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(f)
	}
}

type revertFileRequest struct {
	VersionID string `json:"version_id"`
}

// RevertFile handles POST /files/:id/revert.
func RevertFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		var req revertFileRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "cannot parse request body")
		}
		if _, err := uuid.Parse(req.VersionID); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid version id format")
		}

		f, err := svc.RevertFile(c.UserContext(), middleware.PrincipalID(c), id, req.VersionID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(f)
	}
}

// ListFileVersions handles GET /files/:id/versions, newest first.
func ListFileVersions(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		versions, err := svc.ListVersions(c.UserContext(), middleware.PrincipalID(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"data": versions, "total": len(versions)})
	}
}

// DeleteFile handles DELETE /files/:id.
func DeleteFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.DeleteFile(c.UserContext(), middleware.PrincipalID(c), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
