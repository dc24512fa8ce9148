package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pulsegrid/pulsegrid/pkg/models"
)

func (s *Server) handleListSettings(c *fiber.Ctx) error {
	var (
		settings []models.Setting
		err      error
	)
	if category := c.Query("category"); category != "" {
		settings, err = s.sqlite.ListSettingsByCategory(c.Context(), category)
	} else {
		settings, err = s.sqlite.ListSettings(c.Context())
	}
	if err != nil {
		s.log.Error("failed to list settings", "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to list settings", models.GeneralErrorType)
	}

	// Sensitive values (SMTP credentials) never leave the server.
	for i := range settings {
		if settings[i].IsSensitive {
			settings[i].Value = "********"
		}
	}
	return SendSuccess(c, fiber.StatusOK, settings)
}

func (s *Server) handleUpsertSetting(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return SendErrorWithType(c, fiber.StatusBadRequest, "Setting key is required", models.ValidationErrorType)
	}

	var req models.UpsertSettingRequest
	if err := c.BodyParser(&req); err != nil {
		return SendErrorWithType(c, fiber.StatusBadRequest, "Invalid request body", models.ValidationErrorType)
	}
	if req.ValueType == "" {
		req.ValueType = "string"
	}
	if req.Category == "" {
		req.Category = "general"
	}

	if err := s.sqlite.UpsertSetting(c.Context(), key, req.Value, req.ValueType, req.Category, req.Description, req.IsSensitive); err != nil {
		s.log.Error("failed to upsert setting", "key", key, "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to save setting", models.GeneralErrorType)
	}
	s.log.Info("setting updated", "key", key)
	return SendSuccess(c, fiber.StatusOK, fiber.Map{"key": key})
}

func (s *Server) handleDeleteSetting(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return SendErrorWithType(c, fiber.StatusBadRequest, "Setting key is required", models.ValidationErrorType)
	}

	if err := s.sqlite.DeleteSetting(c.Context(), key); err != nil {
		s.log.Error("failed to delete setting", "key", key, "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to delete setting", models.GeneralErrorType)
	}
	s.log.Info("setting deleted", "key", key)
	return SendSuccess(c, fiber.StatusOK, fiber.Map{"key": key})
}
