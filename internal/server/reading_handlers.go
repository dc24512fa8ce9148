package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/pulsegrid/pulsegrid/internal/core"
	"github.com/pulsegrid/pulsegrid/pkg/models"
)

func (s *Server) handleIngestReading(c *fiber.Ctx) error {
	var req models.IngestReadingRequest
	if err := c.BodyParser(&req); err != nil {
		return SendErrorWithType(c, fiber.StatusBadRequest, "Invalid request body", models.ValidationErrorType)
	}

	result, err := core.IngestReading(c.Context(), s.sqlite, s.log, s.hub, s.dispatcher, req)
	if err != nil {
		if errors.Is(err, core.ErrInvalidReading) {
			return SendErrorWithType(c, fiber.StatusBadRequest, err.Error(), models.ValidationErrorType)
		}
		s.log.Error("failed to ingest reading", "device_id", req.DeviceID, "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to store reading", models.GeneralErrorType)
	}
	return SendSuccess(c, fiber.StatusCreated, result)
}

func (s *Server) handleLatestReading(c *fiber.Ctx) error {
	deviceID := c.Params("deviceID")

	reading, err := core.GetLatestReading(c.Context(), s.sqlite, deviceID)
	if err != nil {
		if errors.Is(err, core.ErrReadingNotFound) {
			return SendErrorWithType(c, fiber.StatusNotFound, "No readings for device", models.NotFoundErrorType)
		}
		s.log.Error("failed to get latest reading", "device_id", deviceID, "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to retrieve reading", models.GeneralErrorType)
	}
	return SendSuccess(c, fiber.StatusOK, reading)
}

func (s *Server) handleReadingHistory(c *fiber.Ctx) error {
	deviceID := c.Params("deviceID")
	window := parseWindow(c.Query("window"))

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return SendErrorWithType(c, fiber.StatusBadRequest, "Invalid limit", models.ValidationErrorType)
		}
		limit = v
	}

	history, err := core.GetReadingHistory(c.Context(), s.sqlite, deviceID, window, limit)
	if err != nil {
		s.log.Error("failed to get reading history", "device_id", deviceID, "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to retrieve history", models.GeneralErrorType)
	}
	return SendSuccess(c, fiber.StatusOK, history)
}

// parseWindow maps the window query parameter to a stats window, defaulting
// to 24 hours for anything unrecognised.
func parseWindow(raw string) models.StatsWindow {
	switch models.StatsWindow(raw) {
	case models.StatsWindow7d:
		return models.StatsWindow7d
	case models.StatsWindow30d:
		return models.StatsWindow30d
	default:
		return models.StatsWindow24h
	}
}
