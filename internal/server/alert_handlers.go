package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/pulsegrid/pulsegrid/internal/core"
	"github.com/pulsegrid/pulsegrid/internal/notify"
	"github.com/pulsegrid/pulsegrid/pkg/models"
)

func (s *Server) parseAlertID(c *fiber.Ctx) (models.AlertID, error) {
	id, err := strconv.ParseInt(c.Params("alertID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, SendErrorWithType(c, fiber.StatusBadRequest, "Invalid alert ID", models.ValidationErrorType)
	}
	return models.AlertID(id), nil
}

func (s *Server) handleListAlerts(c *fiber.Ctx) error {
	filter := models.AlertFilter{
		DeviceID: c.Query("device_id"),
		Category: models.Category(c.Query("category")),
	}
	if raw := c.Query("handled"); raw != "" {
		handled, err := strconv.ParseBool(raw)
		if err != nil {
			return SendErrorWithType(c, fiber.StatusBadRequest, "Invalid handled filter", models.ValidationErrorType)
		}
		filter.Handled = &handled
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", models.DefaultAlertPageLimit)

	alerts, err := core.ListAlerts(c.Context(), s.sqlite, filter, page, limit)
	if err != nil {
		s.log.Error("failed to list alerts", "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to list alerts", models.GeneralErrorType)
	}
	return SendSuccess(c, fiber.StatusOK, alerts)
}

func (s *Server) handleGetAlert(c *fiber.Ctx) error {
	alertID, err := s.parseAlertID(c)
	if err != nil {
		return err
	}

	alert, err := core.GetAlert(c.Context(), s.sqlite, alertID)
	if err != nil {
		if errors.Is(err, core.ErrAlertNotFound) {
			return SendErrorWithType(c, fiber.StatusNotFound, "Alert not found", models.NotFoundErrorType)
		}
		s.log.Error("failed to get alert", "alert_id", alertID, "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to retrieve alert", models.GeneralErrorType)
	}
	return SendSuccess(c, fiber.StatusOK, alert)
}

func (s *Server) handleListUnhandledAlerts(c *fiber.Ctx) error {
	alerts, err := core.ListUnhandledAlerts(c.Context(), s.sqlite, c.Query("device_id"))
	if err != nil {
		s.log.Error("failed to list unhandled alerts", "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to list unhandled alerts", models.GeneralErrorType)
	}
	return SendSuccess(c, fiber.StatusOK, alerts)
}

func (s *Server) handleMarkAlertHandled(c *fiber.Ctx) error {
	alertID, err := s.parseAlertID(c)
	if err != nil {
		return err
	}

	var req models.MarkHandledRequest
	if err := c.BodyParser(&req); err != nil {
		return SendErrorWithType(c, fiber.StatusBadRequest, "Invalid request body", models.ValidationErrorType)
	}

	alert, err := core.MarkAlertHandled(c.Context(), s.sqlite, s.log, s.hub, alertID, req.Actor)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrMissingActor):
			return SendErrorWithType(c, fiber.StatusBadRequest, err.Error(), models.ValidationErrorType)
		case errors.Is(err, core.ErrAlertNotFound):
			return SendErrorWithType(c, fiber.StatusNotFound, "Alert not found", models.NotFoundErrorType)
		default:
			s.log.Error("failed to mark alert handled", "alert_id", alertID, "error", err)
			return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to mark alert handled", models.GeneralErrorType)
		}
	}
	return SendSuccess(c, fiber.StatusOK, alert)
}

func (s *Server) handleResendAlertEmail(c *fiber.Ctx) error {
	alertID, err := s.parseAlertID(c)
	if err != nil {
		return err
	}

	alert, outcome, err := core.ResendAlertEmail(c.Context(), s.sqlite, s.log, s.dispatcher, alertID)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrAlertNotFound):
			return SendErrorWithType(c, fiber.StatusNotFound, "Alert not found", models.NotFoundErrorType)
		case errors.Is(err, notify.ErrNoRecipients):
			// Not an abort: report a failed outcome, delivery fields untouched.
			return SendSuccess(c, fiber.StatusOK, fiber.Map{
				"alert":    alert,
				"delivery": models.DeliveryOutcome{Success: false, Error: err.Error()},
			})
		default:
			s.log.Error("failed to resend alert email", "alert_id", alertID, "error", err)
			return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to resend alert email", models.GeneralErrorType)
		}
	}
	return SendSuccess(c, fiber.StatusOK, fiber.Map{
		"alert":    alert,
		"delivery": outcome,
	})
}

func (s *Server) handleAlertStats(c *fiber.Ctx) error {
	stats, err := core.GetAlertStats(c.Context(), s.sqlite, c.Query("device_id"), parseWindow(c.Query("window")))
	if err != nil {
		s.log.Error("failed to compute alert stats", "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to compute alert statistics", models.GeneralErrorType)
	}
	return SendSuccess(c, fiber.StatusOK, stats)
}
