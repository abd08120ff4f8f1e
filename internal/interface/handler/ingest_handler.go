package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
	"hostel-ingest-service/internal/usecase"
	"hostel-ingest-service/pkg/logger"
)

// IngestHandler exposes on-demand runs and the attempt history
type IngestHandler struct {
	runner usecase.OrganizationRunner
	logs   repository.NotificationLogRepository
	logger logger.Logger
}

// IngestResponse is the result of an on-demand run
type IngestResponse struct {
	OrganizationID uint `json:"organizationId"`
	Created        int  `json:"created"`
}

func NewIngestHandler(runner usecase.OrganizationRunner, logs repository.NotificationLogRepository, logger logger.Logger) *IngestHandler {
	return &IngestHandler{runner: runner, logs: logs, logger: logger}
}

func (h *IngestHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/organizations/:id/ingest", h.Ingest)
	g.GET("/reservations/:id/notifications", h.ListNotifications)
}

// Ingest runs one organization synchronously
func (h *IngestHandler) Ingest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid organization id")
	}

	created, err := h.runner.Run(c.Request().Context(), id)
	if err != nil {
		var connErr *entity.ConnectionError
		switch {
		case errors.Is(err, entity.ErrRunInProgress):
			return echo.NewHTTPError(http.StatusConflict, "ingestion already running for this organization")
		case errors.Is(err, entity.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "organization not found")
		case errors.As(err, &connErr):
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		h.logger.Error("On-demand ingestion failed", "organizationID", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, IngestResponse{OrganizationID: id, Created: created})
}

// ListNotifications returns the downstream attempts of a reservation
func (h *IngestHandler) ListNotifications(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid reservation id")
	}

	logs, err := h.logs.FindByReservation(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if logs == nil {
		logs = []*entity.NotificationLog{}
	}
	return c.JSON(http.StatusOK, logs)
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}
