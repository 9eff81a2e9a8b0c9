package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mrseyes/icebot/internal/models"
	"github.com/mrseyes/icebot/internal/services"
	"github.com/mrseyes/icebot/internal/storage"
)

// AccountService аутентифицирует администраторов.
type AccountService interface {
	Login(ctx context.Context, login, password string) (*models.Admin, string, error)
}

// OrderAdminService - операции над журналом заказов для мини-приложения.
type OrderAdminService interface {
	ListRecent(ctx context.Context, limit int, stage *models.Stage) ([]*models.Order, error)
	UpdateStage(ctx context.Context, id int64, stage models.Stage) error
	SetDeliveryLink(ctx context.Context, id int64, link string) error
}

// MessageService - переписка по заказу для мини-приложения.
type MessageService interface {
	ListByOrder(ctx context.Context, orderID int64, limit int) ([]*models.OrderMessage, error)
}

// AdminHandler обрабатывает HTTP-запросы админского мини-приложения.
type AdminHandler struct {
	accounts AccountService
	orders   OrderAdminService
	messages MessageService
}

// NewAdminHandler создаёт новый экземпляр AdminHandler.
func NewAdminHandler(accounts AccountService, orders OrderAdminService, messages MessageService) *AdminHandler {
	return &AdminHandler{
		accounts: accounts,
		orders:   orders,
		messages: messages,
	}
}

// Login обрабатывает POST /api/admin/login.
func (h *AdminHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	admin, token, err := h.accounts.Login(c.Request().Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrEmptyCredentials) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if errors.Is(err, services.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid login or password")
		}
		c.Logger().Errorf("failed to login admin: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"admin_id": admin.ID,
		"login":    admin.Login,
		"token":    token,
	})
}

// ListOrders обрабатывает GET /api/admin/orders.
func (h *AdminHandler) ListOrders(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	var stage *models.Stage
	if raw := c.QueryParam("stage"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || !models.Stage(n).Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid stage filter")
		}
		s := models.Stage(n)
		stage = &s
	}

	orders, err := h.orders.ListRecent(c.Request().Context(), limit, stage)
	if err != nil {
		c.Logger().Errorf("failed to list orders: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, services.MapToResponse(orders))
}

// ListMessages обрабатывает GET /api/admin/orders/:id/messages.
func (h *AdminHandler) ListMessages(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}

	messages, err := h.messages.ListByOrder(c.Request().Context(), id, 200)
	if err != nil {
		c.Logger().Errorf("failed to list order messages: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	response := make([]*models.MessageResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, &models.MessageResponse{
			ID:        m.ID,
			OrderID:   m.OrderID,
			Sender:    m.Sender,
			Message:   m.Message,
			CreatedAt: m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return c.JSON(http.StatusOK, response)
}

// UpdateStage обрабатывает POST /api/admin/orders/:id/stage.
func (h *AdminHandler) UpdateStage(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}

	var req struct {
		Stage int `json:"stage"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	if err := h.orders.UpdateStage(c.Request().Context(), id, models.Stage(req.Stage)); err != nil {
		return stageErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetDeliveryLink обрабатывает POST /api/admin/orders/:id/link.
func (h *AdminHandler) SetDeliveryLink(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}

	var req struct {
		Link string `json:"link"`
	}
	if err := c.Bind(&req); err != nil || req.Link == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "link is required")
	}

	if err := h.orders.SetDeliveryLink(c.Request().Context(), id, req.Link); err != nil {
		return stageErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// orderID извлекает идентификатор заказа из пути.
func orderID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	return id, nil
}

// stageErrorResponse переводит ошибки журнала в HTTP-статусы.
func stageErrorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, storage.ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	case errors.Is(err, storage.ErrTerminalStage):
		return echo.NewHTTPError(http.StatusConflict, "order is already finalized")
	case errors.Is(err, services.ErrInvalidStage):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid stage value")
	default:
		c.Logger().Errorf("failed to update order: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
