package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mrseyes/icebot/internal/telegram"
)

// UpdateHandler обрабатывает одно входящее событие чата.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd *telegram.Update) error
}

// WebhookHandler принимает события вебхука и маршрутизирует их между
// покупательским и админским потоками. Внутренний исход не влияет на
// ответ транспорту: вебхук всегда подтверждается.
type WebhookHandler struct {
	flow        UpdateHandler
	admin       UpdateHandler
	adminChatID int64
	secret      string
}

// NewWebhookHandler создаёт обработчик вебхука.
func NewWebhookHandler(flow, admin UpdateHandler, adminChatID int64, secret string) *WebhookHandler {
	return &WebhookHandler{
		flow:        flow,
		admin:       admin,
		adminChatID: adminChatID,
		secret:      secret,
	}
}

// Handle обрабатывает POST /webhook.
func (h *WebhookHandler) Handle(c echo.Context) error {
	// Секрет вебхука отсекает чужие запросы до разбора тела.
	if h.secret != "" {
		if c.Request().Header.Get("X-Telegram-Bot-Api-Secret-Token") != h.secret {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook secret")
		}
	}

	var upd telegram.Update
	if err := c.Bind(&upd); err != nil {
		c.Logger().Errorf("failed to decode update: %v", err)
		return c.NoContent(http.StatusOK)
	}

	handler := h.flow
	if h.adminChatID != 0 && upd.ChatID() == h.adminChatID {
		handler = h.admin
	}

	if err := handler.HandleUpdate(c.Request().Context(), &upd); err != nil {
		c.Logger().Errorf("failed to handle update %d: %v", upd.UpdateID, err)
	}

	return c.NoContent(http.StatusOK)
}
