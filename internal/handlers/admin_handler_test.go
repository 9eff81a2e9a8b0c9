package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/mrseyes/icebot/internal/models"
	"github.com/mrseyes/icebot/internal/services"
	"github.com/mrseyes/icebot/internal/storage"
)

type mockAccountService struct {
	LoginFunc func(ctx context.Context, login, password string) (*models.Admin, string, error)
}

func (m *mockAccountService) Login(ctx context.Context, login, password string) (*models.Admin, string, error) {
	return m.LoginFunc(ctx, login, password)
}

type mockOrderAdminService struct {
	ListRecentFunc      func(ctx context.Context, limit int, stage *models.Stage) ([]*models.Order, error)
	UpdateStageFunc     func(ctx context.Context, id int64, stage models.Stage) error
	SetDeliveryLinkFunc func(ctx context.Context, id int64, link string) error
}

func (m *mockOrderAdminService) ListRecent(ctx context.Context, limit int, stage *models.Stage) ([]*models.Order, error) {
	return m.ListRecentFunc(ctx, limit, stage)
}

func (m *mockOrderAdminService) UpdateStage(ctx context.Context, id int64, stage models.Stage) error {
	return m.UpdateStageFunc(ctx, id, stage)
}

func (m *mockOrderAdminService) SetDeliveryLink(ctx context.Context, id int64, link string) error {
	return m.SetDeliveryLinkFunc(ctx, id, link)
}

type mockMessageService struct {
	ListByOrderFunc func(ctx context.Context, orderID int64, limit int) ([]*models.OrderMessage, error)
}

func (m *mockMessageService) ListByOrder(ctx context.Context, orderID int64, limit int) ([]*models.OrderMessage, error) {
	return m.ListByOrderFunc(ctx, orderID, limit)
}

func jsonRequest(method, target, body string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func httpErrorCode(t *testing.T, err error) int {
	t.Helper()
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return httpErr.Code
}

func TestAdminHandlerLogin(t *testing.T) {
	adminID := uuid.New()

	tests := []struct {
		name       string
		body       string
		loginFunc  func(ctx context.Context, login, password string) (*models.Admin, string, error)
		wantStatus int
	}{
		{
			name: "успешный вход",
			body: `{"login": "admin", "password": "secret"}`,
			loginFunc: func(_ context.Context, login, password string) (*models.Admin, string, error) {
				return &models.Admin{ID: adminID, Login: login}, "signed-token", nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "пустые учётные данные",
			body: `{"login": "", "password": ""}`,
			loginFunc: func(context.Context, string, string) (*models.Admin, string, error) {
				return nil, "", services.ErrEmptyCredentials
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "неверные учётные данные",
			body: `{"login": "admin", "password": "wrong"}`,
			loginFunc: func(context.Context, string, string) (*models.Admin, string, error) {
				return nil, "", services.ErrInvalidCredentials
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "внутренняя ошибка",
			body: `{"login": "admin", "password": "secret"}`,
			loginFunc: func(context.Context, string, string) (*models.Admin, string, error) {
				return nil, "", errors.New("db down")
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAdminHandler(&mockAccountService{LoginFunc: tt.loginFunc}, nil, nil)
			e := echo.New()
			req, rec := jsonRequest(http.MethodPost, "/api/admin/login", tt.body)

			err := h.Login(e.NewContext(req, rec))
			if tt.wantStatus == http.StatusOK {
				if err != nil {
					t.Fatalf("Login() error = %v", err)
				}
				var resp map[string]interface{}
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp["token"] != "signed-token" || resp["login"] != "admin" {
					t.Errorf("response = %v", resp)
				}
				return
			}
			if got := httpErrorCode(t, err); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestAdminHandlerListOrders(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	orders := &mockOrderAdminService{
		ListRecentFunc: func(_ context.Context, limit int, stage *models.Stage) ([]*models.Order, error) {
			if limit != 5 {
				t.Errorf("limit = %d, want 5", limit)
			}
			if stage == nil || *stage != models.StageOutForDelivery {
				t.Errorf("stage filter = %v, want 1", stage)
			}
			return []*models.Order{{
				ID:         7,
				CustomerID: 100,
				Stage:      models.StageOutForDelivery,
				Status:     "out_for_delivery",
				CreatedAt:  created,
				UpdatedAt:  created,
			}}, nil
		},
	}
	h := NewAdminHandler(nil, orders, nil)
	e := echo.New()

	req, rec := jsonRequest(http.MethodGet, "/api/admin/orders?limit=5&stage=1", "")
	if err := h.ListOrders(e.NewContext(req, rec)); err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp []*models.OrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].ID != 7 || resp[0].StatusStage != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestAdminHandlerListOrdersBadStage(t *testing.T) {
	h := NewAdminHandler(nil, &mockOrderAdminService{}, nil)
	e := echo.New()

	req, rec := jsonRequest(http.MethodGet, "/api/admin/orders?stage=7", "")
	err := h.ListOrders(e.NewContext(req, rec))
	if got := httpErrorCode(t, err); got != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", got, http.StatusBadRequest)
	}
}

func TestAdminHandlerUpdateStage(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		body       string
		updateErr  error
		wantStatus int
	}{
		{"успешный перевод", "1", `{"stage": 1}`, nil, http.StatusNoContent},
		{"заказ не найден", "404", `{"stage": 1}`, storage.ErrOrderNotFound, http.StatusNotFound},
		{"конечный этап", "1", `{"stage": 1}`, storage.ErrTerminalStage, http.StatusConflict},
		{"этап вне диапазона", "1", `{"stage": 7}`, services.ErrInvalidStage, http.StatusBadRequest},
		{"нечисловой идентификатор", "abc", `{"stage": 1}`, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &mockOrderAdminService{
				UpdateStageFunc: func(_ context.Context, id int64, stage models.Stage) error {
					return tt.updateErr
				},
			}
			h := NewAdminHandler(nil, orders, nil)
			e := echo.New()
			req, rec := jsonRequest(http.MethodPost, "/api/admin/orders/"+tt.id+"/stage", tt.body)
			c := e.NewContext(req, rec)
			c.SetParamNames("id")
			c.SetParamValues(tt.id)

			err := h.UpdateStage(c)
			if tt.wantStatus == http.StatusNoContent {
				if err != nil {
					t.Fatalf("UpdateStage() error = %v", err)
				}
				if rec.Code != http.StatusNoContent {
					t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
				}
				return
			}
			if got := httpErrorCode(t, err); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestAdminHandlerSetDeliveryLink(t *testing.T) {
	var gotLink string
	orders := &mockOrderAdminService{
		SetDeliveryLinkFunc: func(_ context.Context, id int64, link string) error {
			gotLink = link
			return nil
		},
	}
	h := NewAdminHandler(nil, orders, nil)
	e := echo.New()

	req, rec := jsonRequest(http.MethodPost, "/api/admin/orders/1/link", `{"link": "https://track.example/42"}`)
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.SetDeliveryLink(c); err != nil {
		t.Fatalf("SetDeliveryLink() error = %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if gotLink != "https://track.example/42" {
		t.Errorf("link = %q", gotLink)
	}
}

func TestAdminHandlerSetDeliveryLinkMissing(t *testing.T) {
	h := NewAdminHandler(nil, &mockOrderAdminService{}, nil)
	e := echo.New()

	req, rec := jsonRequest(http.MethodPost, "/api/admin/orders/1/link", `{}`)
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	err := h.SetDeliveryLink(c)
	if got := httpErrorCode(t, err); got != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", got, http.StatusBadRequest)
	}
}

func TestAdminHandlerListMessages(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	messages := &mockMessageService{
		ListByOrderFunc: func(_ context.Context, orderID int64, limit int) ([]*models.OrderMessage, error) {
			if orderID != 3 {
				t.Errorf("orderID = %d, want 3", orderID)
			}
			return []*models.OrderMessage{{
				ID:        1,
				OrderID:   3,
				Sender:    models.SenderAdmin,
				Message:   "on the way",
				CreatedAt: created,
			}}, nil
		},
	}
	h := NewAdminHandler(nil, nil, messages)
	e := echo.New()

	req, rec := jsonRequest(http.MethodGet, "/api/admin/orders/3/messages", "")
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("3")

	if err := h.ListMessages(c); err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}

	var resp []*models.MessageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].Sender != models.SenderAdmin || resp[0].Message != "on the way" {
		t.Errorf("response = %+v", resp)
	}
}
