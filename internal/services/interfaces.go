package services

import (
	"context"

	"github.com/mrseyes/icebot/internal/models"
)

// OrderStorage определяет интерфейс журнала заказов.
type OrderStorage interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	List(ctx context.Context, limit int, stage *models.Stage) ([]*models.Order, error)
	UpdateStage(ctx context.Context, id int64, stage models.Stage) error
	SetDeliveryLink(ctx context.Context, id int64, link string) error
	LatestActiveByCustomer(ctx context.Context, chatID int64) (*models.Order, error)
	MarkReceivedByCustomer(ctx context.Context, chatID int64) (int64, error)
}

// CustomerStorage определяет интерфейс реестра покупателей.
type CustomerStorage interface {
	Upsert(ctx context.Context, chatID int64, username, displayName string) error
	ListChatIDs(ctx context.Context) ([]int64, error)
}

// MessageStorage определяет интерфейс переписки по заказам.
type MessageStorage interface {
	Append(ctx context.Context, orderID int64, sender, message string) error
	ListByOrder(ctx context.Context, orderID int64, limit int) ([]*models.OrderMessage, error)
}

// AdminStorage определяет интерфейс учётных записей администраторов.
type AdminStorage interface {
	Create(ctx context.Context, admin *models.Admin) error
	GetByLogin(ctx context.Context, login string) (*models.Admin, error)
}
