package models

import (
	"time"
)

// Stage описывает этап жизненного цикла заказа.
type Stage int

const (
	StageCanceled       Stage = -1
	StagePreparing      Stage = 0
	StageOutForDelivery Stage = 1
	StageCompleted      Stage = 2
)

// Valid сообщает, входит ли значение в закрытое множество этапов.
func (s Stage) Valid() bool {
	switch s {
	case StageCanceled, StagePreparing, StageOutForDelivery, StageCompleted:
		return true
	}
	return false
}

// Terminal сообщает, является ли этап конечным (дальнейшие переходы запрещены).
func (s Stage) Terminal() bool {
	return s == StageCanceled || s == StageCompleted
}

// Label возвращает читаемый статус, детерминированно выводимый из этапа.
func (s Stage) Label() string {
	switch s {
	case StageCanceled:
		return "canceled"
	case StageOutForDelivery:
		return "out_for_delivery"
	case StageCompleted:
		return "completed"
	default:
		return "confirmed/preparing"
	}
}

// CartItem - одна позиция корзины: категория и ценовая метка.
type CartItem struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

// Coordinates - пара широта/долгота.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Order представляет оформленный заказ в журнале.
type Order struct {
	ID           int64        `db:"id"`
	CustomerID   int64        `db:"customer_chat_id"`
	Name         string       `db:"name"`
	Phone        string       `db:"phone"`
	Address      string       `db:"address"`
	Coords       *Coordinates `db:"-"`
	Items        []CartItem   `db:"items"`
	PaymentProof string       `db:"payment_proof"`
	Stage        Stage        `db:"status_stage"`
	Status       string       `db:"status"`
	DeliveryLink string       `db:"delivery_link"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

// OrderMessage - сообщение в переписке по заказу.
type OrderMessage struct {
	ID        int64     `db:"id"`
	OrderID   int64     `db:"order_id"`
	Sender    string    `db:"sender"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}

const (
	SenderCustomer = "customer"
	SenderAdmin    = "admin"
)

// OrderResponse - ответ для админского мини-приложения.
type OrderResponse struct {
	ID           int64        `json:"id"`
	CustomerID   int64        `json:"customerChatId"`
	Name         string       `json:"name"`
	Phone        string       `json:"phone"`
	Address      string       `json:"address"`
	Coords       *Coordinates `json:"coords,omitempty"`
	Items        []CartItem   `json:"items"`
	PaymentProof string       `json:"paymentProof,omitempty"`
	Status       string       `json:"status"`
	StatusStage  int          `json:"statusStage"`
	DeliveryLink string       `json:"deliveryLink,omitempty"`
	CreatedAt    string       `json:"createdAt"`
	UpdatedAt    string       `json:"updatedAt"`
}

// MessageResponse - сообщение переписки для админского мини-приложения.
type MessageResponse struct {
	ID        int64  `json:"id"`
	OrderID   int64  `json:"orderId"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
}
