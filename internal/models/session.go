package models

import (
	"time"
)

// Step описывает текущий шаг диалога с покупателем.
type Step string

const (
	StepIdle            Step = "idle"
	StepChoosingCat     Step = "choosing_category"
	StepChoosingAmount  Step = "choosing_amount"
	StepAwaitingName    Step = "awaiting_name"
	StepAwaitingPhone   Step = "awaiting_phone"
	StepAwaitingLoc     Step = "awaiting_location"
	StepAwaitingConfirm Step = "awaiting_confirmation"
	StepAwaitingProof   Step = "awaiting_payment_proof"
	StepContactingAdmin Step = "contacting_admin"
)

// Valid сообщает, входит ли шаг в закрытое множество состояний.
func (s Step) Valid() bool {
	switch s {
	case StepIdle, StepChoosingCat, StepChoosingAmount,
		StepAwaitingName, StepAwaitingPhone, StepAwaitingLoc,
		StepAwaitingConfirm, StepAwaitingProof, StepContactingAdmin:
		return true
	}
	return false
}

// Session - диалоговое состояние одного покупателя в процессе заказа.
type Session struct {
	ChatID         int64
	Step           Step
	Category       string
	SelectedAmount string
	Cart           []CartItem
	Name           string
	Phone          string
	Address        string
	Coords         *Coordinates
	PaymentProof   string
	// ReturnStep хранит шаг, к которому нужно вернуться после
	// обращения к администратору.
	ReturnStep   Step
	LastActiveAt time.Time
}

// Reset очищает сессию до пустого состояния idle.
func (s *Session) Reset() {
	s.Step = StepIdle
	s.Category = ""
	s.SelectedAmount = ""
	s.Cart = nil
	s.Name = ""
	s.Phone = ""
	s.Address = ""
	s.Coords = nil
	s.PaymentProof = ""
	s.ReturnStep = ""
}
