package services

import (
	"sync/atomic"
)

// ShopGate - процессный флаг приёма новых заказов плюс одноразовый
// режим рассылки. Оба флага атомарные: переключения не теряются при
// параллельных событиях.
type ShopGate struct {
	open      atomic.Bool
	broadcast atomic.Bool
}

// NewShopGate создаёт флаг с начальным состоянием магазина.
func NewShopGate(open bool) *ShopGate {
	g := &ShopGate{}
	g.open.Store(open)
	return g
}

// Open открывает приём заказов.
func (g *ShopGate) Open() { g.open.Store(true) }

// Close закрывает приём заказов.
func (g *ShopGate) Close() { g.open.Store(false) }

// IsOpen сообщает, принимает ли магазин заказы.
func (g *ShopGate) IsOpen() bool { return g.open.Load() }

// ArmBroadcast взводит режим рассылки: следующее свободное сообщение
// администратора уйдёт всем покупателям.
func (g *ShopGate) ArmBroadcast() { g.broadcast.Store(true) }

// ConsumeBroadcast снимает взвод и возвращает true ровно один раз -
// ровно одно сообщение администратора становится рассылкой.
func (g *ShopGate) ConsumeBroadcast() bool {
	return g.broadcast.CompareAndSwap(true, false)
}

// BroadcastArmed сообщает, взведён ли режим рассылки.
func (g *ShopGate) BroadcastArmed() bool { return g.broadcast.Load() }
