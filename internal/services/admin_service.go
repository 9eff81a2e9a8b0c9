package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/mrseyes/icebot/internal/bridge"
	"github.com/mrseyes/icebot/internal/models"
	"github.com/mrseyes/icebot/internal/storage"
	"github.com/mrseyes/icebot/internal/telegram"
)

// deliveryIndicator распознаёт ссылку или ключевые слова доставки в
// ответе администратора: к такому сообщению прикрепляется кнопка
// "заказ получен".
var deliveryIndicator = regexp.MustCompile(`(?i)(https?://\S+|\btrack(ing)?\b|\brider\b|\bon the way\b|\blalamove\b|\bgrab\b)`)

const adminHelp = `Commands:
/open - open the shop
/close - close the shop
/orders [n] - list recent orders
/stage <id> <-1|0|1|2> - set order stage
/link <id> <url> - send delivery link
/broadcast - send next message to all customers

Reply to an order notification to message the customer.`

// AdminService обрабатывает события админского чата: команды управления
// магазином и заказами, рассылку и маршрутизацию ответов покупателям.
type AdminService struct {
	gate        *ShopGate
	orders      *OrderService
	customers   CustomerStorage
	messages    MessageStorage
	bridge      *bridge.Bridge
	tg          telegram.Client
	adminChatID int64
	logger      *log.Logger
}

// NewAdminService создаёт админский сервис.
func NewAdminService(
	gate *ShopGate,
	orders *OrderService,
	customers CustomerStorage,
	messages MessageStorage,
	b *bridge.Bridge,
	tg telegram.Client,
	adminChatID int64,
	logger *log.Logger,
) *AdminService {
	if logger == nil {
		logger = log.Default()
	}
	return &AdminService{
		gate:        gate,
		orders:      orders,
		customers:   customers,
		messages:    messages,
		bridge:      b,
		tg:          tg,
		adminChatID: adminChatID,
		logger:      logger,
	}
}

// HandleUpdate обрабатывает одно событие админского чата.
// Диагностика возвращается администратору коротким уведомлением и
// никогда не покидает сервис как ошибка транспорта.
func (a *AdminService) HandleUpdate(ctx context.Context, upd *telegram.Update) error {
	msg := upd.Message
	if msg == nil || msg.Text == "" {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		a.handleCommand(ctx, text)
		return nil
	}

	// Взведённая рассылка потребляет ровно одно свободное сообщение.
	if a.gate.ConsumeBroadcast() {
		a.broadcast(ctx, text)
		return nil
	}

	if msg.ReplyToMessage != nil {
		a.routeReply(ctx, msg.ReplyToMessage.MessageID, text)
		return nil
	}

	a.notify(ctx, adminHelp)
	return nil
}

func (a *AdminService) handleCommand(ctx context.Context, text string) {
	fields := strings.Fields(text)
	command := fields[0]
	args := fields[1:]

	switch command {
	case "/open":
		a.gate.Open()
		a.notify(ctx, "🟢 Shop is now open.")
	case "/close":
		a.gate.Close()
		a.notify(ctx, "🔴 Shop is now closed.")
	case "/orders":
		a.listOrders(ctx, args)
	case "/stage":
		a.setStage(ctx, args)
	case "/link":
		a.sendLink(ctx, args)
	case "/broadcast":
		a.gate.ArmBroadcast()
		a.notify(ctx, "📣 Broadcast armed. Send the text to fan out.")
	default:
		a.notify(ctx, adminHelp)
	}
}

func (a *AdminService) listOrders(ctx context.Context, args []string) {
	limit := 10
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			limit = n
		}
	}

	orders, err := a.orders.ListRecent(ctx, limit, nil)
	if err != nil {
		a.logger.Printf("list orders: %v", err)
		a.notify(ctx, "Failed to list orders.")
		return
	}
	if len(orders) == 0 {
		a.notify(ctx, "No orders yet.")
		return
	}

	var b strings.Builder
	for _, o := range orders {
		fmt.Fprintf(&b, "#%d %s — %s (%s)\n", o.ID, orNA(o.Name), o.Status,
			o.CreatedAt.Format("Jan 2 15:04"))
	}
	a.notify(ctx, strings.TrimRight(b.String(), "\n"))
}

func (a *AdminService) setStage(ctx context.Context, args []string) {
	if len(args) < 2 {
		a.notify(ctx, "Usage: /stage <id> <-1|0|1|2>")
		return
	}

	id, err1 := strconv.ParseInt(args[0], 10, 64)
	stageVal, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		a.notify(ctx, "Usage: /stage <id> <-1|0|1|2>")
		return
	}

	stage := models.Stage(stageVal)
	if err := a.orders.UpdateStage(ctx, id, stage); err != nil {
		a.notify(ctx, stageErrorNotice(err))
		return
	}

	a.notify(ctx, fmt.Sprintf("Order #%d → %s", id, stage.Label()))
	a.notifyCustomerStage(ctx, id, stage)
}

func (a *AdminService) sendLink(ctx context.Context, args []string) {
	if len(args) < 2 {
		a.notify(ctx, "Usage: /link <id> <url>")
		return
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		a.notify(ctx, "Usage: /link <id> <url>")
		return
	}
	link := args[1]

	if err := a.orders.SetDeliveryLink(ctx, id, link); err != nil {
		a.notify(ctx, stageErrorNotice(err))
		return
	}

	a.notify(ctx, fmt.Sprintf("Order #%d → out_for_delivery", id))

	order, err := a.orders.GetByID(ctx, id)
	if err != nil {
		a.logger.Printf("get order %d after link: %v", id, err)
		return
	}

	text := fmt.Sprintf("🚚 Your order #%d is out for delivery!\nTrack it here: %s", id, link)
	if _, err := a.tg.SendMessage(ctx, order.CustomerID, text,
		&telegram.SendOptions{ReplyMarkup: ReceivedKeyboard()}); err != nil {
		a.logger.Printf("notify customer %d about delivery link: %v", order.CustomerID, err)
	}
}

// notifyCustomerStage сообщает покупателю о смене этапа его заказа.
func (a *AdminService) notifyCustomerStage(ctx context.Context, id int64, stage models.Stage) {
	order, err := a.orders.GetByID(ctx, id)
	if err != nil {
		a.logger.Printf("get order %d after stage change: %v", id, err)
		return
	}

	var text string
	switch stage {
	case models.StageCanceled:
		text = fmt.Sprintf("❌ Your order #%d was canceled.", id)
	case models.StageOutForDelivery:
		text = fmt.Sprintf("🚚 Your order #%d is out for delivery!", id)
	case models.StageCompleted:
		text = fmt.Sprintf("🎉 Your order #%d is completed. Thank you!", id)
	default:
		text = fmt.Sprintf("✅ Your order #%d is confirmed and being prepared.", id)
	}

	if _, err := a.tg.SendMessage(ctx, order.CustomerID, text, nil); err != nil {
		a.logger.Printf("notify customer %d about stage: %v", order.CustomerID, err)
	}
}

// routeReply пересылает ответ администратора покупателю, найденному
// через мост. Признак доставки добавляет кнопку "заказ получен".
func (a *AdminService) routeReply(ctx context.Context, inReplyTo int, text string) {
	entry, err := a.bridge.Resolve(inReplyTo)
	if err != nil {
		a.notify(ctx, "Cannot map this reply to a customer.")
		return
	}

	var opts *telegram.SendOptions
	if deliveryIndicator.MatchString(text) {
		opts = &telegram.SendOptions{ReplyMarkup: ReceivedKeyboard()}
	}

	forwarded := "💬 Admin: " + text
	if _, err := a.tg.SendMessage(ctx, entry.CustomerID, forwarded, opts); err != nil {
		a.logger.Printf("forward admin reply to chat %d: %v", entry.CustomerID, err)
		a.notify(ctx, "Failed to deliver the reply.")
		return
	}

	if entry.OrderID != 0 {
		if err := a.messages.Append(ctx, entry.OrderID, models.SenderAdmin, text); err != nil {
			a.logger.Printf("append admin message for order %d: %v", entry.OrderID, err)
		}
	}
}

// broadcast рассылает текст всем известным покупателям, кроме админского
// чата, и отчитывается числом доставок.
func (a *AdminService) broadcast(ctx context.Context, text string) {
	ids, err := a.customers.ListChatIDs(ctx)
	if err != nil {
		a.logger.Printf("list customers for broadcast: %v", err)
		a.notify(ctx, "Broadcast failed: cannot list customers.")
		return
	}

	sent := 0
	for _, id := range ids {
		if id == a.adminChatID {
			continue
		}
		if _, err := a.tg.SendMessage(ctx, id, text, nil); err != nil {
			a.logger.Printf("broadcast to chat %d: %v", id, err)
			continue
		}
		sent++
	}

	a.notify(ctx, fmt.Sprintf("📣 Broadcast sent to %d customers.", sent))
}

// notify отправляет короткое уведомление в админский чат.
func (a *AdminService) notify(ctx context.Context, text string) {
	if _, err := a.tg.SendMessage(ctx, a.adminChatID, text, nil); err != nil {
		a.logger.Printf("notify admin: %v", err)
	}
}

// stageErrorNotice переводит ошибки журнала в короткие админские уведомления.
func stageErrorNotice(err error) string {
	switch {
	case errors.Is(err, storage.ErrOrderNotFound):
		return "Order not found."
	case errors.Is(err, storage.ErrTerminalStage):
		return "Order is already finalized."
	case errors.Is(err, ErrInvalidStage):
		return "Stage must be one of -1, 0, 1, 2."
	default:
		return "Failed to update the order."
	}
}
