package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mrseyes/icebot/internal/bridge"
	"github.com/mrseyes/icebot/internal/cart"
	"github.com/mrseyes/icebot/internal/geocode"
	"github.com/mrseyes/icebot/internal/models"
	"github.com/mrseyes/icebot/internal/receipt"
	"github.com/mrseyes/icebot/internal/session"
	"github.com/mrseyes/icebot/internal/telegram"
)

// catalogCategory - товарная категория и её подпись на кнопке.
type catalogCategory struct {
	Key   string
	Title string
}

var catalog = []catalogCategory{
	{Key: "sachet", Title: "🧊 Ice Sachet"},
	{Key: "tube", Title: "🧊 Ice Tube"},
	{Key: "block", Title: "🧊 Ice Block"},
}

var amountLabels = []string{"₱100", "₱300", "₱500", "₱1000"}

// Данные инлайн-кнопок покупательского потока.
const (
	cbCategoryPrefix = "cat:"
	cbAmountPrefix   = "amt:"
	cbCartAdd        = "cart:add"
	cbCartView       = "cart:view"
	cbCheckout       = "checkout"
	cbConfirmYes     = "confirm:yes"
	cbConfirmNo      = "confirm:no"
	cbSupport        = "support"
	cbReceived       = "received"
)

const (
	msgShopClosed    = "🚫 Sorry, the shop is closed right now. Please come back later!"
	msgUseStart      = "Please follow the steps or /start to begin again."
	msgSelectFirst   = "Please select a category and amount first."
	msgCartEmpty     = "Your cart is empty. Please pick something first."
	msgConfirmTap    = "Please tap the buttons (✅ / ❌) above to finish."
	msgPaymentHowTo  = "💳 Please pay via GCash to 0917-000-0000 and upload a screenshot of your payment here."
	msgOrderCanceled = "❌ Order canceled. /start to begin again."
	msgSupportAsk    = "💬 Type your message for the admin. We'll get back to you shortly."
	msgSupportSent   = "✅ Your message was sent to the admin."
	msgReceivedThx   = "🎉 Thank you! Enjoy your order."
)

// FlowService реализует покупательский конечный автомат: один входящий
// апдейт - одна сериализованная мутация сессии.
type FlowService struct {
	sessions       *session.Store
	gate           *ShopGate
	orders         *OrderService
	customers      CustomerStorage
	messages       MessageStorage
	bridge         *bridge.Bridge
	tg             telegram.Client
	geo            geocode.Geocoder
	adminChatID    int64
	geocodeTimeout time.Duration
	logger         *log.Logger
}

// NewFlowService создаёт покупательский сервис.
func NewFlowService(
	sessions *session.Store,
	gate *ShopGate,
	orders *OrderService,
	customers CustomerStorage,
	messages MessageStorage,
	b *bridge.Bridge,
	tg telegram.Client,
	geo geocode.Geocoder,
	adminChatID int64,
	geocodeTimeout time.Duration,
	logger *log.Logger,
) *FlowService {
	if geocodeTimeout <= 0 {
		geocodeTimeout = 4 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FlowService{
		sessions:       sessions,
		gate:           gate,
		orders:         orders,
		customers:      customers,
		messages:       messages,
		bridge:         b,
		tg:             tg,
		geo:            geo,
		adminChatID:    adminChatID,
		geocodeTimeout: geocodeTimeout,
		logger:         logger,
	}
}

// HandleUpdate обрабатывает одно входящее событие покупателя.
// Внутренние ошибки не покидают сервис: покупатель получает подсказку,
// детали уходят в лог.
func (f *FlowService) HandleUpdate(ctx context.Context, upd *telegram.Update) error {
	chatID := upd.ChatID()
	if chatID == 0 {
		return nil
	}

	f.registerCustomer(ctx, chatID, upd.From())

	sess, release := f.sessions.Acquire(chatID)
	defer release()

	switch {
	case upd.CallbackQuery != nil:
		f.answerCallback(ctx, upd.CallbackQuery.ID)
		f.handleCallback(ctx, sess, upd.CallbackQuery)
	case upd.Message != nil:
		f.handleMessage(ctx, sess, upd.Message)
	}
	return nil
}

// handleMessage обрабатывает обычное сообщение: команду, текст,
// контакт, геопозицию или файл.
func (f *FlowService) handleMessage(ctx context.Context, sess *models.Session, msg *telegram.Message) {
	switch {
	case strings.HasPrefix(msg.Text, "/start"):
		f.handleStart(ctx, sess)
	case msg.Contact != nil:
		f.handleContact(ctx, sess, msg.Contact)
	case msg.Location != nil:
		f.handleLocation(ctx, sess, msg.Location)
	case len(msg.Photo) > 0:
		f.handleProof(ctx, sess, msg.Photo[len(msg.Photo)-1].FileID)
	case msg.Document != nil:
		f.handleProof(ctx, sess, msg.Document.FileID)
	case msg.Text != "":
		f.handleText(ctx, sess, msg)
	default:
		f.send(ctx, sess.ChatID, msgUseStart, nil)
	}
}

func (f *FlowService) handleStart(ctx context.Context, sess *models.Session) {
	if !f.gate.IsOpen() {
		f.send(ctx, sess.ChatID, msgShopClosed, nil)
		return
	}

	sess.Reset()
	sess.Step = models.StepChoosingCat
	f.send(ctx, sess.ChatID,
		"👋 Welcome to Mrs Eyes! Pick a category:",
		&telegram.SendOptions{ReplyMarkup: categoryKeyboard()})
}

// handleCallback обрабатывает нажатия инлайн-кнопок.
func (f *FlowService) handleCallback(ctx context.Context, sess *models.Session, cb *telegram.CallbackQuery) {
	data := cb.Data

	switch {
	case strings.HasPrefix(data, cbCategoryPrefix):
		f.handleSelectCategory(ctx, sess, strings.TrimPrefix(data, cbCategoryPrefix))
	case strings.HasPrefix(data, cbAmountPrefix):
		f.handleSelectAmount(ctx, sess, strings.TrimPrefix(data, cbAmountPrefix))
	case data == cbCartAdd:
		f.handleCartAdd(ctx, sess)
	case data == cbCartView:
		f.handleCartView(ctx, sess)
	case data == cbCheckout:
		f.handleCheckout(ctx, sess)
	case data == cbConfirmYes:
		f.handleConfirm(ctx, sess)
	case data == cbConfirmNo:
		f.handleCancel(ctx, sess)
	case data == cbSupport:
		f.handleSupportStart(ctx, sess)
	case data == cbReceived:
		f.handleReceived(ctx, sess)
	default:
		f.send(ctx, sess.ChatID, msgUseStart, nil)
	}
}

func (f *FlowService) handleSelectCategory(ctx context.Context, sess *models.Session, key string) {
	if !f.gate.IsOpen() {
		f.send(ctx, sess.ChatID, msgShopClosed, nil)
		return
	}

	title, ok := categoryTitle(key)
	if !ok {
		f.send(ctx, sess.ChatID, msgUseStart, nil)
		return
	}

	sess.Category = key
	sess.Step = models.StepChoosingAmount
	f.send(ctx, sess.ChatID,
		fmt.Sprintf("%s - pick an amount:", title),
		&telegram.SendOptions{ReplyMarkup: amountKeyboard()})
}

func (f *FlowService) handleSelectAmount(ctx context.Context, sess *models.Session, label string) {
	if sess.Step != models.StepChoosingAmount {
		f.send(ctx, sess.ChatID, msgUseStart, nil)
		return
	}

	sess.SelectedAmount = label
	f.send(ctx, sess.ChatID,
		fmt.Sprintf("Selected: %s — %s", sess.Category, label),
		&telegram.SendOptions{ReplyMarkup: cartKeyboard()})
}

func (f *FlowService) handleCartAdd(ctx context.Context, sess *models.Session) {
	if sess.Step != models.StepChoosingAmount {
		f.send(ctx, sess.ChatID, msgUseStart, nil)
		return
	}

	if err := cart.Add(sess, sess.Category, sess.SelectedAmount); err != nil {
		f.send(ctx, sess.ChatID, msgSelectFirst, nil)
		return
	}

	// Висящая пара израсходована: следующее добавление требует нового выбора.
	sess.Category = ""
	sess.SelectedAmount = ""

	f.send(ctx, sess.ChatID,
		fmt.Sprintf("🛒 Added! Items in cart: %d. Pick another category or checkout:", len(sess.Cart)),
		&telegram.SendOptions{ReplyMarkup: categoryKeyboard()})
}

func (f *FlowService) handleCartView(ctx context.Context, sess *models.Session) {
	lines := cart.Lines(sess)
	if len(lines) == 0 {
		f.send(ctx, sess.ChatID, msgCartEmpty, nil)
		return
	}
	f.send(ctx, sess.ChatID,
		"🛒 Your cart:\n"+strings.Join(lines, "\n"),
		&telegram.SendOptions{ReplyMarkup: cartKeyboard()})
}

func (f *FlowService) handleCheckout(ctx context.Context, sess *models.Session) {
	if sess.Step != models.StepChoosingAmount {
		f.send(ctx, sess.ChatID, msgUseStart, nil)
		return
	}

	if err := cart.Checkout(sess); err != nil {
		f.send(ctx, sess.ChatID, msgCartEmpty, nil)
		return
	}

	sess.Step = models.StepAwaitingName
	f.send(ctx, sess.ChatID, "Great! What's your name?", nil)
}

// handleText обрабатывает свободный текст в зависимости от шага.
func (f *FlowService) handleText(ctx context.Context, sess *models.Session, msg *telegram.Message) {
	text := strings.TrimSpace(msg.Text)

	switch sess.Step {
	case models.StepAwaitingName:
		if text == "" {
			f.send(ctx, sess.ChatID, "Please tell us your name.", nil)
			return
		}
		sess.Name = text
		sess.Step = models.StepAwaitingPhone
		f.send(ctx, sess.ChatID,
			fmt.Sprintf("Thanks, %s! Now please share your phone:", sess.Name),
			&telegram.SendOptions{ReplyMarkup: contactKeyboard()})

	case models.StepContactingAdmin:
		f.forwardSupportMessage(ctx, sess, msg)

	case models.StepAwaitingConfirm:
		f.send(ctx, sess.ChatID, msgConfirmTap, nil)

	case models.StepIdle, models.StepChoosingCat:
		f.send(ctx, sess.ChatID, msgUseStart, nil)

	case models.StepChoosingAmount:
		f.send(ctx, sess.ChatID, "Please pick an amount:",
			&telegram.SendOptions{ReplyMarkup: amountKeyboard()})

	default:
		f.send(ctx, sess.ChatID, msgUseStart, nil)
	}
}

// handleContact принимает контакт только на шаге запроса телефона;
// вне шага событие молча игнорируется.
func (f *FlowService) handleContact(ctx context.Context, sess *models.Session, contact *telegram.Contact) {
	if sess.Step != models.StepAwaitingPhone {
		return
	}
	if contact.PhoneNumber == "" {
		f.send(ctx, sess.ChatID, "No phone number received. Please try again.", nil)
		return
	}

	sess.Phone = contact.PhoneNumber
	sess.Step = models.StepAwaitingLoc
	f.send(ctx, sess.ChatID,
		"Great 👍 Now share your delivery location:",
		&telegram.SendOptions{ReplyMarkup: locationKeyboard()})
}

// handleLocation принимает геопозицию только на своём шаге. Сбой
// геокодера не блокирует переход: адресом становится строка координат.
func (f *FlowService) handleLocation(ctx context.Context, sess *models.Session, loc *telegram.Location) {
	if sess.Step != models.StepAwaitingLoc {
		return
	}

	sess.Coords = &models.Coordinates{Latitude: loc.Latitude, Longitude: loc.Longitude}

	geoCtx, cancel := context.WithTimeout(ctx, f.geocodeTimeout)
	address, err := f.geo.Reverse(geoCtx, loc.Latitude, loc.Longitude)
	cancel()
	if err != nil {
		f.logger.Printf("reverse geocode failed for chat %d: %v", sess.ChatID, err)
		address = geocode.FallbackAddress(loc.Latitude, loc.Longitude)
	}

	sess.Address = address
	sess.Step = models.StepAwaitingConfirm

	summary := f.orderSummary(sess)
	f.send(ctx, sess.ChatID, summary, &telegram.SendOptions{ReplyMarkup: confirmKeyboard()})
	f.send(ctx, sess.ChatID, "Please confirm above 👆",
		&telegram.SendOptions{ReplyMarkup: telegram.ReplyKeyboardRemove{RemoveKeyboard: true}})
}

func (f *FlowService) handleConfirm(ctx context.Context, sess *models.Session) {
	if sess.Step != models.StepAwaitingConfirm {
		f.send(ctx, sess.ChatID, msgUseStart, nil)
		return
	}
	sess.Step = models.StepAwaitingProof
	f.send(ctx, sess.ChatID, msgPaymentHowTo, nil)
}

func (f *FlowService) handleCancel(ctx context.Context, sess *models.Session) {
	if sess.Step != models.StepAwaitingConfirm {
		f.send(ctx, sess.ChatID, msgUseStart, nil)
		return
	}
	sess.Reset()
	f.send(ctx, sess.ChatID, msgOrderCanceled, nil)
}

// handleProof принимает подтверждение оплаты, создаёт заказ и уведомляет
// админский чат. Запись в журнале - источник истины: сбой уведомления
// только логируется.
func (f *FlowService) handleProof(ctx context.Context, sess *models.Session, fileID string) {
	if sess.Step != models.StepAwaitingProof {
		f.send(ctx, sess.ChatID, msgUseStart, nil)
		return
	}

	sess.PaymentProof = fileID

	order, err := f.orders.CreateFromSession(ctx, sess)
	if err != nil {
		f.logger.Printf("create order for chat %d: %v", sess.ChatID, err)
		f.send(ctx, sess.ChatID, "Something went wrong saving your order, please try again.", nil)
		return
	}

	f.send(ctx, sess.ChatID, receipt.Build(order), nil)
	f.announceOrder(ctx, sess, order)

	sess.Reset()
}

// announceOrder отправляет уведомление о новом заказе в админский чат и
// регистрирует его в мосте ответов. Любой сбой здесь не отменяет заказ.
func (f *FlowService) announceOrder(ctx context.Context, sess *models.Session, order *models.Order) {
	if f.adminChatID == 0 {
		f.logger.Printf("admin chat is not configured, order %d not announced", order.ID)
		return
	}

	msgID, err := f.tg.SendMessage(ctx, f.adminChatID, adminAnnouncement(order), nil)
	if err != nil {
		f.logger.Printf("announce order %d to admin: %v", order.ID, err)
		return
	}
	f.bridge.Register(msgID, order.CustomerID, order.ID)

	if order.PaymentProof != "" {
		if _, err := f.tg.SendPhoto(ctx, f.adminChatID, order.PaymentProof,
			fmt.Sprintf("Payment proof for order #%d", order.ID)); err != nil {
			f.logger.Printf("send payment proof for order %d: %v", order.ID, err)
		}
	}
	if order.Coords != nil {
		if _, err := f.tg.SendLocation(ctx, f.adminChatID,
			order.Coords.Latitude, order.Coords.Longitude); err != nil {
			f.logger.Printf("send location for order %d: %v", order.ID, err)
		}
	}
}

// handleSupportStart переводит сессию в режим обращения к администратору,
// запоминая шаг для возврата.
func (f *FlowService) handleSupportStart(ctx context.Context, sess *models.Session) {
	if sess.Step != models.StepContactingAdmin {
		sess.ReturnStep = sess.Step
	}
	sess.Step = models.StepContactingAdmin
	f.send(ctx, sess.ChatID, msgSupportAsk, nil)
}

// forwardSupportMessage пересылает одно сообщение покупателя в админский
// чат и возвращает сессию к запомненному шагу.
func (f *FlowService) forwardSupportMessage(ctx context.Context, sess *models.Session, msg *telegram.Message) {
	var orderID int64
	if order, err := f.orders.LatestActive(ctx, sess.ChatID); err == nil {
		orderID = order.ID
	}

	forwarded := fmt.Sprintf("💬 Message from %s (chat %d):\n%s",
		customerDisplayName(msg.From, sess), sess.ChatID, msg.Text)

	if f.adminChatID != 0 {
		msgID, err := f.tg.SendMessage(ctx, f.adminChatID, forwarded, nil)
		if err != nil {
			f.logger.Printf("forward support message from chat %d: %v", sess.ChatID, err)
		} else {
			f.bridge.Register(msgID, sess.ChatID, orderID)
		}
	}

	if orderID != 0 {
		if err := f.messages.Append(ctx, orderID, models.SenderCustomer, msg.Text); err != nil {
			f.logger.Printf("append customer message for order %d: %v", orderID, err)
		}
	}

	if sess.ReturnStep != "" && sess.ReturnStep.Valid() {
		sess.Step = sess.ReturnStep
	} else {
		sess.Step = models.StepChoosingCat
	}
	sess.ReturnStep = ""

	f.send(ctx, sess.ChatID, msgSupportSent, nil)
}

// handleReceived обрабатывает кнопку "заказ получен".
func (f *FlowService) handleReceived(ctx context.Context, sess *models.Session) {
	affected, err := f.orders.MarkReceived(ctx, sess.ChatID)
	if err != nil {
		f.logger.Printf("mark received for chat %d: %v", sess.ChatID, err)
		return
	}
	if affected > 0 {
		f.send(ctx, sess.ChatID, msgReceivedThx, nil)
	}
}

// orderSummary формирует сводку заказа перед подтверждением.
func (f *FlowService) orderSummary(sess *models.Session) string {
	var b strings.Builder
	b.WriteString("📋 Order Summary:\n\n")
	for _, line := range cart.Lines(sess) {
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, "\n💰 Total: ₱%s\n", receipt.Total(sess.Cart).StringFixed(0))
	fmt.Fprintf(&b, "👤 Name: %s\n", orNA(sess.Name))
	fmt.Fprintf(&b, "📱 Phone: %s\n", orNA(sess.Phone))
	fmt.Fprintf(&b, "📍 Address: %s\n", orNA(sess.Address))
	if sess.Coords != nil {
		fmt.Fprintf(&b, "🗺️ Coordinates: %s", geocode.FallbackAddress(sess.Coords.Latitude, sess.Coords.Longitude))
	}
	return strings.TrimRight(b.String(), "\n")
}

// adminAnnouncement формирует текст уведомления о новом заказе.
func adminAnnouncement(order *models.Order) string {
	coordsText := "N/A"
	if order.Coords != nil {
		coordsText = geocode.FallbackAddress(order.Coords.Latitude, order.Coords.Longitude)
	}

	var items strings.Builder
	for i, it := range order.Items {
		fmt.Fprintf(&items, "%d. %s — %s\n", i+1, it.Category, it.Amount)
	}

	return strings.TrimRight(fmt.Sprintf(`🧊 NEW ORDER #%d

%s
💰 Total: ₱%s
👤 Name: %s
📱 Phone: %s
📍 Address: %s
🗺️ Coords: %s`,
		order.ID,
		items.String(),
		receipt.Total(order.Items).StringFixed(0),
		orNA(order.Name),
		orNA(order.Phone),
		orNA(order.Address),
		coordsText,
	), "\n")
}

// registerCustomer заносит покупателя в реестр рассылки.
func (f *FlowService) registerCustomer(ctx context.Context, chatID int64, from *telegram.User) {
	var username, displayName string
	if from != nil {
		username = from.Username
		displayName = strings.TrimSpace(from.FirstName + " " + from.LastName)
	}
	if err := f.customers.Upsert(ctx, chatID, username, displayName); err != nil {
		f.logger.Printf("upsert customer %d: %v", chatID, err)
	}
}

// send отправляет сообщение покупателю; сбой доставки только логируется.
func (f *FlowService) send(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) {
	if _, err := f.tg.SendMessage(ctx, chatID, text, opts); err != nil {
		f.logger.Printf("send message to chat %d: %v", chatID, err)
	}
}

func (f *FlowService) answerCallback(ctx context.Context, callbackID string) {
	if err := f.tg.AnswerCallbackQuery(ctx, callbackID, ""); err != nil &&
		!errors.Is(err, context.Canceled) {
		f.logger.Printf("answer callback %s: %v", callbackID, err)
	}
}

func categoryTitle(key string) (string, bool) {
	for _, c := range catalog {
		if c.Key == key {
			return c.Title, true
		}
	}
	return "", false
}

func customerDisplayName(from *telegram.User, sess *models.Session) string {
	if sess.Name != "" {
		return sess.Name
	}
	if from != nil {
		if name := strings.TrimSpace(from.FirstName + " " + from.LastName); name != "" {
			return name
		}
		if from.Username != "" {
			return "@" + from.Username
		}
	}
	return "customer"
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// Клавиатуры покупательского потока.

func categoryKeyboard() telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(catalog)+1)
	for _, c := range catalog {
		rows = append(rows, []telegram.InlineKeyboardButton{
			{Text: c.Title, CallbackData: cbCategoryPrefix + c.Key},
		})
	}
	rows = append(rows, []telegram.InlineKeyboardButton{
		{Text: "🛒 View cart", CallbackData: cbCartView},
		{Text: "✅ Checkout", CallbackData: cbCheckout},
	}, []telegram.InlineKeyboardButton{
		{Text: "💬 Contact admin", CallbackData: cbSupport},
	})
	return telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func amountKeyboard() telegram.InlineKeyboardMarkup {
	row := make([]telegram.InlineKeyboardButton, 0, len(amountLabels))
	for _, label := range amountLabels {
		row = append(row, telegram.InlineKeyboardButton{Text: label, CallbackData: cbAmountPrefix + label})
	}
	return telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{row}}
}

func cartKeyboard() telegram.InlineKeyboardMarkup {
	return telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{
			{Text: "➕ Add to cart", CallbackData: cbCartAdd},
			{Text: "🛒 View cart", CallbackData: cbCartView},
		},
		{
			{Text: "✅ Checkout", CallbackData: cbCheckout},
		},
	}}
}

func confirmKeyboard() telegram.InlineKeyboardMarkup {
	return telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{
			{Text: "✅ Confirm", CallbackData: cbConfirmYes},
			{Text: "❌ Cancel", CallbackData: cbConfirmNo},
		},
	}}
}

func contactKeyboard() telegram.ReplyKeyboardMarkup {
	return telegram.ReplyKeyboardMarkup{
		Keyboard: [][]telegram.KeyboardButton{
			{{Text: "📱 Share Phone Number", RequestContact: true}},
		},
		OneTimeKeyboard: true,
		ResizeKeyboard:  true,
	}
}

func locationKeyboard() telegram.ReplyKeyboardMarkup {
	return telegram.ReplyKeyboardMarkup{
		Keyboard: [][]telegram.KeyboardButton{
			{{Text: "📍 Share Location", RequestLocation: true}},
		},
		OneTimeKeyboard: true,
		ResizeKeyboard:  true,
	}
}

// ReceivedKeyboard - кнопка "заказ получен", прикрепляемая к пересланным
// сообщениям с признаком доставки.
func ReceivedKeyboard() telegram.InlineKeyboardMarkup {
	return telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "✅ Order received", CallbackData: cbReceived}},
	}}
}
