package services

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/mrseyes/icebot/internal/bridge"
	"github.com/mrseyes/icebot/internal/geocode"
	"github.com/mrseyes/icebot/internal/models"
	"github.com/mrseyes/icebot/internal/session"
	"github.com/mrseyes/icebot/internal/storage"
	"github.com/mrseyes/icebot/internal/telegram"
)

const testAdminChat int64 = 999

// sentMessage - одно исходящее сообщение, записанное дублёром транспорта.
type sentMessage struct {
	id     int
	chatID int64
	text   string
	opts   *telegram.SendOptions
}

// mockTransport - дублёр чат-транспорта: записывает исходящие сообщения
// и выдаёт возрастающие message_id.
type mockTransport struct {
	nextID    int
	sent      []sentMessage
	photos    []string
	locations int
	failChats map[int64]bool
}

func (m *mockTransport) SendMessage(_ context.Context, chatID int64, text string, opts *telegram.SendOptions) (int, error) {
	if m.failChats[chatID] {
		return 0, telegram.ErrSendFailed
	}
	m.nextID++
	m.sent = append(m.sent, sentMessage{id: m.nextID, chatID: chatID, text: text, opts: opts})
	return m.nextID, nil
}

func (m *mockTransport) SendLocation(_ context.Context, chatID int64, _, _ float64) (int, error) {
	if m.failChats[chatID] {
		return 0, telegram.ErrSendFailed
	}
	m.nextID++
	m.locations++
	return m.nextID, nil
}

func (m *mockTransport) SendPhoto(_ context.Context, chatID int64, fileID, _ string) (int, error) {
	if m.failChats[chatID] {
		return 0, telegram.ErrSendFailed
	}
	m.nextID++
	m.photos = append(m.photos, fileID)
	return m.nextID, nil
}

func (m *mockTransport) SendDocument(_ context.Context, chatID int64, fileID, _ string) (int, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *mockTransport) AnswerCallbackQuery(_ context.Context, _, _ string) error {
	return nil
}

// messagesTo возвращает все сообщения, отправленные в указанный чат.
func (m *mockTransport) messagesTo(chatID int64) []sentMessage {
	var result []sentMessage
	for _, s := range m.sent {
		if s.chatID == chatID {
			result = append(result, s)
		}
	}
	return result
}

// lastTo возвращает последнее сообщение в чат или пустую запись.
func (m *mockTransport) lastTo(chatID int64) sentMessage {
	msgs := m.messagesTo(chatID)
	if len(msgs) == 0 {
		return sentMessage{}
	}
	return msgs[len(msgs)-1]
}

// mockGeocoder - дублёр геокодера с подменяемым ответом.
type mockGeocoder struct {
	ReverseFunc func(ctx context.Context, lat, lon float64) (string, error)
}

func (m *mockGeocoder) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	if m.ReverseFunc != nil {
		return m.ReverseFunc(ctx, lat, lon)
	}
	return "", geocode.ErrUnavailable
}

// flowFixture собирает покупательский сервис на хранилищах в памяти.
type flowFixture struct {
	flow     *FlowService
	sessions *session.Store
	gate     *ShopGate
	orders   *storage.MemoryOrderStorage
	messages *storage.MemoryMessageStorage
	bridge   *bridge.Bridge
	tg       *mockTransport
	geo      *mockGeocoder
}

func newFlowFixture() *flowFixture {
	f := &flowFixture{
		sessions: session.NewStore(),
		gate:     NewShopGate(true),
		orders:   storage.NewMemoryOrderStorage(),
		messages: storage.NewMemoryMessageStorage(),
		bridge:   bridge.New(100),
		tg:       &mockTransport{failChats: make(map[int64]bool)},
		geo:      &mockGeocoder{},
	}
	f.flow = NewFlowService(
		f.sessions,
		f.gate,
		NewOrderService(f.orders),
		storage.NewMemoryCustomerStorage(),
		f.messages,
		f.bridge,
		f.tg,
		f.geo,
		testAdminChat,
		time.Second,
		log.New(io.Discard, "", 0),
	)
	return f
}

func (f *flowFixture) handle(t *testing.T, upd *telegram.Update) {
	t.Helper()
	if err := f.flow.HandleUpdate(context.Background(), upd); err != nil {
		t.Fatalf("HandleUpdate() error = %v", err)
	}
}

// snapshot возвращает копию текущей сессии покупателя.
func (f *flowFixture) snapshot(chatID int64) models.Session {
	sess, release := f.sessions.Acquire(chatID)
	defer release()
	return *sess
}

func textUpdate(chatID int64, text string) *telegram.Update {
	return &telegram.Update{Message: &telegram.Message{
		Chat: telegram.Chat{ID: chatID},
		From: &telegram.User{ID: chatID, FirstName: "Test"},
		Text: text,
	}}
}

func callbackUpdate(chatID int64, data string) *telegram.Update {
	return &telegram.Update{CallbackQuery: &telegram.CallbackQuery{
		ID:      "cb-1",
		From:    &telegram.User{ID: chatID},
		Message: &telegram.Message{Chat: telegram.Chat{ID: chatID}},
		Data:    data,
	}}
}

func contactUpdate(chatID int64, phone string) *telegram.Update {
	return &telegram.Update{Message: &telegram.Message{
		Chat:    telegram.Chat{ID: chatID},
		Contact: &telegram.Contact{PhoneNumber: phone},
	}}
}

func locationUpdate(chatID int64, lat, lon float64) *telegram.Update {
	return &telegram.Update{Message: &telegram.Message{
		Chat:     telegram.Chat{ID: chatID},
		Location: &telegram.Location{Latitude: lat, Longitude: lon},
	}}
}

func photoUpdate(chatID int64, fileID string) *telegram.Update {
	return &telegram.Update{Message: &telegram.Message{
		Chat:  telegram.Chat{ID: chatID},
		Photo: []telegram.PhotoSize{{FileID: fileID}},
	}}
}

func TestFlowHappyPath(t *testing.T) {
	f := newFlowFixture()
	f.geo.ReverseFunc = func(_ context.Context, lat, lon float64) (string, error) {
		return "Makati City", nil
	}
	const chatID int64 = 100

	f.handle(t, textUpdate(chatID, "/start"))
	f.handle(t, callbackUpdate(chatID, "cat:sachet"))
	f.handle(t, callbackUpdate(chatID, "amt:₱500"))
	f.handle(t, callbackUpdate(chatID, "cart:add"))
	f.handle(t, callbackUpdate(chatID, "checkout"))
	f.handle(t, textUpdate(chatID, "Ana"))
	f.handle(t, contactUpdate(chatID, "0917-123-4567"))
	f.handle(t, locationUpdate(chatID, 14.5, 121.0))
	f.handle(t, callbackUpdate(chatID, "confirm:yes"))
	f.handle(t, photoUpdate(chatID, "file123"))

	order, err := f.orders.GetByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("order not created: %v", err)
	}
	if order.CustomerID != chatID {
		t.Errorf("order customer = %d, want %d", order.CustomerID, chatID)
	}
	if order.Stage != models.StagePreparing {
		t.Errorf("order stage = %d, want %d", order.Stage, models.StagePreparing)
	}
	if len(order.Items) != 1 || order.Items[0].Category != "sachet" || order.Items[0].Amount != "₱500" {
		t.Errorf("order items = %+v", order.Items)
	}
	if order.Name != "Ana" || order.Phone != "0917-123-4567" {
		t.Errorf("order profile = %q / %q", order.Name, order.Phone)
	}
	if order.Address != "Makati City" {
		t.Errorf("order address = %q, want Makati City", order.Address)
	}
	if order.PaymentProof != "file123" {
		t.Errorf("order payment proof = %q", order.PaymentProof)
	}

	// Сессия очищена после оформления.
	sess := f.snapshot(chatID)
	if sess.Step != models.StepIdle || len(sess.Cart) != 0 || sess.Name != "" {
		t.Errorf("session not reset: step=%s cart=%d name=%q", sess.Step, len(sess.Cart), sess.Name)
	}

	// Покупателю ушёл чек.
	var gotReceipt bool
	for _, m := range f.tg.messagesTo(chatID) {
		if strings.Contains(m.text, "e-Receipt") {
			gotReceipt = true
		}
	}
	if !gotReceipt {
		t.Error("customer did not receive the e-receipt")
	}

	// Админский чат получил анонс, фото и геопозицию; анонс зарегистрирован
	// в мосте ответов.
	adminMsgs := f.tg.messagesTo(testAdminChat)
	if len(adminMsgs) == 0 {
		t.Fatal("admin chat got no announcement")
	}
	announcement := adminMsgs[0]
	if !strings.Contains(announcement.text, "NEW ORDER #1") {
		t.Errorf("announcement text = %q", announcement.text)
	}
	entry, err := f.bridge.Resolve(announcement.id)
	if err != nil {
		t.Fatalf("announcement not registered in bridge: %v", err)
	}
	if entry.CustomerID != chatID || entry.OrderID != 1 {
		t.Errorf("bridge entry = %+v", entry)
	}
	if len(f.tg.photos) != 1 || f.tg.photos[0] != "file123" {
		t.Errorf("forwarded photos = %v", f.tg.photos)
	}
	if f.tg.locations != 1 {
		t.Errorf("forwarded locations = %d, want 1", f.tg.locations)
	}
}

func TestFlowGeocodeFallback(t *testing.T) {
	f := newFlowFixture()
	f.geo.ReverseFunc = func(_ context.Context, _, _ float64) (string, error) {
		return "", geocode.ErrUnavailable
	}
	const chatID int64 = 100

	sess, release := f.sessions.Acquire(chatID)
	sess.Step = models.StepAwaitingLoc
	sess.Cart = []models.CartItem{{Category: "tube", Amount: "₱100"}}
	sess.Name = "Ana"
	sess.Phone = "0917"
	release()

	f.handle(t, locationUpdate(chatID, 0, 0))

	got := f.snapshot(chatID)
	if got.Address != "0, 0" {
		t.Errorf("fallback address = %q, want \"0, 0\"", got.Address)
	}
	if got.Step != models.StepAwaitingConfirm {
		t.Errorf("step = %s, want %s", got.Step, models.StepAwaitingConfirm)
	}
}

func TestFlowShopClosed(t *testing.T) {
	f := newFlowFixture()
	f.gate.Close()
	const chatID int64 = 100

	f.handle(t, textUpdate(chatID, "/start"))

	sess := f.snapshot(chatID)
	if sess.Step != models.StepIdle {
		t.Errorf("closed shop changed step to %s", sess.Step)
	}
	if got := f.tg.lastTo(chatID).text; got != msgShopClosed {
		t.Errorf("reply = %q, want shop-closed notice", got)
	}

	// Выбор категории тоже заблокирован.
	f.handle(t, callbackUpdate(chatID, "cat:sachet"))
	if sess := f.snapshot(chatID); sess.Category != "" {
		t.Errorf("closed shop recorded category %q", sess.Category)
	}
}

func TestFlowOutOfStateEventsIgnored(t *testing.T) {
	f := newFlowFixture()
	const chatID int64 = 100

	f.handle(t, locationUpdate(chatID, 14.5, 121.0))
	f.handle(t, contactUpdate(chatID, "0917"))

	sess := f.snapshot(chatID)
	if sess.Step != models.StepIdle || sess.Phone != "" || sess.Coords != nil {
		t.Errorf("out-of-state events mutated session: %+v", sess)
	}
	if len(f.tg.sent) != 0 {
		t.Errorf("out-of-state events produced %d replies", len(f.tg.sent))
	}
}

func TestFlowProofOutOfState(t *testing.T) {
	f := newFlowFixture()
	const chatID int64 = 100

	f.handle(t, photoUpdate(chatID, "file123"))

	if _, err := f.orders.GetByID(context.Background(), 1); err == nil {
		t.Error("photo outside the proof step must not create an order")
	}
	if got := f.tg.lastTo(chatID).text; got != msgUseStart {
		t.Errorf("reply = %q, want use-start hint", got)
	}
}

func TestFlowCancel(t *testing.T) {
	f := newFlowFixture()
	const chatID int64 = 100

	sess, release := f.sessions.Acquire(chatID)
	sess.Step = models.StepAwaitingConfirm
	sess.Cart = []models.CartItem{{Category: "block", Amount: "₱300"}}
	sess.Name = "Ana"
	release()

	f.handle(t, callbackUpdate(chatID, "confirm:no"))

	got := f.snapshot(chatID)
	if got.Step != models.StepIdle || len(got.Cart) != 0 || got.Name != "" {
		t.Errorf("cancel did not reset session: %+v", got)
	}
	if reply := f.tg.lastTo(chatID).text; reply != msgOrderCanceled {
		t.Errorf("reply = %q, want cancel notice", reply)
	}
}

func TestFlowSupport(t *testing.T) {
	f := newFlowFixture()
	const chatID int64 = 100

	order, err := NewOrderService(f.orders).CreateFromSession(context.Background(),
		&models.Session{ChatID: chatID})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}

	sess, release := f.sessions.Acquire(chatID)
	sess.Step = models.StepChoosingCat
	release()

	f.handle(t, callbackUpdate(chatID, "support"))
	if got := f.snapshot(chatID); got.Step != models.StepContactingAdmin ||
		got.ReturnStep != models.StepChoosingCat {
		t.Fatalf("support start: step=%s return=%s", got.Step, got.ReturnStep)
	}

	f.handle(t, textUpdate(chatID, "where is my order?"))

	// Сообщение переслано в админский чат и зарегистрировано в мосте.
	adminMsgs := f.tg.messagesTo(testAdminChat)
	if len(adminMsgs) != 1 || !strings.Contains(adminMsgs[0].text, "where is my order?") {
		t.Fatalf("admin chat messages = %+v", adminMsgs)
	}
	entry, err := f.bridge.Resolve(adminMsgs[0].id)
	if err != nil {
		t.Fatalf("support message not in bridge: %v", err)
	}
	if entry.CustomerID != chatID || entry.OrderID != order.ID {
		t.Errorf("bridge entry = %+v", entry)
	}

	// Текст лёг в переписку последнего активного заказа.
	thread, err := f.messages.ListByOrder(context.Background(), order.ID, 10)
	if err != nil || len(thread) != 1 {
		t.Fatalf("order thread = %v, err = %v", thread, err)
	}
	if thread[0].Sender != models.SenderCustomer || thread[0].Message != "where is my order?" {
		t.Errorf("thread entry = %+v", thread[0])
	}

	// Сессия вернулась к запомненному шагу.
	got := f.snapshot(chatID)
	if got.Step != models.StepChoosingCat || got.ReturnStep != "" {
		t.Errorf("after support: step=%s return=%s", got.Step, got.ReturnStep)
	}
	if reply := f.tg.lastTo(chatID).text; reply != msgSupportSent {
		t.Errorf("reply = %q, want support-sent notice", reply)
	}
}

func TestFlowAnnounceFailureKeepsOrder(t *testing.T) {
	f := newFlowFixture()
	f.tg.failChats[testAdminChat] = true
	const chatID int64 = 100

	sess, release := f.sessions.Acquire(chatID)
	sess.Step = models.StepAwaitingProof
	sess.Cart = []models.CartItem{{Category: "sachet", Amount: "₱500"}}
	release()

	f.handle(t, photoUpdate(chatID, "file123"))

	order, err := f.orders.GetByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("order must survive a failed announcement: %v", err)
	}
	if order.PaymentProof != "file123" {
		t.Errorf("order payment proof = %q", order.PaymentProof)
	}
	if f.bridge.Len() != 0 {
		t.Errorf("failed announcement must not register a bridge entry")
	}
	if got := f.snapshot(chatID); got.Step != models.StepIdle {
		t.Errorf("session not reset after proof: step=%s", got.Step)
	}
}

func TestFlowCartAddConsumesSelection(t *testing.T) {
	f := newFlowFixture()
	const chatID int64 = 100

	f.handle(t, textUpdate(chatID, "/start"))
	f.handle(t, callbackUpdate(chatID, "cat:tube"))
	f.handle(t, callbackUpdate(chatID, "amt:₱300"))
	f.handle(t, callbackUpdate(chatID, "cart:add"))

	sess := f.snapshot(chatID)
	if len(sess.Cart) != 1 {
		t.Fatalf("cart len = %d, want 1", len(sess.Cart))
	}
	if sess.Category != "" || sess.SelectedAmount != "" {
		t.Errorf("pending pair not cleared: %q / %q", sess.Category, sess.SelectedAmount)
	}

	// Повторное добавление без нового выбора отклоняется.
	f.handle(t, callbackUpdate(chatID, "cart:add"))
	if got := f.snapshot(chatID); len(got.Cart) != 1 {
		t.Errorf("second add without selection grew cart to %d", len(got.Cart))
	}
	if reply := f.tg.lastTo(chatID).text; reply != msgSelectFirst {
		t.Errorf("reply = %q, want select-first hint", reply)
	}
}

func TestFlowReceived(t *testing.T) {
	f := newFlowFixture()
	const chatID int64 = 100

	order, err := NewOrderService(f.orders).CreateFromSession(context.Background(),
		&models.Session{ChatID: chatID})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}

	f.handle(t, callbackUpdate(chatID, "received"))

	stored, _ := f.orders.GetByID(context.Background(), order.ID)
	if stored.Stage != models.StageCompleted {
		t.Errorf("stage after received = %d, want %d", stored.Stage, models.StageCompleted)
	}
	if reply := f.tg.lastTo(chatID).text; reply != msgReceivedThx {
		t.Errorf("reply = %q, want thank-you notice", reply)
	}
}
