package orderbot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ecoline-bot/lib/scrapers/ecoline"
	"ecoline-bot/lib/timezone"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	chatID   int64
	text     string
	keyboard *Keyboard
}

type editedMessage struct {
	chatID    int64
	messageID int
	text      string
	keyboard  *Keyboard
}

type fakeGateway struct {
	mu      sync.Mutex
	nextID  int
	sent    []sentMessage
	edits   []editedMessage
	deleted []int
}

func (g *fakeGateway) SendMessage(ctx context.Context, chatID int64, text string, keyboard *Keyboard) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	g.sent = append(g.sent, sentMessage{chatID: chatID, text: text, keyboard: keyboard})
	return g.nextID, nil
}

func (g *fakeGateway) EditMessage(ctx context.Context, chatID int64, messageID int, text string, keyboard *Keyboard) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edits = append(g.edits, editedMessage{chatID: chatID, messageID: messageID, text: text, keyboard: keyboard})
	return nil
}

func (g *fakeGateway) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, messageID)
	return nil
}

func (g *fakeGateway) SendTyping(ctx context.Context, chatID int64) error {
	return nil
}

func (g *fakeGateway) lastSent(t *testing.T) sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.sent)
	return g.sent[len(g.sent)-1]
}

func (g *fakeGateway) lastEdit(t *testing.T) editedMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.edits)
	return g.edits[len(g.edits)-1]
}

// fakeShop stands in for the scraping client: an in-memory basket and
// scripted bonus/checkout behavior.
type fakeShop struct {
	mu sync.Mutex

	basket         ecoline.BasketSnapshot
	bonus          int
	bonusErr       error
	formFields     map[string]string
	lastOrder      ecoline.LastOrder
	haveLastOrder  bool
	checkoutResult ecoline.CheckoutResult
	checkoutErr    error

	clearCalls     int
	checkoutFields map[string]string
}

func (c *fakeShop) Bonus(ctx context.Context) (int, bool, error) {
	if c.bonusErr != nil {
		return 0, false, c.bonusErr
	}
	return c.bonus, true, nil
}

func (c *fakeShop) LastOrder(ctx context.Context) (ecoline.LastOrder, bool, error) {
	return c.lastOrder, c.haveLastOrder, nil
}

func (c *fakeShop) Basket(ctx context.Context) (ecoline.BasketSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.basket, nil
}

func (c *fakeShop) ClearBasket(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearCalls++
	c.basket = ecoline.BasketSnapshot{}
	return true, nil
}

func (c *fakeShop) AddToBasket(ctx context.Context, product ecoline.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.basket = ecoline.BasketSnapshot{
		Items: []ecoline.BasketItem{{
			ID:       "36",
			Name:     product.Name,
			Quantity: product.Quantity,
		}},
		Total: decimal.NewFromInt(450),
	}
	return nil
}

func (c *fakeShop) OrderFormFields(ctx context.Context) (map[string]string, error) {
	return c.formFields, nil
}

func (c *fakeShop) Checkout(ctx context.Context, req ecoline.CheckoutRequest) (ecoline.CheckoutResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.basket.Empty() {
		return ecoline.CheckoutResult{}, ecoline.ErrEmptyBasket
	}
	c.checkoutFields = req.Fields
	if c.checkoutErr != nil {
		return ecoline.CheckoutResult{}, c.checkoutErr
	}
	c.basket = ecoline.BasketSnapshot{}
	return c.checkoutResult, nil
}

var (
	testUser = User{ID: 7, FirstName: "Иван"}
	testChat = int64(100)
)

func newTestService(t *testing.T, shop *fakeShop) (*Service, *fakeGateway, *int) {
	gateway := &fakeGateway{}
	factoryCalls := 0
	service := NewService(
		gateway,
		func(ctx context.Context) (OrderClient, error) {
			factoryCalls++
			return shop, nil
		},
		Options{
			Product:     ecoline.Product{Name: "Вода питьевая «Эколайн» 19 л", Quantity: 1},
			HistoryPath: filepath.Join(t.TempDir(), "history.log"),
			Access:      AccessPolicy{Users: []int64{testUser.ID}},
		},
	)
	return service, gateway, &factoryCalls
}

func (s *Service) message(text string) MessageEvent {
	return MessageEvent{ChatID: testChat, From: testUser, Text: text}
}

func (s *Service) callback(data string) CallbackEvent {
	return CallbackEvent{ChatID: testChat, From: testUser, MessageID: 1, Data: data}
}

func TestUnauthorizedRequester(t *testing.T) {
	shop := &fakeShop{bonus: 50}
	service, gateway, factoryCalls := newTestService(t, shop)
	stranger := User{ID: 666, FirstName: "Некто"}

	ctx := context.Background()
	service.HandleMessage(ctx, MessageEvent{ChatID: 200, From: stranger, Text: "💰Заказ"})
	service.HandleMessage(ctx, MessageEvent{ChatID: 200, From: stranger, Command: "start"})
	service.HandleCallback(ctx, CallbackEvent{ChatID: 200, From: stranger, MessageID: 1, Data: "apply"})

	// fixed denial notice, zero remote side effects
	require.Len(t, gateway.sent, 3)
	for _, sent := range gateway.sent {
		require.Equal(t, denialNotice, sent.text)
		require.Nil(t, sent.keyboard)
	}
	require.Zero(t, *factoryCalls)
	require.Zero(t, shop.clearCalls)

	_, found, err := service.history.Latest()
	require.NoError(t, err)
	require.False(t, found)
}

func TestStartAndHelp(t *testing.T) {
	service, gateway, _ := newTestService(t, &fakeShop{})

	service.HandleMessage(context.Background(), MessageEvent{ChatID: testChat, From: testUser, Command: "start"})
	sent := gateway.lastSent(t)
	require.Equal(t, welcomeNotice, sent.text)
	require.NotNil(t, sent.keyboard)
	require.False(t, sent.keyboard.Inline)
	require.Equal(t, "💰Заказ", sent.keyboard.Rows[0][0].Label)

	service.HandleMessage(context.Background(), MessageEvent{ChatID: testChat, From: testUser, Command: "help"})
	require.Equal(t, helpNotice, gateway.lastSent(t).text)

	service.HandleMessage(context.Background(), service.message("привет"))
	require.Equal(t, unknownNotice, gateway.lastSent(t).text)
}

func TestBonusFlow(t *testing.T) {
	service, gateway, _ := newTestService(t, &fakeShop{bonus: 50})

	service.HandleMessage(context.Background(), service.message("🎁Бонус"))
	require.Equal(t, "Бонусный баланс: 50", gateway.lastSent(t).text)
}

func TestBonusFlowError(t *testing.T) {
	shop := &fakeShop{bonusErr: &ecoline.TransportError{Op: "GET /profile/", Err: errors.New("timeout")}}
	service, gateway, _ := newTestService(t, shop)

	service.HandleMessage(context.Background(), service.message("Бонус"))
	require.Equal(t, genericErrorNotice, gateway.lastSent(t).text)
}

func TestHistoryFlow(t *testing.T) {
	shop := &fakeShop{
		haveLastOrder: true,
		lastOrder: ecoline.LastOrder{
			Date:    localDate(2026, time.August, 24, 0),
			DaysAgo: 7,
		},
	}
	service, gateway, _ := newTestService(t, shop)
	require.NoError(t, service.history.Append(Record{
		SubmittedDate:  "24.08.2026",
		SubmittedTime:  "10:15:00",
		DeliveryDate:   "25.08.2026",
		DeliveryWindow: "14.00-16.00",
		Payment:        "Наличными",
		UserName:       "Иван",
		UserID:         7,
	}))

	service.HandleMessage(context.Background(), service.message("📅История"))

	require.Len(t, gateway.sent, 2)
	require.Equal(t,
		"Информация с сайта:\nПредыдущий заказ был сделан: 24.08.2026\nПрошло дней: 7",
		gateway.sent[0].text)
	require.Contains(t, gateway.sent[1].text, "Информация от бота:")
	require.Contains(t, gateway.sent[1].text, "Заказ на время: 14.00-16.00")
	require.Contains(t, gateway.sent[1].text, "Оплата: Наличными")
	require.Contains(t, gateway.sent[1].text, "Пользователь: Иван (id: 7)")
}

// placeOrder drives the conversation through start, date and time
// selection up to the confirmation prompt.
func placeOrder(t *testing.T, service *Service, gateway *fakeGateway) string {
	ctx := context.Background()

	service.HandleMessage(ctx, service.message("💰Заказ"))
	prompt := gateway.lastSent(t)
	require.Contains(t, prompt.text, "Содержимое корзины:")
	require.Contains(t, prompt.text, "- Вода питьевая «Эколайн» 19 л - 1 шт")
	require.Contains(t, prompt.text, "Итоговая стоимость: 450 руб.")
	require.Equal(t, "Заказать", prompt.keyboard.Rows[0][0].Label)

	service.HandleCallback(ctx, service.callback("order"))
	edit := gateway.lastEdit(t)
	require.Equal(t, prompt.text, edit.text)
	require.Contains(t, edit.keyboard.Rows[0][0].Action, "date:")

	date := timezone.Now().AddDate(0, 0, 1).Format(timezone.DateLayout)
	service.HandleCallback(ctx, service.callback("date:"+date))
	edit = gateway.lastEdit(t)
	require.Contains(t, edit.text, "Дата доставки: "+date)

	service.HandleCallback(ctx, service.callback("time:CT3"))
	return date
}

func TestOrderEndToEnd(t *testing.T) {
	shop := &fakeShop{
		bonus:          50,
		formFields:     map[string]string{"ORDER_PROP_1": "Иван Иванов"},
		checkoutResult: ecoline.CheckoutResult{Accepted: true, PropertiesMatched: true, OrderID: "10771"},
	}
	service, gateway, _ := newTestService(t, shop)

	date := placeOrder(t, service, gateway)

	// bonus 50 < cost 450: payment auto-defaults to cash
	edit := gateway.lastEdit(t)
	require.Contains(t, edit.text, "Время доставки: 14.00-16.00")
	require.Contains(t, edit.text, "Оплата: Наличными")
	require.Equal(t, "Подтвердить", edit.keyboard.Rows[0][0].Label)

	service.HandleCallback(context.Background(), service.callback("apply"))
	edit = gateway.lastEdit(t)
	require.Contains(t, edit.text, "Статус заказа: ✅")
	require.Nil(t, edit.keyboard)

	require.Equal(t, date, shop.checkoutFields["ORDER_PROP_6"])
	require.Equal(t, "CT3", shop.checkoutFields["ORDER_PROP_7"])
	require.Equal(t, "1", shop.checkoutFields["PAY_SYSTEM_ID"])
	require.Equal(t, "phiz", shop.checkoutFields["orderType"])
	require.Equal(t, "Y", shop.checkoutFields["ORDER_PROP_9"])
	require.Equal(t, "sykt", shop.checkoutFields["ORDER_PROP_10"])
	require.Equal(t, "Иван Иванов", shop.checkoutFields["ORDER_PROP_1"])

	record, found, err := service.history.Latest()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, date, record.DeliveryDate)
	require.Equal(t, "14.00-16.00", record.DeliveryWindow)
	require.Equal(t, "Наличными", record.Payment)
	require.Equal(t, "Иван", record.UserName)
	require.Equal(t, int64(7), record.UserID)
}

func TestOrderWithBonusPayment(t *testing.T) {
	shop := &fakeShop{
		bonus:          1000,
		formFields:     map[string]string{},
		checkoutResult: ecoline.CheckoutResult{Accepted: true, PropertiesMatched: true},
	}
	service, gateway, _ := newTestService(t, shop)

	placeOrder(t, service, gateway)

	// bonus covers the cost, the payment choice is offered
	edit := gateway.lastEdit(t)
	require.Equal(t, "Наличными", edit.keyboard.Rows[0][0].Label)
	require.Equal(t, "Бонусами (1000)", edit.keyboard.Rows[1][0].Label)

	ctx := context.Background()
	service.HandleCallback(ctx, service.callback("pay:2"))
	edit = gateway.lastEdit(t)
	require.Contains(t, edit.text, "Оплата: Бонусами")

	service.HandleCallback(ctx, service.callback("apply"))
	require.Equal(t, "2", shop.checkoutFields["PAY_SYSTEM_ID"])

	record, found, err := service.history.Latest()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Бонусами", record.Payment)
}

func TestOrderFailsOpenToCash(t *testing.T) {
	shop := &fakeShop{
		bonusErr:       &ecoline.TransportError{Op: "GET /profile/", Err: errors.New("timeout")},
		formFields:     map[string]string{},
		checkoutResult: ecoline.CheckoutResult{Accepted: true, PropertiesMatched: true},
	}
	service, gateway, _ := newTestService(t, shop)

	placeOrder(t, service, gateway)

	// bonus lookup failed: straight to confirmation with cash
	edit := gateway.lastEdit(t)
	require.Contains(t, edit.text, "Оплата: Наличными")
	require.Equal(t, "Подтвердить", edit.keyboard.Rows[0][0].Label)

	service.HandleCallback(context.Background(), service.callback("apply"))
	require.Equal(t, "1", shop.checkoutFields["PAY_SYSTEM_ID"])
}

func TestOrderMismatchedProperties(t *testing.T) {
	shop := &fakeShop{
		bonus:          50,
		formFields:     map[string]string{},
		checkoutResult: ecoline.CheckoutResult{Accepted: true, PropertiesMatched: false, OrderID: "10772"},
	}
	service, gateway, _ := newTestService(t, shop)

	placeOrder(t, service, gateway)
	service.HandleCallback(context.Background(), service.callback("apply"))

	edit := gateway.lastEdit(t)
	require.Contains(t, edit.text, "Статус заказа: 🚨 Заказ принят. Ошибка в выборе товара.")

	// accepted-with-mismatch still counts as a placed order
	_, found, err := service.history.Latest()
	require.NoError(t, err)
	require.True(t, found)
}

func TestOrderRejected(t *testing.T) {
	shop := &fakeShop{
		bonus:          50,
		formFields:     map[string]string{},
		checkoutResult: ecoline.CheckoutResult{Accepted: false},
	}
	service, gateway, _ := newTestService(t, shop)

	placeOrder(t, service, gateway)
	service.HandleCallback(context.Background(), service.callback("apply"))

	require.Contains(t, gateway.lastEdit(t).text, "Статус заказа: ⛔")

	_, found, err := service.history.Latest()
	require.NoError(t, err)
	require.True(t, found)
}

func TestOrderCheckoutFailure(t *testing.T) {
	shop := &fakeShop{
		bonus:       50,
		formFields:  map[string]string{},
		checkoutErr: &ecoline.TransportError{Op: "POST /order/make.php", Err: errors.New("connection reset")},
	}
	service, gateway, _ := newTestService(t, shop)

	placeOrder(t, service, gateway)
	clearsBefore := shop.clearCalls
	service.HandleCallback(context.Background(), service.callback("apply"))

	// generic notice, compensating clear, no history record
	require.Equal(t, genericErrorNotice, gateway.lastEdit(t).text)
	require.Greater(t, shop.clearCalls, clearsBefore)

	_, found, err := service.history.Latest()
	require.NoError(t, err)
	require.False(t, found)
}

func TestOrderCancel(t *testing.T) {
	shop := &fakeShop{bonus: 50, formFields: map[string]string{}}
	service, gateway, _ := newTestService(t, shop)

	ctx := context.Background()
	service.HandleMessage(ctx, service.message("💰Заказ"))
	clearsBefore := shop.clearCalls

	service.HandleCallback(ctx, service.callback("cancel"))
	require.Greater(t, shop.clearCalls, clearsBefore)
	require.Len(t, gateway.deleted, 1)

	// stale confirmation press after cancel does nothing
	service.HandleCallback(ctx, service.callback("apply"))
	require.Nil(t, shop.checkoutFields)
}

func TestConcurrentConversationsAreIndependent(t *testing.T) {
	shop := &fakeShop{bonus: 50, formFields: map[string]string{}}
	gateway := &fakeGateway{}
	var factoryCalls atomic.Int32
	service := NewService(
		gateway,
		func(ctx context.Context) (OrderClient, error) {
			factoryCalls.Add(1)
			return shop, nil
		},
		Options{
			Product:     ecoline.Product{Name: "Вода питьевая «Эколайн» 19 л", Quantity: 1},
			HistoryPath: filepath.Join(t.TempDir(), "history.log"),
			Access:      AccessPolicy{Users: []int64{1, 2, 3, 4}},
		},
	)

	var wg sync.WaitGroup
	for i := int64(1); i <= 4; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			service.HandleMessage(context.Background(), MessageEvent{
				ChatID: id,
				From:   User{ID: id, FirstName: fmt.Sprintf("user-%d", id)},
				Text:   "Заказ",
			})
		}(i)
	}
	wg.Wait()

	// one client session per chat
	require.Equal(t, int32(4), factoryCalls.Load())
	require.Len(t, gateway.sent, 4)
}
