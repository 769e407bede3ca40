package orderbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"ecoline-bot/lib/scrapers/ecoline"
	"ecoline-bot/lib/timezone"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/codes"
)

type state int

const (
	stateIdle state = iota
	stateAwaitingDate
	stateAwaitingTime
	stateAwaitingPayment
	stateAwaitingConfirmation
)

// OrderDraft accumulates the checkout form across the conversation.
// Created empty when an order starts, consumed exactly once by
// checkout, discarded after.
type OrderDraft struct {
	DeliveryDate string
	Window       TimeWindow
	Payment      PaymentMethod
	// hidden fields scraped from the order form; may be bound to the
	// session so they are fetched fresh for every attempt
	FormFields map[string]string
}

func (d *OrderDraft) FormValues() map[string]string {
	values := map[string]string{
		"orderType":         "phiz",
		"ORDER_DESCRIPTION": "",
		"ORDER_PROP_9":      "Y",
		"ORDER_PROP_10":     "sykt",
	}
	for name, value := range d.FormFields {
		values[name] = value
	}
	values["ORDER_PROP_6"] = d.DeliveryDate
	values["ORDER_PROP_7"] = d.Window.Code
	values["PAY_SYSTEM_ID"] = strconv.Itoa(int(d.Payment))
	return values
}

// conversation is the per-chat state machine. The mutex serializes
// transitions within one chat; distinct chats run concurrently against
// distinct remote sessions.
type conversation struct {
	mu     sync.Mutex
	chatID int64

	state  state
	client OrderClient
	draft  *OrderDraft

	// id and accumulated text of the order prompt message; every
	// transition appends to the transcript, never replaces it
	promptID   int
	transcript string
}

func (c *conversation) reset() {
	c.state = stateIdle
	c.draft = nil
	c.promptID = 0
	c.transcript = ""
}

// startOrder clears the basket, adds the configured product and shows
// the basket summary. Any failure lands in a terminal failure with a
// best-effort compensating clear.
func (s *Service) startOrder(ctx context.Context, conv *conversation) {
	ctx, span := tracer.Start(ctx, "startOrder")
	defer span.End()

	conv.reset()
	s.typing(ctx, conv.chatID)

	client, err := s.clients.Get(ctx, conv.chatID)
	if err != nil {
		s.failConversation(ctx, conv, err, "failed to open site session")
		return
	}
	conv.client = client

	cleared, err := client.ClearBasket(ctx)
	if err != nil || !cleared {
		if err == nil {
			err = errors.New("basket still has items after clearing")
		}
		s.failConversation(ctx, conv, err, "failed to clear basket before order")
		return
	}
	if err := client.AddToBasket(ctx, s.options.Product); err != nil {
		s.failConversation(ctx, conv, err, "failed to add product to basket")
		return
	}
	snapshot, err := client.Basket(ctx)
	if err != nil || snapshot.Empty() {
		if err == nil {
			// the add is silently skipped when the product cannot be
			// resolved, so the post-state is the only evidence
			err = errors.New("basket is empty after adding product")
		}
		s.failConversation(ctx, conv, err, "failed to stage order basket")
		return
	}

	text := "Содержимое корзины:"
	for _, item := range snapshot.Items {
		text += fmt.Sprintf("\n- %s - %d шт", item.Name, item.Quantity)
	}
	text += fmt.Sprintf("\n\nИтоговая стоимость: %s руб.", snapshot.Total.String())

	messageID, err := s.gateway.SendMessage(ctx, conv.chatID, text, orderKeyboard())
	if err != nil {
		slog.ErrorContext(ctx, "failed to send order prompt", "chat", conv.chatID, "err", err)
		span.RecordError(err)
		return
	}

	conv.promptID = messageID
	conv.transcript = text
	conv.draft = &OrderDraft{}
	conv.state = stateAwaitingDate
}

func (s *Service) handleAction(ctx context.Context, conv *conversation, from User, action Action) {
	switch action := action.(type) {
	case CancelAction:
		s.cancelOrder(ctx, conv)
	case StartOrderAction:
		if conv.state != stateAwaitingDate {
			s.ignoreStaleAction(ctx, conv, "order")
			return
		}
		err := s.gateway.EditMessage(ctx, conv.chatID, conv.promptID, conv.transcript, dateKeyboard(timezone.Now()))
		if err != nil {
			slog.ErrorContext(ctx, "failed to show date keyboard", "chat", conv.chatID, "err", err)
		}
	case SelectDateAction:
		if conv.state != stateAwaitingDate {
			s.ignoreStaleAction(ctx, conv, "date")
			return
		}
		s.selectDate(ctx, conv, action.Date)
	case SelectTimeAction:
		if conv.state != stateAwaitingTime {
			s.ignoreStaleAction(ctx, conv, "time")
			return
		}
		s.selectWindow(ctx, conv, action.Window)
	case SelectPayAction:
		if conv.state != stateAwaitingPayment {
			s.ignoreStaleAction(ctx, conv, "pay")
			return
		}
		s.selectPayment(ctx, conv, action.Method)
	case ApplyAction:
		if conv.state != stateAwaitingConfirmation {
			s.ignoreStaleAction(ctx, conv, "apply")
			return
		}
		s.applyOrder(ctx, conv, from)
	}
}

func (s *Service) ignoreStaleAction(ctx context.Context, conv *conversation, kind string) {
	slog.WarnContext(
		ctx, "ignoring callback that does not match conversation state",
		"chat", conv.chatID,
		"action", kind,
		"state", conv.state,
	)
}

func (s *Service) selectDate(ctx context.Context, conv *conversation, date string) {
	conv.draft.DeliveryDate = date
	conv.transcript += "\n\nДата доставки: " + date

	err := s.gateway.EditMessage(ctx, conv.chatID, conv.promptID, conv.transcript, timeKeyboard(timezone.Now(), date))
	if err != nil {
		slog.ErrorContext(ctx, "failed to show time keyboard", "chat", conv.chatID, "err", err)
		return
	}
	conv.state = stateAwaitingTime
}

// selectWindow fetches the hidden order form fields and decides the
// payment path. Anything going wrong on this path falls open to cash
// and jumps straight to confirmation instead of blocking the order.
func (s *Service) selectWindow(ctx context.Context, conv *conversation, window TimeWindow) {
	ctx, span := tracer.Start(ctx, "selectWindow")
	defer span.End()

	s.typing(ctx, conv.chatID)
	conv.draft.Window = window
	payLine := "\nВремя доставки: " + window.Label

	fields, err := conv.client.OrderFormFields(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to fetch order form fields, defaulting payment to cash", "chat", conv.chatID, "err", err)
		span.RecordError(err)

		conv.draft.Payment = PayCash
		conv.transcript += payLine + "\nОплата: Наличными"
		s.editPrompt(ctx, conv, applyKeyboard())
		conv.state = stateAwaitingConfirmation
		return
	}
	conv.draft.FormFields = fields

	bonus, haveBonus, bonusErr := conv.client.Bonus(ctx)
	snapshot, basketErr := conv.client.Basket(ctx)

	if bonusErr != nil || basketErr != nil || !haveBonus {
		err := errors.Join(bonusErr, basketErr)
		slog.WarnContext(ctx, "cannot compare bonus against cost, defaulting payment to cash", "chat", conv.chatID, "err", err)
		span.RecordError(err)

		conv.draft.Payment = PayCash
		conv.transcript += payLine + "\nОплата: Наличными"
		s.editPrompt(ctx, conv, applyKeyboard())
		conv.state = stateAwaitingConfirmation
		return
	}

	if decimal.NewFromInt(int64(bonus)).GreaterThanOrEqual(snapshot.Total) {
		conv.transcript += payLine
		s.editPrompt(ctx, conv, payKeyboard(bonus))
		conv.state = stateAwaitingPayment
		return
	}

	conv.draft.Payment = PayCash
	conv.transcript += payLine + "\nОплата: Наличными"
	s.editPrompt(ctx, conv, applyKeyboard())
	conv.state = stateAwaitingConfirmation
}

func (s *Service) selectPayment(ctx context.Context, conv *conversation, method PaymentMethod) {
	conv.draft.Payment = method
	conv.transcript += "\nОплата: " + method.Label()
	s.editPrompt(ctx, conv, applyKeyboard())
	conv.state = stateAwaitingConfirmation
}

// applyOrder submits the checkout. The three observable outcomes
// (accepted, rejected, accepted with altered properties) all append a
// history record; only client-level failure does not.
func (s *Service) applyOrder(ctx context.Context, conv *conversation, from User) {
	ctx, span := tracer.Start(ctx, "applyOrder")
	defer span.End()

	s.typing(ctx, conv.chatID)
	draft := conv.draft

	result, err := conv.client.Checkout(ctx, ecoline.CheckoutRequest{
		Fields:  draft.FormValues(),
		Product: s.options.Product,
	})
	if err != nil {
		var extractionErr *ecoline.ExtractionError
		if errors.As(err, &extractionErr) {
			// the POST went out, the order may exist server-side
			slog.ErrorContext(
				ctx, "checkout outcome is uncertain, manual reconciliation required",
				"chat", conv.chatID,
				"date", draft.DeliveryDate,
				"window", draft.Window.Code,
				"err", err,
			)
			span.SetStatus(codes.Error, "checkout outcome uncertain")
		}
		s.failConversation(ctx, conv, err, "checkout failed")
		return
	}

	var status string
	switch {
	case result.Accepted && result.PropertiesMatched:
		status = "✅"
	case !result.Accepted:
		status = "⛔"
	default:
		status = "🚨 Заказ принят. Ошибка в выборе товара."
	}
	conv.transcript += "\nСтатус заказа: " + status
	s.editPrompt(ctx, conv, nil)

	now := timezone.Now()
	record := Record{
		SubmittedDate:  timezone.FormatDate(now),
		SubmittedTime:  now.Format("15:04:05"),
		DeliveryDate:   draft.DeliveryDate,
		DeliveryWindow: draft.Window.Label,
		Payment:        draft.Payment.Label(),
		UserName:       from.FirstName,
		UserID:         from.ID,
	}
	if err := s.history.Append(record); err != nil {
		slog.ErrorContext(ctx, "failed to append history record", "chat", conv.chatID, "err", err)
		span.RecordError(err)
	}

	slog.InfoContext(
		ctx, "order request finished",
		"date", draft.DeliveryDate,
		"window", draft.Window.Label,
		"payment", draft.Payment.Label(),
		"user", from.FirstName,
		"user_id", from.ID,
		"order_id", result.OrderID,
		"accepted", result.Accepted,
		"properties_matched", result.PropertiesMatched,
	)
	conv.reset()
}

// cancelOrder works from any state: best-effort basket clear, prompt
// removed, draft discarded.
func (s *Service) cancelOrder(ctx context.Context, conv *conversation) {
	ctx, span := tracer.Start(ctx, "cancelOrder")
	defer span.End()

	if conv.client != nil {
		if _, err := conv.client.ClearBasket(ctx); err != nil {
			slog.WarnContext(ctx, "basket clear on cancel failed", "chat", conv.chatID, "err", err)
			span.RecordError(err)
		}
	}
	if conv.promptID != 0 {
		if err := s.gateway.DeleteMessage(ctx, conv.chatID, conv.promptID); err != nil {
			slog.WarnContext(ctx, "failed to delete order prompt", "chat", conv.chatID, "err", err)
		}
	}
	conv.reset()
}

// failConversation is the terminal failure path: log, single generic
// user-visible notice, best-effort compensating basket clear.
func (s *Service) failConversation(ctx context.Context, conv *conversation, err error, message string) {
	slog.ErrorContext(ctx, message, "chat", conv.chatID, "err", err)

	if conv.promptID != 0 {
		editErr := s.gateway.EditMessage(ctx, conv.chatID, conv.promptID, genericErrorNotice, nil)
		if editErr != nil {
			slog.WarnContext(ctx, "failed to edit prompt with failure notice", "chat", conv.chatID, "err", editErr)
		}
	} else {
		_, sendErr := s.gateway.SendMessage(ctx, conv.chatID, genericErrorNotice, nil)
		if sendErr != nil {
			slog.WarnContext(ctx, "failed to send failure notice", "chat", conv.chatID, "err", sendErr)
		}
	}

	if conv.client != nil {
		if _, clearErr := conv.client.ClearBasket(ctx); clearErr != nil {
			slog.WarnContext(ctx, "compensating basket clear failed", "chat", conv.chatID, "err", clearErr)
		}
	}
	conv.reset()
}

func (s *Service) editPrompt(ctx context.Context, conv *conversation, keyboard *Keyboard) {
	err := s.gateway.EditMessage(ctx, conv.chatID, conv.promptID, conv.transcript, keyboard)
	if err != nil {
		slog.ErrorContext(ctx, "failed to edit order prompt", "chat", conv.chatID, "err", err)
	}
}
