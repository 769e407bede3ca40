package orderbot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"ecoline-bot/lib/scrapers/ecoline"
	"ecoline-bot/lib/timezone"
)

const (
	denialNotice       = "Ой! Вы не авторизованы для работы с ботом."
	genericErrorNotice = "Ой! Произошла ошибка. Попробуйте еще раз позже."
	unknownNotice      = "Простите, я не поддерживаю этот тип запросов."
	welcomeNotice      = "Добро пожаловать."
	helpNotice         = "Заказ - произвести заказ воды\nБонус - просмотр бонусного баланса\nИстория - просмотр истории заказов"
)

type Options struct {
	Product     ecoline.Product
	HistoryPath string
	Access      AccessPolicy
}

// Service routes inbound messaging events into per-chat conversations.
type Service struct {
	gateway Gateway
	clients clientCache
	history HistoryLog
	options Options

	mu            sync.Mutex
	conversations map[int64]*conversation
}

func NewService(gateway Gateway, factory ClientFactory, options Options) *Service {
	return &Service{
		gateway:       gateway,
		clients:       newClientCache(factory),
		history:       NewHistoryLog(options.HistoryPath),
		options:       options,
		conversations: map[int64]*conversation{},
	}
}

func (s *Service) conversation(chatID int64) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[chatID]
	if !ok {
		conv = &conversation{chatID: chatID}
		s.conversations[chatID] = conv
	}
	return conv
}

// denyIfUnauthorized enforces the access policy before anything with a
// side effect runs. Unauthorized requesters get a fixed notice and no
// remote call is ever made on their behalf.
func (s *Service) denyIfUnauthorized(ctx context.Context, from User, chatID int64) bool {
	if s.options.Access.Allowed(from.ID, chatID) {
		return false
	}
	slog.WarnContext(
		ctx, "rejected unauthorized requester",
		"user", from.FirstName,
		"user_id", from.ID,
		"chat", chatID,
	)
	if _, err := s.gateway.SendMessage(ctx, chatID, denialNotice, nil); err != nil {
		slog.WarnContext(ctx, "failed to send denial notice", "chat", chatID, "err", err)
	}
	return true
}

func (s *Service) HandleMessage(ctx context.Context, event MessageEvent) {
	ctx, span := tracer.Start(ctx, "HandleMessage")
	defer span.End()

	if s.denyIfUnauthorized(ctx, event.From, event.ChatID) {
		return
	}

	switch event.Command {
	case "start":
		s.send(ctx, event.ChatID, welcomeNotice, replyKeyboard())
		return
	case "help":
		s.send(ctx, event.ChatID, helpNotice, nil)
		return
	case "":
	default:
		s.send(ctx, event.ChatID, unknownNotice, nil)
		return
	}

	switch ClassifyIntent(event.Text) {
	case IntentOrder:
		conv := s.conversation(event.ChatID)
		conv.mu.Lock()
		defer conv.mu.Unlock()
		s.startOrder(ctx, conv)
	case IntentBonus:
		s.sendBonus(ctx, event)
	case IntentHistory:
		s.sendHistory(ctx, event)
	default:
		s.send(ctx, event.ChatID, unknownNotice, nil)
	}
}

func (s *Service) HandleCallback(ctx context.Context, event CallbackEvent) {
	ctx, span := tracer.Start(ctx, "HandleCallback")
	defer span.End()

	if s.denyIfUnauthorized(ctx, event.From, event.ChatID) {
		return
	}

	action, err := DecodeAction(event.Data)
	if err != nil {
		slog.WarnContext(ctx, "rejected callback", "chat", event.ChatID, "err", err)
		span.RecordError(err)
		return
	}

	conv := s.conversation(event.ChatID)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	s.handleAction(ctx, conv, event.From, action)
}

func (s *Service) sendBonus(ctx context.Context, event MessageEvent) {
	ctx, span := tracer.Start(ctx, "sendBonus")
	defer span.End()

	s.typing(ctx, event.ChatID)

	client, err := s.clients.Get(ctx, event.ChatID)
	if err == nil {
		var present bool
		var bonus int
		bonus, present, err = client.Bonus(ctx)
		if err == nil {
			if !present {
				slog.WarnContext(ctx, "bonus balance absent from profile page", "chat", event.ChatID)
				return
			}
			s.send(ctx, event.ChatID, fmt.Sprintf("Бонусный баланс: %d", bonus), nil)
			slog.InfoContext(
				ctx, "bonus request finished",
				"user", event.From.FirstName,
				"user_id", event.From.ID,
				"bonus", bonus,
			)
			return
		}
	}
	slog.ErrorContext(ctx, "bonus request failed", "chat", event.ChatID, "err", err)
	span.RecordError(err)
	s.send(ctx, event.ChatID, genericErrorNotice, nil)
}

// sendHistory reports the last order twice: as the site renders it and
// as the local history log remembers it.
func (s *Service) sendHistory(ctx context.Context, event MessageEvent) {
	ctx, span := tracer.Start(ctx, "sendHistory")
	defer span.End()

	s.typing(ctx, event.ChatID)

	client, err := s.clients.Get(ctx, event.ChatID)
	if err != nil {
		slog.ErrorContext(ctx, "history request failed", "chat", event.ChatID, "err", err)
		span.RecordError(err)
		return
	}
	last, present, err := client.LastOrder(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "history request failed", "chat", event.ChatID, "err", err)
		span.RecordError(err)
		return
	}
	if !present {
		slog.WarnContext(ctx, "no orders found on site", "chat", event.ChatID)
		return
	}

	s.send(ctx, event.ChatID, fmt.Sprintf(
		"Информация с сайта:\nПредыдущий заказ был сделан: %s\nПрошло дней: %d",
		timezone.FormatDate(last.Date),
		last.DaysAgo,
	), nil)

	record, found, err := s.history.Latest()
	if err != nil {
		slog.WarnContext(ctx, "failed to read local history", "chat", event.ChatID, "err", err)
		return
	}
	if found {
		daysAgo := 0
		if submitted, parseErr := timezone.ParseDate(record.SubmittedDate); parseErr == nil {
			daysAgo = int(timezone.Now().Sub(submitted).Hours() / 24)
		}
		s.send(ctx, event.ChatID, fmt.Sprintf(
			"Информация от бота:\nПредыдущий заказ был сделан: %s %s\nЗаказ на дату: %s\nЗаказ на время: %s\nОплата: %s\nПользователь: %s (id: %d)\nПрошло дней: %d",
			record.SubmittedDate,
			record.SubmittedTime,
			record.DeliveryDate,
			record.DeliveryWindow,
			record.Payment,
			record.UserName,
			record.UserID,
			daysAgo,
		), nil)
	}

	slog.InfoContext(
		ctx, "history request finished",
		"user", event.From.FirstName,
		"user_id", event.From.ID,
	)
}

func (s *Service) send(ctx context.Context, chatID int64, text string, keyboard *Keyboard) {
	if _, err := s.gateway.SendMessage(ctx, chatID, text, keyboard); err != nil {
		slog.ErrorContext(ctx, "failed to send message", "chat", chatID, "err", err)
	}
}

func (s *Service) typing(ctx context.Context, chatID int64) {
	if err := s.gateway.SendTyping(ctx, chatID); err != nil {
		slog.DebugContext(ctx, "failed to send typing action", "chat", chatID, "err", err)
	}
}
