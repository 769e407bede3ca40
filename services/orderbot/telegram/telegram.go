package telegram

import (
	"context"
	"log/slog"

	"ecoline-bot/services/orderbot"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Handler consumes the inbound events the bot dispatches.
type Handler interface {
	HandleMessage(ctx context.Context, event orderbot.MessageEvent)
	HandleCallback(ctx context.Context, event orderbot.CallbackEvent)
}

// Bot adapts the Telegram Bot API to the conversation engine's gateway.
type Bot struct {
	api *tgbotapi.BotAPI
}

func NewBot(token string, verbose bool) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = verbose
	return &Bot{api: api}, nil
}

func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string, keyboard *orderbot.Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		if keyboard.Inline {
			msg.ReplyMarkup = inlineMarkup(keyboard)
		} else {
			msg.ReplyMarkup = replyMarkup(keyboard)
		}
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditMessage replaces the text and keyboard of a prompt. A nil
// keyboard strips the buttons, which is how finished prompts are
// frozen.
func (b *Bot) EditMessage(ctx context.Context, chatID int64, messageID int, text string, keyboard *orderbot.Keyboard) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if keyboard != nil {
		markup := inlineMarkup(keyboard)
		edit.ReplyMarkup = &markup
	}
	_, err := b.api.Send(edit)
	return err
}

func (b *Bot) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

func (b *Bot) SendTyping(ctx context.Context, chatID int64) error {
	_, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}

// Run long-polls for updates until the context is cancelled. Each
// update is dispatched on its own goroutine; serialization per chat is
// the engine's job, not the transport's.
func (b *Bot) Run(ctx context.Context, handler Handler) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	slog.InfoContext(ctx, "telegram bot started", "username", b.api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			go b.dispatch(ctx, handler, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, handler Handler, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		if query.Message == nil {
			return
		}
		handler.HandleCallback(ctx, orderbot.CallbackEvent{
			ChatID:    query.Message.Chat.ID,
			From:      orderbot.User{ID: query.From.ID, FirstName: query.From.FirstName},
			MessageID: query.Message.MessageID,
			Data:      query.Data,
		})
		if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			slog.WarnContext(ctx, "failed to acknowledge callback", "err", err)
		}
	case update.Message != nil && update.Message.From != nil:
		msg := update.Message
		handler.HandleMessage(ctx, orderbot.MessageEvent{
			ChatID:  msg.Chat.ID,
			From:    orderbot.User{ID: msg.From.ID, FirstName: msg.From.FirstName},
			Text:    msg.Text,
			Command: msg.Command(),
		})
	}
}

func inlineMarkup(keyboard *orderbot.Keyboard) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range keyboard.Rows {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(button.Label, button.Action))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func replyMarkup(keyboard *orderbot.Keyboard) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for _, row := range keyboard.Rows {
		var buttons []tgbotapi.KeyboardButton
		for _, button := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(button.Label))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}
