package orderbot

import (
	"fmt"
	"time"

	"ecoline-bot/lib/timezone"
)

var cancelButton = Button{Label: "Отменить заказ", Action: "cancel"}

// replyKeyboard is the persistent keyboard shown on /start.
func replyKeyboard() *Keyboard {
	return &Keyboard{
		Rows: [][]Button{
			{{Label: "💰Заказ"}},
			{{Label: "🎁Бонус"}, {Label: "📅История"}},
		},
	}
}

func orderKeyboard() *Keyboard {
	return &Keyboard{
		Inline: true,
		Rows: [][]Button{
			{{Label: "Заказать", Action: "order"}},
			{cancelButton},
		},
	}
}

func dateKeyboard(now time.Time) *Keyboard {
	dates := DeliveryDates(now)
	var row []Button
	for _, choice := range dates {
		row = append(row, Button{
			Label:  choice.Label,
			Action: "date:" + timezone.FormatDate(choice.Date),
		})
	}
	return &Keyboard{
		Inline: true,
		Rows:   [][]Button{row, {cancelButton}},
	}
}

// timeKeyboard lays the windows out three per row. Same-day deliveries
// only offer windows that have not started yet.
func timeKeyboard(now time.Time, deliveryDate string) *Keyboard {
	windows := TimeWindows
	if deliveryDate == timezone.FormatDate(now) {
		windows = AvailableWindows(now)
	}

	var rows [][]Button
	var row []Button
	for _, window := range windows {
		row = append(row, Button{Label: window.Label, Action: "time:" + window.Code})
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []Button{cancelButton})
	return &Keyboard{Inline: true, Rows: rows}
}

func payKeyboard(bonus int) *Keyboard {
	return &Keyboard{
		Inline: true,
		Rows: [][]Button{
			{{Label: "Наличными", Action: "pay:1"}},
			{{Label: fmt.Sprintf("Бонусами (%d)", bonus), Action: "pay:2"}},
			{cancelButton},
		},
	}
}

func applyKeyboard() *Keyboard {
	return &Keyboard{
		Inline: true,
		Rows: [][]Button{
			{{Label: "Подтвердить", Action: "apply"}},
			{cancelButton},
		},
	}
}
