package orderbot

import (
	"fmt"
	"regexp"
	"strings"
)

// Intent is the classified meaning of a free-text message. Matching is
// by substring so the emoji-prefixed reply-keyboard labels route the
// same as the bare words.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentOrder
	IntentBonus
	IntentHistory
)

// intentKeywords is ordered: when a message contains several keywords
// the first match wins.
var intentKeywords = []struct {
	keyword string
	intent  Intent
}{
	{"Заказ", IntentOrder},
	{"Бонус", IntentBonus},
	{"История", IntentHistory},
}

func ClassifyIntent(text string) Intent {
	for _, entry := range intentKeywords {
		if strings.Contains(text, entry.keyword) {
			return entry.intent
		}
	}
	return IntentUnknown
}

// Action is a decoded callback payload. Exactly one concrete type per
// payload shape; unknown payloads are rejected by DecodeAction instead
// of being ignored.
type Action interface {
	isAction()
}

type StartOrderAction struct{}

type CancelAction struct{}

type SelectDateAction struct {
	// delivery date rendered as dd.mm.yyyy
	Date string
}

type SelectTimeAction struct {
	Window TimeWindow
}

type SelectPayAction struct {
	Method PaymentMethod
}

type ApplyAction struct{}

func (StartOrderAction) isAction() {}
func (CancelAction) isAction()     {}
func (SelectDateAction) isAction() {}
func (SelectTimeAction) isAction() {}
func (SelectPayAction) isAction()  {}
func (ApplyAction) isAction()      {}

var dateActionRegex = regexp.MustCompile(`^date:(\d{2}\.\d{2}\.\d{4})$`)

func DecodeAction(data string) (Action, error) {
	switch data {
	case "order":
		return StartOrderAction{}, nil
	case "cancel":
		return CancelAction{}, nil
	case "apply":
		return ApplyAction{}, nil
	case "pay:1":
		return SelectPayAction{Method: PayCash}, nil
	case "pay:2":
		return SelectPayAction{Method: PayBonus}, nil
	}

	if match := dateActionRegex.FindStringSubmatch(data); match != nil {
		return SelectDateAction{Date: match[1]}, nil
	}
	if code, ok := strings.CutPrefix(data, "time:"); ok {
		window, ok := WindowByCode(code)
		if !ok {
			return nil, fmt.Errorf("unknown time window %q", code)
		}
		return SelectTimeAction{Window: window}, nil
	}
	return nil, fmt.Errorf("unrecognized callback payload %q", data)
}

// PaymentMethod maps to the site's PAY_SYSTEM_ID values.
type PaymentMethod int

const (
	PayCash  PaymentMethod = 1
	PayBonus PaymentMethod = 2
)

func (m PaymentMethod) Label() string {
	if m == PayBonus {
		return "Бонусами"
	}
	return "Наличными"
}
