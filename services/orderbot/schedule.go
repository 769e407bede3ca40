package orderbot

import (
	"time"

	"ecoline-bot/lib/timezone"
)

// TimeWindow is one entry of the site's fixed delivery window catalog.
// The code goes into the order form verbatim, the label is what the
// user sees and what the history log records.
type TimeWindow struct {
	Code      string
	Label     string
	StartHour int
	EndHour   int
}

var TimeWindows = []TimeWindow{
	{Code: "CT1", Label: "9.00-11.00", StartHour: 9, EndHour: 11},
	{Code: "CT2", Label: "11.00-13.00", StartHour: 11, EndHour: 13},
	{Code: "CT3", Label: "14.00-16.00", StartHour: 14, EndHour: 16},
	{Code: "CT4", Label: "15.00-17.00", StartHour: 15, EndHour: 17},
	{Code: "CT5", Label: "16.00-18.00", StartHour: 16, EndHour: 18},
	{Code: "CT6", Label: "17.00-19.00", StartHour: 17, EndHour: 19},
	{Code: "CT7", Label: "18.00-20.00", StartHour: 18, EndHour: 20},
	{Code: "CT8", Label: "19.00-20.00", StartHour: 19, EndHour: 20},
}

func WindowByCode(code string) (TimeWindow, bool) {
	for _, window := range TimeWindows {
		if window.Code == code {
			return window, true
		}
	}
	return TimeWindow{}, false
}

// AvailableWindows filters the catalog down to windows whose start hour
// is still ahead of the given clock. Computed at prompt-render time: a
// window is only orderable for same-day delivery before it starts.
func AvailableWindows(now time.Time) []TimeWindow {
	var available []TimeWindow
	for _, window := range TimeWindows {
		if window.StartHour > now.Hour() {
			available = append(available, window)
		}
	}
	return available
}

// DateChoice is one offered delivery date with its rendered label
// (Сегодня, Завтра, or the date itself).
type DateChoice struct {
	Date  time.Time
	Label string
}

func skipWeekend(date time.Time) time.Time {
	switch date.Weekday() {
	case time.Saturday:
		return date.AddDate(0, 0, 2)
	case time.Sunday:
		return date.AddDate(0, 0, 1)
	}
	return date
}

func labelDate(now, date time.Time) string {
	switch {
	case sameDay(date, now):
		return "Сегодня"
	case sameDay(date, now.AddDate(0, 0, 1)):
		return "Завтра"
	}
	return timezone.FormatDate(date)
}

func sameDay(a, b time.Time) bool {
	ya, ma, da := a.Date()
	yb, mb, db := b.Date()
	return ya == yb && ma == mb && da == db
}

// DeliveryDates computes the two offered delivery dates: today (elided
// once every window's start hour has passed), weekends pushed to the
// following Monday, and the next working day after the first.
func DeliveryDates(now time.Time) [2]DateChoice {
	first := now
	if len(AvailableWindows(now)) == 0 {
		first = first.AddDate(0, 0, 1)
	}
	first = skipWeekend(first)

	second := skipWeekend(first.AddDate(0, 0, 1))

	return [2]DateChoice{
		{Date: first, Label: labelDate(now, first)},
		{Date: second, Label: labelDate(now, second)},
	}
}
