package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Moscow")
	if err != nil {
		panic(err)
	}
}

// force the timezone to match the delivery region because the bot may be
// deployed anywhere, while date/cutoff arithmetic based on
// <time.Time>.Year()/Month()/Day()/Hour() must use the site's clock
func Now() time.Time {
	return time.Now().In(Location)
}

const DateLayout = "02.01.2006"

// renders a date the way the order form and the history log expect it
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, Location)
}
