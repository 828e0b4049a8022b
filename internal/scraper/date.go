package scraper

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var months = map[string]time.Month{
	"янв": time.January, "января": time.January,
	"фев": time.February, "февраля": time.February,
	"мар": time.March, "марта": time.March,
	"апр": time.April, "апреля": time.April,
	"мая": time.May, "май": time.May,
	"июн": time.June, "июня": time.June,
	"июл": time.July, "июля": time.July,
	"авг": time.August, "августа": time.August,
	"сен": time.September, "сентября": time.September,
	"окт": time.October, "октября": time.October,
	"ноя": time.November, "ноября": time.November,
	"дек": time.December, "декабря": time.December,
}

// Whole words marking posts that are months or years old.
var oldPostWords = map[string]bool{
	"год": true, "года": true, "лет": true,
	"месяц": true, "месяца": true, "месяцев": true,
}

const (
	recentMarker  = "назад"
	todayWord     = "сегодня"
	yesterdayWord = "вчера"
	clockSep      = " в "
)

// ParseDate resolves a displayed post date into an absolute time.
// Old posts ("2 года назад") resolve to the zero time, recent ones
// ("5 минут назад") to now. Everything else is "<day> в HH:MM" where day is
// "сегодня", "вчера" or "D month [YYYY]".
func (p *Parser) ParseDate(text string) (time.Time, error) {
	text = strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if text == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, word := range strings.Fields(text) {
		if oldPostWords[word] {
			return time.Time{}, nil
		}
	}

	now := p.now().In(p.loc)
	if strings.Contains(text, recentMarker) {
		return now, nil
	}

	day, clock, found := strings.Cut(text, clockSep)
	if !found {
		return time.Time{}, fmt.Errorf("no time of day in date %q", text)
	}

	var year int
	var month time.Month
	var dayOfMonth int
	switch day {
	case todayWord:
		year, month, dayOfMonth = now.Date()
	case yesterdayWord:
		year, month, dayOfMonth = now.AddDate(0, 0, -1).Date()
	default:
		parts := strings.Fields(day)
		if len(parts) < 2 || len(parts) > 3 {
			return time.Time{}, fmt.Errorf("unexpected day format %q", day)
		}
		d, err := strconv.Atoi(parts[0])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day of month %q: %w", parts[0], err)
		}
		m, ok := months[parts[1]]
		if !ok {
			return time.Time{}, fmt.Errorf("unknown month %q", parts[1])
		}
		year = now.Year()
		if len(parts) == 3 {
			y, err := strconv.Atoi(parts[2])
			if err != nil {
				return time.Time{}, fmt.Errorf("invalid year %q: %w", parts[2], err)
			}
			year = y
		}
		month, dayOfMonth = m, d
	}

	tod, err := time.Parse("15:04", strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time of day %q: %w", clock, err)
	}

	return time.Date(year, month, dayOfMonth, tod.Hour(), tod.Minute(), 0, 0, p.loc), nil
}
