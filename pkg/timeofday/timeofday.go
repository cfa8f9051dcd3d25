// Package timeofday converts between instants and minutes since midnight.
package timeofday

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goodsign/monday"
)

const (
	MinutesPerDay = 24 * 60

	// DefaultLocale matches the "2:00 PM" style shown next to the slider.
	DefaultLocale = monday.LocaleEnUS

	twelveHourLayout     = "3:04 PM"
	twentyFourHourLayout = "15:04"
	anyTimeLabel         = "(any time)"
)

var (
	ErrMinutesOutOfRange = errors.New("minutes out of range")
	ErrUnknownLocale     = errors.New("unknown locale")
)

// ValidLocale reports whether monday knows locale.
func ValidLocale(locale monday.Locale) bool {
	for _, l := range monday.ListLocales() {
		if l == locale {
			return true
		}
	}
	return false
}

// TimeLayout returns the time-of-day part of the locale's date-time format,
// e.g. "3:04 PM" for en_US and "15.04" for fi_FI.
func TimeLayout(locale monday.Locale) (string, error) {
	if !ValidLocale(locale) {
		return "", fmt.Errorf("%w: %q", ErrUnknownLocale, locale)
	}
	dt, ok := monday.DateTimeFormatsByLocale[locale]
	if !ok {
		return twentyFourHourLayout, nil
	}
	if strings.Contains(dt, "PM") {
		return twelveHourLayout, nil
	}
	if i := strings.Index(dt, "15"); i >= 0 && i+5 <= len(dt) {
		return dt[i : i+5], nil
	}
	return twentyFourHourLayout, nil
}

// MinutesSinceMidnight returns hour*60+minute of t in its own location.
func MinutesSinceMidnight(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// FormatTime formats a minute of the day as a short time in DefaultLocale.
func FormatTime(minutes int) (string, error) {
	return FormatTimeLocale(minutes, DefaultLocale)
}

func FormatTimeLocale(minutes int, locale monday.Locale) (string, error) {
	if minutes < 0 || minutes >= MinutesPerDay {
		return "", fmt.Errorf("%w: %d", ErrMinutesOutOfRange, minutes)
	}
	if locale == "" {
		locale = DefaultLocale
	}
	layout, err := TimeLayout(locale)
	if err != nil {
		return "", err
	}

	t := time.Date(2000, time.January, 1, 0, minutes, 0, 0, time.UTC)
	return monday.Format(t, layout, locale), nil
}

// Label is the text shown next to the slider: the formatted time, or the
// any-time indicator for negative values.
func Label(minutes int, locale monday.Locale) (string, error) {
	if minutes < 0 {
		if minutes != -1 {
			return "", fmt.Errorf("%w: %d", ErrMinutesOutOfRange, minutes)
		}
		return anyTimeLabel, nil
	}
	return FormatTimeLocale(minutes, locale)
}
