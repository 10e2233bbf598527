// Package storehours evaluates weekly open/close schedules.
package storehours

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// GracePeriod is the window after opening during which a store is reported
// closed so freshly booted players are not flagged.
const GracePeriod = 5 * time.Minute

type hourData struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	Second int `json:"second"`
}

// rawPeriod accepts both legacy encodings: structured hour/minute fields and
// formatted time strings.
type rawPeriod struct {
	OpeningHourData *hourData `json:"openingHourData"`
	ClosingHourData *hourData `json:"closingHourData"`
	Open            string    `json:"open"`
	Close           string    `json:"close"`
}

type rawDay struct {
	Day     string      `json:"day"`
	Status  bool        `json:"status"`
	Periods []rawPeriod `json:"periods"`
}

// Period is one open span within a day, in seconds of day. Close earlier
// than Open signals a span crossing midnight.
type Period struct {
	Open  int
	Close int
}

// Day is one weekday's schedule.
type Day struct {
	Name    string
	Open    bool
	Periods []Period
}

// ParseSchedule decodes a store-hours JSON document. Periods that parse under
// neither encoding are dropped rather than failing the whole schedule.
func ParseSchedule(raw string) ([]Day, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty schedule")
	}

	var rawDays []rawDay
	if err := json.Unmarshal([]byte(raw), &rawDays); err != nil {
		return nil, fmt.Errorf("invalid store hours JSON: %w", err)
	}

	days := make([]Day, 0, len(rawDays))
	for _, rd := range rawDays {
		day := Day{Name: rd.Day, Open: rd.Status}
		for _, rp := range rd.Periods {
			open, openOK := rp.openSeconds()
			close, closeOK := rp.closeSeconds()
			if !openOK || !closeOK {
				logrus.WithField("day", rd.Day).Debug("Dropping unparseable schedule period")
				continue
			}
			day.Periods = append(day.Periods, Period{Open: open, Close: close})
		}
		days = append(days, day)
	}
	return days, nil
}

func (p rawPeriod) openSeconds() (int, bool) {
	if p.OpeningHourData != nil {
		return p.OpeningHourData.seconds()
	}
	return ParseClock(p.Open)
}

func (p rawPeriod) closeSeconds() (int, bool) {
	if p.ClosingHourData != nil {
		return p.ClosingHourData.seconds()
	}
	return ParseClock(p.Close)
}

func (h *hourData) seconds() (int, bool) {
	if h.Hour < 0 || h.Hour > 23 || h.Minute < 0 || h.Minute > 59 || h.Second < 0 || h.Second > 59 {
		return 0, false
	}
	return h.Hour*3600 + h.Minute*60 + h.Second, true
}

// clockLayouts are tried in order when parsing formatted time strings.
var clockLayouts = []string{"15:04:05", "15:04", "3:04:05 PM", "3:04 PM"}

// ParseClock parses a time-of-day string in 24-hour or 12-hour format and
// returns seconds of day.
func ParseClock(value string) (int, bool) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return 0, false
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Hour()*3600 + t.Minute()*60 + t.Second(), true
		}
	}
	return 0, false
}

// isWithinWindow reports whether sec falls inside [open, close], treating
// close < open as a window crossing midnight.
func isWithinWindow(sec, open, close int) bool {
	if open <= close {
		return sec >= open && sec <= close
	}
	return sec >= open || sec <= close
}

// IsOpen determines whether a store is currently open. Any parse or timezone
// failure degrades to closed; this never returns an error to the caller.
//
// A period whose opening instant is within the last GracePeriod yields
// closed, so the first screenshots after power-on are not evaluated.
func IsOpen(rawSchedule, timezoneName string, now time.Time) bool {
	days, err := ParseSchedule(rawSchedule)
	if err != nil {
		logrus.WithError(err).Debug("Store hours unparseable, treating as closed")
		return false
	}

	loc, err := time.LoadLocation(timezoneName)
	if err != nil {
		logrus.WithField("timezone", timezoneName).Warn("Unrecognized timezone, treating as closed")
		return false
	}

	local := now.In(loc)
	dayName := local.Weekday().String()
	nowSec := local.Hour()*3600 + local.Minute()*60 + local.Second()

	for _, day := range days {
		if day.Name != dayName {
			continue
		}
		if !day.Open {
			return false
		}
		for _, period := range day.Periods {
			// Grace check uses the full opening instant on today's date,
			// not just the time of day.
			opening := time.Date(local.Year(), local.Month(), local.Day(),
				period.Open/3600, period.Open/60%60, period.Open%60, 0, loc)
			if !local.Before(opening) && !local.After(opening.Add(GracePeriod)) {
				logrus.Debug("Store opened within the last 5 minutes, skipping this cycle")
				return false
			}
			if isWithinWindow(nowSec, period.Open, period.Close) {
				return true
			}
		}
		// The matching day decided the outcome; no other day can apply.
		return false
	}
	return false
}
