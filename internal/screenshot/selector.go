// Package screenshot implements the screenshot health pipeline: selecting
// today's captures, classifying each image, and reducing the sample to one
// device status.
package screenshot

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// MaxCandidates caps how many listed URLs are considered per device.
	// The listing is newest-first; re-sorting before truncation would defeat that.
	MaxCandidates = 10
	// SampleSize caps how many of today's screenshots are downloaded and classified.
	SampleSize = 4
)

// ExtractTimestamp returns the digit-only capture timestamp embedded in a
// URL's filename: everything after the final path separator and before the
// extension, with non-digit separators dropped. Returns "" when the filename
// carries no digits.
func ExtractTimestamp(rawURL string) string {
	name := rawURL
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[:idx]
	}

	var b strings.Builder
	for _, r := range name {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

// FormatTimestamp renders an extracted timestamp for reporting:
// "20240115143000" becomes "2024-01-15 14:30:00", a bare date stays a date.
// Anything shorter than a full date renders empty.
func FormatTimestamp(ts string) string {
	if len(ts) < 8 {
		return ""
	}
	date := ts[:4] + "-" + ts[4:6] + "-" + ts[6:8]
	if len(ts) < 14 {
		return date
	}
	return date + " " + ts[8:10] + ":" + ts[10:12] + ":" + ts[12:14]
}

// FilterToday returns, in input order, the URLs among the first MaxCandidates
// whose filename date matches today in the given timezone. An unknown
// timezone yields no matches.
func FilterToday(urls []string, timezoneName string, now time.Time) []string {
	loc, err := time.LoadLocation(timezoneName)
	if err != nil {
		logrus.WithField("timezone", timezoneName).Warn("Unrecognized timezone, no screenshots match")
		return nil
	}
	today := now.In(loc).Format("20060102")

	candidates := urls
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}

	var matches []string
	for _, u := range candidates {
		if u == "" {
			continue
		}
		ts := ExtractTimestamp(u)
		if len(ts) >= 8 && ts[:8] == today {
			matches = append(matches, u)
		}
	}
	return matches
}

// Latest returns the URL whose filename is lexicographically greatest, which
// for fixed-width zero-padded timestamps is the most recent capture.
// Returns "" for an empty input.
func Latest(urls []string) string {
	best := ""
	bestName := ""
	for _, u := range urls {
		name := u
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		if best == "" || name > bestName {
			best = u
			bestName = name
		}
	}
	return best
}
