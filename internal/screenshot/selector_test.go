package screenshot

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{name: "full capture URL", url: "https://cdn.example.com/shots/20240115143000.jpg", expected: "20240115143000"},
		{name: "date only", url: "https://cdn.example.com/shots/20240115.jpg", expected: "20240115"},
		{name: "separators dropped", url: "https://cdn.example.com/2024-01-15_14-30-00.png", expected: "20240115143000"},
		{name: "no digits", url: "https://cdn.example.com/latest.jpg", expected: ""},
		{name: "bare filename", url: "20240115143000.jpg", expected: "20240115143000"},
		{name: "empty", url: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractTimestamp(tt.url))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ts       string
		expected string
	}{
		{name: "full timestamp", ts: "20240115143000", expected: "2024-01-15 14:30:00"},
		{name: "date only", ts: "20240115", expected: "2024-01-15"},
		{name: "partial time falls back to date", ts: "202401151430", expected: "2024-01-15"},
		{name: "too short", ts: "2024", expected: ""},
		{name: "empty", ts: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatTimestamp(tt.ts))
		})
	}
}

func TestFilterToday(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, loc)

	t.Run("matches today only", func(t *testing.T) {
		urls := []string{
			"https://cdn.example.com/20240115090000.jpg",
			"https://cdn.example.com/20240114235900.jpg",
			"https://cdn.example.com/20240115110000.jpg",
			"",
		}
		matches := FilterToday(urls, "America/Chicago", now)
		assert.Equal(t, []string{
			"https://cdn.example.com/20240115090000.jpg",
			"https://cdn.example.com/20240115110000.jpg",
		}, matches)
	})

	t.Run("caps candidates before matching", func(t *testing.T) {
		// Today's screenshots beyond the candidate cap must not be found.
		var urls []string
		for i := 0; i < MaxCandidates; i++ {
			urls = append(urls, fmt.Sprintf("https://cdn.example.com/202401140%d0000.jpg", i))
		}
		urls = append(urls, "https://cdn.example.com/20240115090000.jpg")

		matches := FilterToday(urls, "America/Chicago", now)
		assert.Empty(t, matches)
	})

	t.Run("timezone decides the date", func(t *testing.T) {
		// 2024-01-15 23:30 Chicago is already 2024-01-16 in UTC.
		late := time.Date(2024, 1, 15, 23, 30, 0, 0, loc)
		urls := []string{"https://cdn.example.com/20240115220000.jpg"}

		assert.Len(t, FilterToday(urls, "America/Chicago", late), 1)
		assert.Empty(t, FilterToday(urls, "UTC", late))
	})

	t.Run("unknown timezone yields no matches", func(t *testing.T) {
		urls := []string{"https://cdn.example.com/20240115090000.jpg"}
		assert.Nil(t, FilterToday(urls, "Mars/Olympus", now))
	})
}

func TestLatest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		urls     []string
		expected string
	}{
		{
			name: "newest filename wins",
			urls: []string{
				"https://cdn.example.com/20240115090000.jpg",
				"https://cdn.example.com/20240115143000.jpg",
				"https://cdn.example.com/20240115110000.jpg",
			},
			expected: "https://cdn.example.com/20240115143000.jpg",
		},
		{
			name:     "single entry",
			urls:     []string{"https://cdn.example.com/20240115090000.jpg"},
			expected: "https://cdn.example.com/20240115090000.jpg",
		},
		{name: "empty input", urls: nil, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Latest(tt.urls))
		})
	}
}
