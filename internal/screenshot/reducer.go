package screenshot

import (
	"sort"
	"strings"
)

// Device status codes, ordered by reporting severity.
const (
	StatusOK             = "OK"
	StatusErrorDisplayed = "ERROR_DISPLAYED"
	StatusStuckOnError   = "STUCK_ON_ERROR"
	StatusBlackScreen    = "OPEN_HOURS_BLACK_SCREEN"
	StatusNoScreenshots  = "NO_SCREENSHOTS"
	// StatusNameDateError means screenshots exist but none are from today.
	// The unified report folds it into NO_SCREENSHOTS.
	StatusNameDateError = "SCREENSHOT_NAME_DATE_ERROR"
)

const (
	blackScreenThreshold  = 3
	stuckOnErrorThreshold = 5
)

// Sampled pairs a screenshot URL with its classification outcome.
type Sampled struct {
	URL     string
	Outcome Outcome
}

// Reduction is the single per-device result of a screenshot sample.
type Reduction struct {
	Status              string
	ScreenshotURL       string
	ScreenshotTimestamp string
	DetectedText        string
}

// Reduce collapses up to SampleSize classified screenshots into one status.
//
// Precedence is strict: black-screen count first, then the stuck threshold,
// then any error text, then OK. A device can satisfy several conditions at
// once; the order here is the contract.
//
// The representative screenshot is the first image on which any error phrase
// was detected, otherwise the most recent capture in the sample.
func Reduce(sample []Sampled) Reduction {
	blackCount := 0
	phraseCount := 0
	firstErrorURL := ""
	unique := map[string]struct{}{}
	var urls []string

	for _, s := range sample {
		urls = append(urls, s.URL)
		if s.Outcome.Kind != OutcomeClassified {
			continue
		}
		if s.Outcome.Black {
			blackCount++
			continue
		}
		if len(s.Outcome.Phrases) > 0 {
			phraseCount += len(s.Outcome.Phrases)
			if firstErrorURL == "" {
				firstErrorURL = s.URL
			}
			for _, p := range s.Outcome.Phrases {
				unique[p] = struct{}{}
			}
		}
	}

	status := StatusOK
	switch {
	case blackCount >= blackScreenThreshold:
		status = StatusBlackScreen
	case phraseCount >= stuckOnErrorThreshold:
		status = StatusStuckOnError
	case phraseCount >= 1:
		status = StatusErrorDisplayed
	}

	representative := firstErrorURL
	if representative == "" {
		representative = Latest(urls)
	}

	return Reduction{
		Status:              status,
		ScreenshotURL:       representative,
		ScreenshotTimestamp: FormatTimestamp(ExtractTimestamp(representative)),
		DetectedText:        joinSortedUnique(unique),
	}
}

// ReportStatus maps an internal status to the code written in the unified
// report: the name-date case is reported as NO_SCREENSHOTS.
func ReportStatus(status string) string {
	if status == StatusNameDateError {
		return StatusNoScreenshots
	}
	return status
}

func joinSortedUnique(set map[string]struct{}) string {
	if len(set) == 0 {
		return ""
	}
	phrases := make([]string, 0, len(set))
	for p := range set {
		phrases = append(phrases, p)
	}
	sort.Strings(phrases)
	return strings.Join(phrases, ", ")
}
