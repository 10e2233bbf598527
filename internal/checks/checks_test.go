package checks

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	app_errors "player-watch/internal/errors"
	"player-watch/internal/models"
	"player-watch/internal/ncapi"
	"player-watch/internal/screenshot"
	"player-watch/internal/store"
	"player-watch/internal/types"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testNow is a Wednesday at noon UTC.
var testNow = time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)

// alwaysOpen keeps Wednesday open all day so testNow falls inside it.
const alwaysOpen = `[{"day":"Wednesday","status":true,"periods":[{"openingHourData":{"hour":0,"minute":0},"closingHourData":{"hour":23,"minute":59}}]}]`

// alwaysClosed marks Wednesday closed.
const alwaysClosed = `[{"day":"Wednesday","status":false,"periods":[]}]`

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.CheckRun{},
		&models.DeviceStatusRecord{},
		&models.VersionMismatchRecord{},
	))
	return db
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeAPI satisfies deviceAPI from canned pages. Paging ends when the page
// index runs past the configured pages.
type fakeAPI struct {
	onlinePages  [][]ncapi.License
	zonePages    map[string][][]ncapi.License
	offlinePages [][]ncapi.License
	files        map[string][]string
	images       map[string][]byte
	listErr      error
}

func (f *fakeAPI) GetLicenses(_ context.Context, filters ncapi.ListFilters, page int) (*ncapi.LicensePage, error) {
	if f.listErr != nil {
		return &ncapi.LicensePage{Page: page}, f.listErr
	}
	var pages [][]ncapi.License
	switch {
	case filters.DaysOfflineFrom != nil:
		pages = f.offlinePages
	case filters.TimezoneName != "":
		pages = f.zonePages[filters.TimezoneName]
	default:
		pages = f.onlinePages
	}
	if page < 1 || page > len(pages) {
		return &ncapi.LicensePage{Page: page}, nil
	}
	return &ncapi.LicensePage{Licenses: pages[page-1], Page: page}, nil
}

func (f *fakeAPI) GetDeviceFiles(_ context.Context, licenseID string) ([]string, error) {
	return f.files[licenseID], nil
}

func (f *fakeAPI) DownloadImage(_ context.Context, imageURL string) ([]byte, error) {
	data, ok := f.images[imageURL]
	if !ok {
		return nil, errors.New("image not found")
	}
	return data, nil
}

// fakeReporter records every write by tab title.
type fakeReporter struct {
	mu       sync.Mutex
	ensured  map[string][]string
	appended map[string][][]any
	upserted map[string]map[string][]any
	pruned   map[string]map[string]bool
	cleared  []string
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{
		ensured:  map[string][]string{},
		appended: map[string][][]any{},
		upserted: map[string]map[string][]any{},
		pruned:   map[string]map[string]bool{},
	}
}

func (r *fakeReporter) EnsureSheet(_ context.Context, title string, headers []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensured[title] = headers
	return nil
}

func (r *fakeReporter) AppendRow(_ context.Context, title string, values []any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appended[title] = append(r.appended[title], values)
	return nil
}

func (r *fakeReporter) AppendRows(_ context.Context, title string, rows [][]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appended[title] = append(r.appended[title], rows...)
	return nil
}

func (r *fakeReporter) UpsertRow(_ context.Context, title string, key string, values []any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upserted[title] == nil {
		r.upserted[title] = map[string][]any{}
	}
	r.upserted[title][key] = values
	return nil
}

func (r *fakeReporter) PruneRows(_ context.Context, title string, keep map[string]bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruned[title] = keep
	return nil
}

func (r *fakeReporter) ClearDataRows(_ context.Context, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, title)
	return nil
}

// fakeSignaler records restart signals.
type fakeSignaler struct {
	restarted []string
	result    bool
}

func (f *fakeSignaler) RestartPlayer(licenseID string) bool {
	f.restarted = append(f.restarted, licenseID)
	return f.result
}

// stubRecognizer returns fixed OCR text.
type stubRecognizer struct {
	text string
}

func (s *stubRecognizer) Recognize(context.Context, []byte) (string, error) {
	return s.text, nil
}

// pngFrame renders a 10x10 PNG, fully black or fully white.
func pngFrame(t *testing.T, black bool) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	fill := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	if black {
		fill = color.RGBA{A: 255}
	}
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func monitorConfig() types.MonitorConfig {
	return types.MonitorConfig{
		ScreenshotIntervalMinutes: 5,
		VersionIntervalMinutes:    10,
		OfflineIntervalMinutes:    60,
		ExpectedServerVersion:     "2.9.4",
		ExpectedUIVersion:         "3.0.47",
		Zones:                     []string{"Eastern"},
		ReportTimezone:            "UTC",
		PortalURLPattern:          "https://portal.example.com/licenses/%s/%s",
	}
}

func newScreenshotCheckForTest(t *testing.T, api *fakeAPI, reporter *fakeReporter, ocrText string) *ScreenshotHealthCheck {
	t.Helper()
	c := &ScreenshotHealthCheck{
		api:        api,
		reporter:   reporter,
		classifier: screenshot.NewClassifier(&stubRecognizer{text: ocrText}),
		monitorCfg: monitorConfig(),
		now:        func() time.Time { return testNow },
	}
	c.service = newService("screenshot_health", time.Minute, newTestDB(t), newTestStore(t), nil, c.run)
	return c
}

func TestScreenshotHealthCheck_Run(t *testing.T) {
	t.Parallel()

	blackURL := func(n byte) string {
		return "https://cdn.example.com/2024011709000" + string('0'+n) + ".jpg"
	}

	api := &fakeAPI{
		onlinePages: [][]ncapi.License{{
			{LicenseID: "id-black", LicenseKey: "key-black", StoreHours: alwaysOpen, TimezoneName: "UTC", HostName: "Store A", DealerName: "Dealer A"},
			{LicenseID: "id-closed", LicenseKey: "key-closed", StoreHours: alwaysClosed, TimezoneName: "UTC"},
			{LicenseID: "id-nofiles", LicenseKey: "key-nofiles", StoreHours: alwaysOpen, TimezoneName: "UTC"},
			{LicenseID: "id-stale", LicenseKey: "key-stale", StoreHours: alwaysOpen, TimezoneName: "UTC"},
			{LicenseID: "id-ok", LicenseKey: "key-ok", StoreHours: alwaysOpen, TimezoneName: "UTC"},
		}},
		files: map[string][]string{
			"id-black": {blackURL(1), blackURL(2), blackURL(3)},
			"id-stale": {"https://cdn.example.com/20240116090000.jpg"},
			"id-ok":    {"https://cdn.example.com/20240117100000.jpg"},
		},
		images: map[string][]byte{
			blackURL(1): pngFrame(t, true),
			blackURL(2): pngFrame(t, true),
			blackURL(3): pngFrame(t, true),
			"https://cdn.example.com/20240117100000.jpg": pngFrame(t, false),
		},
	}
	reporter := newFakeReporter()
	check := newScreenshotCheckForTest(t, api, reporter, "all good")

	stats := &RunStats{}
	require.NoError(t, check.run(context.Background(), stats))

	assert.Equal(t, 5, stats.DevicesSeen)
	assert.Equal(t, 4, stats.RowsWritten)

	// The tab is today's date in the report timezone.
	rows := reporter.appended["2024-01-17"]
	require.Len(t, rows, 4)
	assert.Contains(t, reporter.ensured, "2024-01-17")

	statusByKey := map[string]string{}
	for _, row := range rows {
		require.Len(t, row, 10)
		statusByKey[row[0].(string)] = row[7].(string)
	}
	assert.Equal(t, screenshot.StatusBlackScreen, statusByKey["key-black"])
	assert.Equal(t, screenshot.StatusNoScreenshots, statusByKey["key-nofiles"])
	// Screenshots exist but none from today: reported as NO_SCREENSHOTS.
	assert.Equal(t, screenshot.StatusNoScreenshots, statusByKey["key-stale"])

	// Every open device gets a row, including the healthy one. Only the
	// closed store is skipped.
	assert.Equal(t, screenshot.StatusOK, statusByKey["key-ok"])
	assert.NotContains(t, statusByKey, "key-closed")

	// Every evaluated device has a status record, including the healthy one.
	var records []models.DeviceStatusRecord
	require.NoError(t, check.db.Find(&records).Error)
	byKey := map[string]models.DeviceStatusRecord{}
	for _, r := range records {
		byKey[r.LicenseKey] = r
	}
	assert.Len(t, byKey, 4)
	assert.Equal(t, screenshot.StatusOK, byKey["key-ok"].Status)
	assert.Equal(t, screenshot.StatusBlackScreen, byKey["key-black"].Status)
	assert.NotContains(t, byKey, "key-closed")
}

func TestScreenshotHealthCheck_HealthyDeviceGetsRow(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		onlinePages: [][]ncapi.License{{
			{LicenseID: "id-ok", LicenseKey: "key-ok", StoreHours: alwaysOpen, TimezoneName: "UTC", HostName: "Store A", DealerName: "Dealer A"},
		}},
		files: map[string][]string{
			"id-ok": {"https://cdn.example.com/20240117100000.jpg"},
		},
		images: map[string][]byte{
			"https://cdn.example.com/20240117100000.jpg": pngFrame(t, false),
		},
	}
	reporter := newFakeReporter()
	check := newScreenshotCheckForTest(t, api, reporter, "all good")

	stats := &RunStats{}
	require.NoError(t, check.run(context.Background(), stats))

	assert.Equal(t, 1, stats.RowsWritten)
	rows := reporter.appended["2024-01-17"]
	require.Len(t, rows, 1)
	require.Len(t, rows[0], 10)
	assert.Equal(t, "key-ok", rows[0][0])
	assert.Equal(t, screenshot.StatusOK, rows[0][7])
	assert.Equal(t, "https://cdn.example.com/20240117100000.jpg", rows[0][5])
}

func TestScreenshotHealthCheck_RecordUpsert(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		onlinePages: [][]ncapi.License{{
			{LicenseID: "id-1", LicenseKey: "key-1", StoreHours: alwaysOpen, TimezoneName: "UTC"},
		}},
	}
	check := newScreenshotCheckForTest(t, api, newFakeReporter(), "")

	require.NoError(t, check.run(context.Background(), &RunStats{}))
	require.NoError(t, check.run(context.Background(), &RunStats{}))

	var count int64
	require.NoError(t, check.db.Model(&models.DeviceStatusRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "repeat runs must not duplicate status records")
}

func TestVersionZoneCheck_Run(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		zonePages: map[string][][]ncapi.License{
			"Eastern": {{
				{LicenseID: "id-good", LicenseKey: "key-good", ServerVersion: "2.9.4", UIVersion: "3.0.47"},
				{LicenseID: "id-bad", LicenseKey: "key-bad", ServerVersion: "2.9.3", UIVersion: "3.0.47"},
			}},
		},
	}
	reporter := newFakeReporter()
	signaler := &fakeSignaler{result: true}

	c := &VersionZoneCheck{
		api:        api,
		reporter:   reporter,
		signaler:   signaler,
		monitorCfg: monitorConfig(),
		now:        func() time.Time { return testNow },
	}
	c.service = newService("version_zone", time.Minute, newTestDB(t), newTestStore(t), nil, c.run)

	stats := &RunStats{}
	require.NoError(t, c.run(context.Background(), stats))

	assert.Equal(t, 2, stats.DevicesSeen)
	assert.Equal(t, 1, stats.RowsWritten)
	assert.Equal(t, []string{"id-bad"}, signaler.restarted)

	// Only the mismatch is upserted; the prune keep-set holds only it.
	require.Contains(t, reporter.upserted, "Eastern")
	require.Contains(t, reporter.upserted["Eastern"], "id-bad")
	assert.NotContains(t, reporter.upserted["Eastern"], "id-good")
	row := reporter.upserted["Eastern"]["id-bad"]
	require.Len(t, row, 4)
	assert.Equal(t, "Server: 2.9.3, UI: 3.0.47", row[1])
	assert.Equal(t, "https://portal.example.com/licenses/id-bad/key-bad", row[2])
	assert.Equal(t, "Version mismatch - player restart signal sent", row[3])
	assert.Equal(t, map[string]bool{"id-bad": true}, reporter.pruned["Eastern"])

	var records []models.VersionMismatchRecord
	require.NoError(t, c.db.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, "id-bad", records[0].LicenseID)
	assert.True(t, records[0].RestartSent)

	// The mismatch resolves: its record is removed and the keep-set empties.
	api.zonePages["Eastern"] = [][]ncapi.License{{
		{LicenseID: "id-good", LicenseKey: "key-good", ServerVersion: "2.9.4", UIVersion: "3.0.47"},
		{LicenseID: "id-bad", LicenseKey: "key-bad", ServerVersion: "2.9.4", UIVersion: "3.0.47"},
	}}
	require.NoError(t, c.run(context.Background(), &RunStats{}))

	var count int64
	require.NoError(t, c.db.Model(&models.VersionMismatchRecord{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	assert.Empty(t, reporter.pruned["Eastern"])
}

func TestVersionZoneCheck_FailedRestartStatus(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		zonePages: map[string][][]ncapi.License{
			"Eastern": {{
				{LicenseID: "id-bad", LicenseKey: "key-bad", ServerVersion: "0.0.1", UIVersion: "0.0.1"},
			}},
		},
	}
	reporter := newFakeReporter()

	c := &VersionZoneCheck{
		api:        api,
		reporter:   reporter,
		signaler:   &fakeSignaler{result: false},
		monitorCfg: monitorConfig(),
		now:        func() time.Time { return testNow },
	}
	c.service = newService("version_zone", time.Minute, newTestDB(t), newTestStore(t), nil, c.run)

	require.NoError(t, c.run(context.Background(), &RunStats{}))

	row := reporter.upserted["Eastern"]["id-bad"]
	require.Len(t, row, 4)
	assert.Equal(t, "Version mismatch - FAILED to send restart signal", row[3])

	var record models.VersionMismatchRecord
	require.NoError(t, c.db.First(&record).Error)
	assert.False(t, record.RestartSent)
}

func TestOfflineWindowCheck_Run(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		offlinePages: [][]ncapi.License{
			{{LicenseID: "id-1", LicenseKey: "key-1", TimezoneName: "Eastern", DaysOffline: 12, DealerName: "Dealer", HostName: "Host"}},
			{{LicenseID: "id-2", LicenseKey: "key-2", TimezoneName: "Pacific", DaysOffline: 29}},
		},
	}
	reporter := newFakeReporter()

	c := &OfflineWindowCheck{api: api, reporter: reporter}
	c.service = newService("offline_window", time.Minute, newTestDB(t), newTestStore(t), nil, c.run)

	stats := &RunStats{}
	require.NoError(t, c.run(context.Background(), stats))

	assert.Equal(t, 2, stats.DevicesSeen)
	assert.Equal(t, 2, stats.RowsWritten)
	assert.Equal(t, []string{offlineReportTitle}, reporter.cleared)

	rows := reporter.appended[offlineReportTitle]
	require.Len(t, rows, 2)
	assert.Equal(t, "id-1", rows[0][0])
	assert.Equal(t, 12, rows[0][3])
}

func TestOfflineWindowCheck_NoDevicesLeavesSheetAlone(t *testing.T) {
	t.Parallel()

	reporter := newFakeReporter()
	c := &OfflineWindowCheck{api: &fakeAPI{}, reporter: reporter}
	c.service = newService("offline_window", time.Minute, newTestDB(t), newTestStore(t), nil, c.run)

	require.NoError(t, c.run(context.Background(), &RunStats{}))
	assert.Empty(t, reporter.cleared)
	assert.Empty(t, reporter.appended)
}

func TestService_RunOnceRecordsHistory(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	s := newService("demo", time.Minute, db, newTestStore(t), nil, func(_ context.Context, stats *RunStats) error {
		stats.DevicesSeen = 3
		stats.RowsWritten = 2
		return nil
	})
	s.runOnce()

	var run models.CheckRun
	require.NoError(t, db.First(&run).Error)
	assert.Equal(t, "demo", run.CheckName)
	assert.Equal(t, models.RunStatusFinished, run.Status)
	assert.Equal(t, 3, run.DevicesSeen)
	assert.Equal(t, 2, run.RowsWritten)
	assert.NotEmpty(t, run.RunID)
	require.NotNil(t, run.FinishedAt)
}

func TestService_RunOnceRecordsFailure(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	s := newService("demo", time.Minute, db, newTestStore(t), nil, func(context.Context, *RunStats) error {
		return errors.New("backend unreachable")
	})
	s.runOnce()

	var run models.CheckRun
	require.NoError(t, db.First(&run).Error)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, "backend unreachable", run.Error)
}

func TestService_TryRunWhileRunning(t *testing.T) {
	t.Parallel()

	s := newService("demo", time.Minute, newTestDB(t), newTestStore(t), nil, func(context.Context, *RunStats) error {
		return nil
	})
	s.running.Store(true)

	err := s.TryRun()
	assert.ErrorIs(t, err, app_errors.ErrTaskInProgress)
}

func TestService_SkipWhileRunning(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	s := newService("demo", time.Minute, db, newTestStore(t), nil, func(context.Context, *RunStats) error {
		return nil
	})
	s.running.Store(true)
	s.runOnce()

	var count int64
	require.NoError(t, db.Model(&models.CheckRun{}).Count(&count).Error)
	assert.Equal(t, int64(0), count, "an in-flight run must suppress the next one")
}

func TestService_TriggerRunsCheck(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ran := make(chan struct{}, 1)
	s := newService("demo", time.Hour, db, newTestStore(t), nil, func(context.Context, *RunStats) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	// Initial run on start.
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("initial run did not happen")
	}

	require.NoError(t, s.TryRun())
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("triggered run did not happen")
	}
}
