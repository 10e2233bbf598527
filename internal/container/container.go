// Package container builds the dependency injection container.
package container

import (
	"player-watch/internal/app"
	"player-watch/internal/checks"
	"player-watch/internal/config"
	"player-watch/internal/db"
	"player-watch/internal/handler"
	"player-watch/internal/httpclient"
	"player-watch/internal/ncapi"
	"player-watch/internal/notify"
	"player-watch/internal/router"
	"player-watch/internal/screenshot"
	"player-watch/internal/sheets"
	"player-watch/internal/store"

	"go.uber.org/dig"
)

// BuildContainer creates and configures the dig container with all the
// application's constructors.
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	constructors := []any{
		config.NewManager,
		db.NewDB,
		store.NewStore,
		httpclient.NewHTTPClientManager,
		ncapi.NewClient,
		sheets.NewReporter,
		newRecognizer,
		screenshot.NewClassifier,
		notify.NewSocketEmitter,
		newRestartSignaler,
		notify.NewSlackNotifier,
		newAlerter,
		checks.NewScreenshotHealthCheck,
		checks.NewVersionZoneCheck,
		checks.NewOfflineWindowCheck,
		handler.NewServer,
		router.NewRouter,
		app.NewApp,
	}

	for _, constructor := range constructors {
		if err := container.Provide(constructor); err != nil {
			return nil, err
		}
	}

	return container, nil
}

// newRecognizer provides the OCR engine behind its interface.
func newRecognizer() screenshot.TextRecognizer {
	return screenshot.NewTesseractRecognizer()
}

// newRestartSignaler provides the socket emitter behind its interface.
func newRestartSignaler(emitter *notify.SocketEmitter) notify.RestartSignaler {
	return emitter
}

// newAlerter provides the Slack notifier behind its interface.
func newAlerter(notifier *notify.SlackNotifier) notify.Alerter {
	return notifier
}
