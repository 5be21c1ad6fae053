package log

import (
	"time"

	"github.com/getsentry/sentry-go"
	sentrylogrus "github.com/getsentry/sentry-go/logrus"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const sentryFlushTimeout = 2 * time.Second

var sentryLevels = []logrus.Level{logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel}

// SentrySettings configures error reporting for the tutorial store. Tags are attached to every
// event, e.g. the database driver in use.
type SentrySettings struct {
	DSN         string
	Environment string
	Release     string
	Tags        map[string]string
}

// InitSentry forwards error-level entries written to logger to Sentry.
//
// An empty DSN disables reporting: the hub is nil and flush does nothing. The returned flush
// should be deferred by the caller so queued events leave before the process exits.
func InitSentry(logger *logrus.Logger, settings SentrySettings) (*sentry.Hub, func(), error) {
	if settings.DSN == "" {
		return nil, func() {}, nil
	}
	if logger == nil {
		return nil, nil, eris.New("logger is required to report tutorial store errors")
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              settings.DSN,
		Environment:      settings.Environment,
		Release:          settings.Release,
		Tags:             settings.Tags,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "creating sentry client")
	}

	hub := sentry.NewHub(client, sentry.NewScope())
	logger.AddHook(sentrylogrus.NewLogHookFromClient(sentryLevels, client))

	flush := func() {
		if !hub.Flush(sentryFlushTimeout) {
			Component(logger, "sentry").
				WithField("timeout_ms", sentryFlushTimeout.Milliseconds()).
				Warn("sentry flush timed out")
		}
	}

	return hub, flush, nil
}
