// Package observability wires Sentry error reporting. A missing DSN disables
// reporting without failing startup.
package observability

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/config"
)

// InitSentry initializes the global Sentry client. With an empty DSN it is a
// no-op and every capture call silently does nothing.
func InitSentry(cfg config.SentryConfig, release, environment string) error {
	if cfg.DSN == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Release:          release,
		Environment:      environment,
		TracesSampleRate: cfg.TracesSampleRate,
	})
}

// CaptureException reports err to Sentry with the hub bound to ctx, if any.
func CaptureException(ctx context.Context, err error) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}

// AddBreadcrumb records a navigation breadcrumb for the current scope.
func AddBreadcrumb(ctx context.Context, category, message string, level sentry.Level) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.AddBreadcrumb(&sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Level:     level,
		Timestamp: time.Now(),
	}, nil)
}

// Flush drains pending events before shutdown.
func Flush(ctx context.Context) {
	deadline := 2 * time.Second
	if d, ok := ctx.Deadline(); ok {
		deadline = time.Until(d)
	}
	sentry.Flush(deadline)
}
