package observability

import (
	"context"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/config"
)

func TestInitSentryEmptyDSN(t *testing.T) {
	assert.NoError(t, InitSentry(config.SentryConfig{}, "test", "test"))
}

func TestHelpersSafeWithoutClient(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		CaptureException(ctx, nil)
		CaptureException(ctx, assert.AnError)
		AddBreadcrumb(ctx, "pipeline", "run started", sentry.LevelInfo)
		Flush(ctx)
	})
}
