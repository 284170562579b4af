package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nocson47/beaconofknowledge/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger
	Logger = slog.New(observability.NewContextHandler(
		slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	))
	t.Cleanup(func() { Logger = prev })
	return &buf
}

func TestStructuredLogger_Levels(t *testing.T) {
	buf := captureLogger(t)

	app := fiber.New()
	app.Use(requestid.New(), ContextMiddleware(), StructuredLogger())
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/missing", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) })
	app.Get("/boom", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusInternalServerError) })
	app.Get("/health/live", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	tests := []struct {
		path  string
		level string
		msg   string
	}{
		{"/ok", "level=INFO", "request processed"},
		{"/missing", "level=WARN", "request rejected"},
		{"/boom", "level=ERROR", "request failed"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			buf.Reset()
			_, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			line := buf.String()
			assert.Contains(t, line, tt.level)
			assert.Contains(t, line, tt.msg)
			assert.Contains(t, line, "request_id=")
		})
	}

	buf.Reset()
	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	assert.Empty(t, buf.String(), "probes log below info")
}

func TestNewLogger_Levels(t *testing.T) {
	ctx := t.Context()
	assert.True(t, NewLogger("development").Enabled(ctx, slog.LevelDebug))
	assert.False(t, NewLogger("production").Enabled(ctx, slog.LevelDebug))
	assert.False(t, NewLogger("test").Enabled(ctx, slog.LevelInfo))
	assert.True(t, NewLogger("test").Enabled(ctx, slog.LevelWarn))
}
