package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext(t *testing.T) {
	t.Parallel()

	t.Run("Should return the injected logger instance when present", func(t *testing.T) {
		expectedLogger := slog.New(slog.NewJSONHandler(io.Discard, nil))

		ctx := WithContext(context.Background(), expectedLogger)

		assert.Same(t, expectedLogger, FromContext(ctx))
	})

	t.Run("Should return the global default logger when context is empty", func(t *testing.T) {
		currentDefault := slog.Default()

		assert.Same(t, currentDefault, FromContext(context.Background()))
	})
}

func TestWithCycle(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithContext(context.Background(), base)

	ctx, id := WithCycle(ctx)
	FromContext(ctx).Info("tick")

	_, err := uuid.Parse(id)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, id, line["cycle_id"])

	_, other := WithCycle(ctx)
	assert.NotEqual(t, id, other)
}
