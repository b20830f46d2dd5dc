package log_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/CZERTAINLY/Recall/internal/log"
	"github.com/stretchr/testify/require"
)

func TestContextAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := log.New(&buf, false)

	ctx := log.ContextAttrs(t.Context(), slog.String("task_id", "42"))
	child := log.ContextAttrs(ctx, slog.String("module", "pslist"))
	sibling := log.ContextAttrs(ctx, slog.String("module", "netscan"))

	logger.InfoContext(child, "first")
	logger.InfoContext(sibling, "second")
	logger.DebugContext(child, "hidden")

	dec := json.NewDecoder(&buf)
	var first, second map[string]any
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	require.ErrorIs(t, dec.Decode(&map[string]any{}), io.EOF)

	require.Equal(t, "42", first["task_id"])
	require.Equal(t, "pslist", first["module"])
	require.Equal(t, "42", second["task_id"])
	require.Equal(t, "netscan", second["module"])
}

func TestWithAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := log.New(&buf, true).With("component", "runner")

	ctx := log.ContextAttrs(t.Context(), slog.String("task_id", "42"))
	logger.DebugContext(ctx, "debug")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "runner", rec["component"])
	require.Equal(t, "42", rec["task_id"])
}

func TestWriter(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"", "stderr", "stdout", "discard"} {
		w, err := log.Writer(name)
		require.NoError(t, err)
		require.NotNil(t, w)
	}
	_, err := log.Writer("/var/log/recall.log")
	require.Error(t, err)
}
