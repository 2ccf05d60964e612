package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newJSON(t *testing.T, level slog.Level) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level}))), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	buf.Reset()
	return out
}

func TestSlogAdapter_TypedFields(t *testing.T) {
	l, buf := newJSON(t, slog.LevelDebug)

	l.Info("assignment offered",
		String("order_id", "o-1"),
		Int("attempt", 2),
		Int64("amount", 15000),
		Float64("distance_km", 1.5),
		Bool("auto", true),
		Duration("ttl", 2*time.Minute),
		Err(errors.New("boom")),
	)

	line := decodeLine(t, buf)
	require.Equal(t, "assignment offered", line["msg"])
	require.Equal(t, "INFO", line["level"])
	require.Equal(t, "o-1", line["order_id"])
	require.EqualValues(t, 2, line["attempt"])
	require.EqualValues(t, 15000, line["amount"])
	require.InDelta(t, 1.5, line["distance_km"], 1e-9)
	require.Equal(t, true, line["auto"])
	require.Equal(t, "boom", line["err"])
}

func TestSlogAdapter_LevelFilter(t *testing.T) {
	l, buf := newJSON(t, slog.LevelWarn)

	l.Debug("d")
	l.Info("i")
	require.Zero(t, buf.Len())

	l.Warn("w")
	require.Equal(t, "WARN", decodeLine(t, buf)["level"])
	l.Error("e")
	require.Equal(t, "ERROR", decodeLine(t, buf)["level"])
}

func TestSlogAdapter_With(t *testing.T) {
	l, buf := newJSON(t, slog.LevelInfo)

	l.With(String("component", "bus")).Info("started", Int("subscribers", 3))

	line := decodeLine(t, buf)
	require.Equal(t, "bus", line["component"])
	require.EqualValues(t, 3, line["subscribers"])
	require.NoError(t, l.Sync())
}

func TestErr_NilError(t *testing.T) {
	require.Equal(t, Field{Key: "err"}, Err(nil))
	require.Equal(t, "<nil>", toAttr(Err(nil)).Value.String())
}

func TestNop_NoPanic(t *testing.T) {
	l := Nop()
	l.Debug("d", String("k", "v"))
	l.Info("i")
	l.Warn("w")
	l.Error("e", Err(errors.New("x")))
	require.NotNil(t, l.With(String("x", "y")))
	require.NoError(t, l.Sync())
}
