package log

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// Тесты меняют slog.Default(), поэтому без t.Parallel().

func newSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFrom_DefaultWhenEmpty(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	def := newSilent()
	slog.SetDefault(def)

	require.Equal(t, def, From(context.Background()))
	//nolint:staticcheck // проверяем защиту от nil-контекста
	require.Equal(t, def, From(nil))
}

func TestIntoFrom_RoundTrip(t *testing.T) {
	l := newSilent()
	ctx := Into(context.Background(), l)

	require.Equal(t, l, From(ctx))
}

func TestInto_NilLoggerIgnored(t *testing.T) {
	l := newSilent()
	ctx := Into(context.Background(), l)
	ctx = Into(ctx, nil)

	require.Equal(t, l, From(ctx))
}

func TestWith_AddsAttrsWithoutTouchingParent(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	parent := Into(context.Background(), base)
	child := With(parent, slog.String("request_id", "rid-1"))

	From(child).Info("child")
	require.Contains(t, buf.String(), "request_id=rid-1")

	buf.Reset()
	From(parent).Info("parent")
	require.NotContains(t, buf.String(), "request_id")
}
