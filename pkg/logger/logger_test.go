package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractorHandler_InjectsContextAttrs(t *testing.T) {
	t.Parallel()

	type runIDKey struct{}
	extractor := func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
			return slog.String("run_id", id), true
		}
		return slog.Attr{}, false
	}

	var buf bytes.Buffer
	h := newExtractorHandler(slog.NewJSONHandler(&buf, nil), []ContextExtractor{extractor})
	log := slog.New(h)

	ctx := context.WithValue(context.Background(), runIDKey{}, "run-42")
	log.InfoContext(ctx, "digest run progress", slog.Int("processed", 10))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "run-42", rec["run_id"])
	require.EqualValues(t, 10, rec["processed"])
}

func TestExtractorHandler_SkipsWhenExtractorDeclines(t *testing.T) {
	t.Parallel()

	extractor := func(ctx context.Context) (slog.Attr, bool) {
		return slog.Attr{}, false
	}

	var buf bytes.Buffer
	h := newExtractorHandler(slog.NewJSONHandler(&buf, nil), []ContextExtractor{extractor})
	slog.New(h).Info("plain message")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.NotContains(t, rec, "run_id")
}

func TestNewExtractorHandler_FiltersNilExtractors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	next := slog.NewJSONHandler(&buf, nil)
	h := newExtractorHandler(next, []ContextExtractor{nil, nil})

	// All-nil extractors collapse to the bare handler.
	require.Equal(t, slog.Handler(next), h)
}

func TestFanoutHandler_WritesToAllDestinations(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	)
	slog.New(h).Info("delivery status", slog.Int64("sent", 3))

	require.Contains(t, a.String(), `"sent":3`)
	require.Contains(t, b.String(), `"sent":3`)
}

func TestFanoutHandler_RespectsLevels(t *testing.T) {
	t.Parallel()

	var debugOut, errorOut bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&debugOut, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&errorOut, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	slog.New(h).Info("routine message")

	require.NotEmpty(t, debugOut.String())
	require.Empty(t, errorOut.String())
}

func TestNewWithSentry_EmptyDSNFallsBack(t *testing.T) {
	t.Parallel()

	log := NewWithSentry(Config{})
	require.NotNil(t, log)
	log.Info("works without sentry")
}
