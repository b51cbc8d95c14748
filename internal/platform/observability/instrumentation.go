package observability

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	countersMu sync.Mutex
	counters   = map[string]float64{}
)

func resetCounters() {
	countersMu.Lock()
	counters = map[string]float64{}
	countersMu.Unlock()
}

// Enabled reports whether span and metric logging has been toggled on.
func Enabled() bool {
	_, cfg := currentLogger()
	return cfg.Enabled
}

// StartSpan records a lightweight span lifecycle around an operation.
func StartSpan(ctx context.Context, component, operation string, attrs ...slog.Attr) (context.Context, func(error)) {
	logger, cfg := currentLogger()
	if logger == nil || !cfg.Enabled {
		return ctx, func(error) {}
	}

	start := time.Now()
	base := append([]slog.Attr{
		slog.String("component", component),
		slog.String("operation", operation),
	}, attrs...)
	logger.LogAttrs(ctx, slog.LevelDebug, "obs span start", base...)

	return ctx, func(err error) {
		level := slog.LevelDebug
		end := append(base, slog.Duration("duration", time.Since(start)))
		if err != nil {
			level = slog.LevelWarn
			end = append(end, slog.Any("error", err))
		}
		logger.LogAttrs(ctx, level, "obs span end", end...)
	}
}

// RecordMetric accumulates value under name and emits a debug datapoint.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	countersMu.Lock()
	counters[name] += value
	countersMu.Unlock()

	logger, cfg := currentLogger()
	if logger == nil || !cfg.Enabled {
		return
	}

	attrs := []slog.Attr{
		slog.String("metric", name),
		slog.Float64("value", value),
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, labels[k]))
	}

	logger.LogAttrs(ctx, slog.LevelDebug, "obs metric", attrs...)
}

// RecordDuration records the milliseconds elapsed since start.
func RecordDuration(ctx context.Context, name string, start time.Time, labels map[string]string) {
	RecordMetric(ctx, name, float64(time.Since(start).Milliseconds()), labels)
}

// Snapshot returns accumulated totals, optionally filtered by name prefix.
func Snapshot(prefix string) map[string]float64 {
	countersMu.Lock()
	defer countersMu.Unlock()

	out := make(map[string]float64, len(counters))
	for name, v := range counters {
		if strings.HasPrefix(name, prefix) {
			out[name] = v
		}
	}
	return out
}
