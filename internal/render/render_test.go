package render

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/andpalmier/nestprog/pkg/progress"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{500 * time.Millisecond, "< 1s"},
		{5 * time.Second, "5s"},
		{65 * time.Second, "1m 5s"},
		{2*time.Hour + 3*time.Minute, "2h 3m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatDuration(tt.input), "formatDuration(%s)", tt.input)
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(0, 10))
	assert.Equal(t, 40, Percent(100, 40))
	assert.Equal(t, 33, Percent(3, 1))
	assert.Equal(t, 150, Percent(100, 150), "overshoot is not clamped")
}

func TestReporter_DrawsLine(t *testing.T) {
	var buf bytes.Buffer
	r := New(Config{Writer: &buf, Width: 10})

	r.Observe(progress.Signal{Total: 200, Progress: 50, Label: "hashing"})

	out := buf.String()
	assert.Contains(t, out, "[██░░░░░░░░]")
	assert.Contains(t, out, " 25% (50/200) hashing")
}

func TestReporter_OvershootDrawsFullBar(t *testing.T) {
	var buf bytes.Buffer
	r := New(Config{Writer: &buf, Width: 4})

	r.Observe(progress.Signal{Total: 10, Progress: 20})
	assert.Contains(t, buf.String(), "[████] 200% (20/10)")
}

func TestReporter_Quiet(t *testing.T) {
	var buf bytes.Buffer
	r := New(Config{Writer: &buf, Quiet: true})

	assert.True(t, r.Observe(progress.Signal{Total: 10, Progress: 5}))
	r.Finish("done")
	r.Error("boom")
	assert.Empty(t, buf.String())
}

func TestReporter_Verbose(t *testing.T) {
	var buf bytes.Buffer
	r := New(Config{Writer: &buf, Verbose: true})

	r.Observe(progress.Signal{Total: 10, Progress: 1, Label: "scanning"})
	r.Observe(progress.Signal{Total: 10, Progress: 2, Label: "scanning"})
	r.Observe(progress.Signal{Total: 10, Progress: 3, Label: "hashing"})

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "→ scanning\n"))
	assert.Equal(t, 1, strings.Count(out, "→ hashing\n"))
}

func TestReporter_RateLimit(t *testing.T) {
	var buf bytes.Buffer
	r := New(Config{Writer: &buf, MinInterval: time.Second})
	clock := time.Unix(1000, 0)
	r.now = func() time.Time { return clock }

	r.Observe(progress.Signal{Total: 10, Progress: 1})
	r.Observe(progress.Signal{Total: 10, Progress: 2})
	assert.NotContains(t, buf.String(), "(2/10)", "redraw within the interval is skipped")

	r.Observe(progress.Signal{Total: 10, Progress: 10})
	assert.Contains(t, buf.String(), "(10/10)", "completion is always drawn")

	clock = clock.Add(2 * time.Second)
	r.Observe(progress.Signal{Total: 20, Progress: 3})
	assert.Contains(t, buf.String(), "(3/20)")
}

func TestReporter_Finish(t *testing.T) {
	var buf bytes.Buffer
	r := New(Config{Writer: &buf})
	start := time.Unix(0, 0)
	r.startTime = start
	r.now = func() time.Time { return start.Add(90 * time.Second) }

	r.Finish("Checksummed 3 files")
	assert.Contains(t, buf.String(), "✓ Checksummed 3 files in 1m 30s\n")
}

func TestReporter_WithTracker(t *testing.T) {
	var buf bytes.Buffer
	r := New(Config{Writer: &buf, Width: 10})
	tr := progress.New(progress.WithObserver(r))

	require.NoError(t, tr.Init("job", 100))
	tr.Enter(50, "phase", 2)
	tr.Increment()

	assert.Contains(t, buf.String(), " 25% (25/100) phase")
}

func TestBar_Observe(t *testing.T) {
	var buf bytes.Buffer
	b := NewBar(BarConfig{Writer: &buf, Width: 10})

	assert.True(t, b.Observe(progress.Signal{Total: 100, Progress: 50, Label: "hashing"}))
	require.NotNil(t, b.bar)
	assert.Equal(t, int64(100), b.bar.GetMax64())
	assert.Contains(t, buf.String(), "hashing")
	assert.Contains(t, buf.String(), "50%")

	b.Observe(progress.Signal{Total: 200, Progress: 60, Label: "verify"})
	assert.Equal(t, int64(200), b.bar.GetMax64())
	assert.Equal(t, "verify", b.label)

	b.Finish()
}

func TestBar_FinishWithoutSignals(t *testing.T) {
	var buf bytes.Buffer
	b := NewBar(BarConfig{Writer: &buf})
	assert.NotPanics(t, b.Finish)
	assert.Empty(t, buf.String())
}

func TestLog_Observe(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l := NewLog(logger, slog.LevelInfo)

	assert.True(t, l.Observe(progress.Signal{Total: 1000, Progress: 250, Label: "scan"}))

	out := buf.String()
	assert.Contains(t, out, "msg=progress")
	assert.Contains(t, out, "component=progress")
	assert.Contains(t, out, "label=scan")
	assert.Contains(t, out, "progress=250")
	assert.Contains(t, out, "total=1000")
	assert.Contains(t, out, "percent=25")
}

func TestLog_BelowLevelIsDropped(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	l := NewLog(logger, slog.LevelInfo)

	l.Observe(progress.Signal{Total: 10, Progress: 1})
	assert.Empty(t, buf.String())
}

func TestTee(t *testing.T) {
	var calls []string
	yes := progress.ObserverFunc(func(progress.Signal) bool {
		calls = append(calls, "yes")
		return true
	})
	no := progress.ObserverFunc(func(progress.Signal) bool {
		calls = append(calls, "no")
		return false
	})

	assert.True(t, Tee(yes, nil, yes).Observe(progress.Signal{}))
	assert.False(t, Tee(no, yes).Observe(progress.Signal{}))
	assert.Equal(t, []string{"yes", "yes", "no", "yes"}, calls)
}
