package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	l, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestLogEventAppendsOneLinePerEvent(t *testing.T) {
	l := newTestLogger(t)
	l.LogEvent(EventScanComplete, SeverityInfo, "scan done", map[string]any{"files": 3})
	l.LogEvent(EventDeleteComplete, SeverityInfo, "deleted", nil)

	lines := readLines(t, l.Path())
	require.Len(t, lines, 2)

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev))
	assert.Equal(t, EventScanComplete, ev.EventType)
	assert.Equal(t, SeverityInfo, ev.Severity)
	assert.Equal(t, "scan done", ev.Message)
	assert.Equal(t, l.SessionID(), ev.SessionID)
	assert.NotEmpty(t, ev.Checksum)
	assert.NotEmpty(t, ev.Timestamp)
}

func TestEventChecksumRoundTrip(t *testing.T) {
	l := newTestLogger(t)
	l.LogEvent(EventSecurityViolation, SeverityWarning, "blocked", map[string]any{"path": "/etc"})

	lines := readLines(t, l.Path())
	require.Len(t, lines, 1)

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev))
	assert.True(t, ev.Verify())

	// Any mutation must break verification.
	ev.Message = "tampered"
	assert.False(t, ev.Verify())
}

func TestVerifyIntegrityFlagsTamperedLines(t *testing.T) {
	l := newTestLogger(t)
	l.LogEvent(EventScanComplete, SeverityInfo, "one", nil)
	l.LogEvent(EventScanComplete, SeverityInfo, "two", nil)

	lines := readLines(t, l.Path())
	require.Len(t, lines, 2)
	lines[1] = strings.Replace(lines[1], `"two"`, `"TWO"`, 1)
	require.NoError(t, os.WriteFile(l.Path(), []byte(strings.Join(lines, "\n")+"\n"), 0o600))

	report, err := l.VerifyIntegrity()
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Valid)
	assert.Equal(t, []int{2}, report.TamperedLines)
}

func TestSummarizeCountsByTypeAndSeverity(t *testing.T) {
	l := newTestLogger(t)
	l.LogEvent(EventScanComplete, SeverityInfo, "scan", nil)
	l.LogDeletion("/tmp/x", "trash", "success", "")
	l.LogDeletion("/tmp/y", "permanent", "failed", "permission denied")
	l.LogSecurityViolation("deny pattern hit", map[string]any{"path": "/"})

	s, err := l.Summarize(24)
	require.NoError(t, err)
	assert.Equal(t, 4, s.TotalEvents)
	assert.Equal(t, 1, s.EventsByType[string(EventSecurityViolation)])
	assert.Equal(t, 1, s.EventsByType[string(EventDeleteFailed)])
	assert.Equal(t, 1, s.SecurityEvents)
	assert.Equal(t, 2, s.OperationsCompleted) // scan + trash delete
	assert.Equal(t, 1, s.OperationsFailed)
	assert.Equal(t, 1, s.EventsBySeverity[string(SeverityError)])
}

func TestExportWritesWindowedJSONArray(t *testing.T) {
	l := newTestLogger(t)
	l.LogEvent(EventScanComplete, SeverityInfo, "recent", nil)

	out := filepath.Join(t.TempDir(), "export.json")
	n, err := l.Export(out, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var events []Event
	require.NoError(t, json.Unmarshal(data, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "recent", events[0].Message)
}

func TestSummarizeIgnoresEventsOutsideWindow(t *testing.T) {
	l := newTestLogger(t)

	old := Event{
		Timestamp: time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339Nano),
		EventType: EventScanComplete,
		Severity:  SeverityInfo,
		Message:   "ancient",
		Details:   map[string]any{},
	}
	sum, err := old.ComputeChecksum()
	require.NoError(t, err)
	old.Checksum = sum
	line, err := json.Marshal(old)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(l.Path(), append(line, '\n'), 0o600))

	s, err := l.Summarize(24)
	require.NoError(t, err)
	assert.Equal(t, 0, s.TotalEvents)
}

func TestRotationKeepsBoundedBackups(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, WithMaxSizeMB(1), WithMaxBackups(2))
	require.NoError(t, err)
	defer l.Close()

	// ~1.5MB of events forces at least one rotation.
	payload := strings.Repeat("x", 4096)
	for i := 0; i < 400; i++ {
		l.LogEvent(EventScanComplete, SeverityDebug, "fill", map[string]any{"blob": payload})
	}

	_, err = os.Stat(l.Path() + ".1")
	assert.NoError(t, err, "expected at least one rotated file")
	_, err = os.Stat(l.Path() + ".4")
	assert.True(t, os.IsNotExist(err), "backups beyond the cap must not exist")
}

func TestLogEventNeverPanicsAfterClose(t *testing.T) {
	l := newTestLogger(t)
	require.NoError(t, l.Close())
	assert.NotPanics(t, func() {
		l.LogEvent(EventError, SeverityError, "after close", nil)
	})
}
