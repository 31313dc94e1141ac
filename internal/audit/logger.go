// Package audit maintains the append-only structured event log behind every
// security decision, deletion attempt, and recovery action. Logging never
// fails the caller: any write problem degrades to a fallback channel and the
// primary operation continues.
package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 5
	logFileName       = "audit.jsonl"
)

// Logger appends audit events to a JSONL store, one JSON object per line.
// Appends are serialized by an internal lock; rotation happens in-line once
// the file crosses its size cap.
type Logger struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	maxBytes   int64
	maxBackups int

	sessionID  string
	user       string
	systemInfo map[string]string
	fallback   *slog.Logger
}

// Option adjusts Logger construction.
type Option func(*Logger)

// WithMaxSizeMB caps the active log file size before rotation.
func WithMaxSizeMB(mb int) Option {
	return func(l *Logger) {
		if mb > 0 {
			l.maxBytes = int64(mb) * 1024 * 1024
		}
	}
}

// WithMaxBackups sets how many rotated files are kept.
func WithMaxBackups(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.maxBackups = n
		}
	}
}

// New opens (creating if needed) the audit store under dir. An empty dir
// selects ~/.cleanslate/logs.
func New(dir string, opts ...Option) (*Logger, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve audit log dir: %w", err)
		}
		dir = filepath.Join(home, ".cleanslate", "logs")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir audit log dir: %w", err)
	}

	path := filepath.Join(dir, logFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	l := &Logger{
		file:       f,
		path:       path,
		maxBytes:   defaultMaxSizeMB * 1024 * 1024,
		maxBackups: defaultMaxBackups,
		sessionID:  uuid.NewString()[:12],
		user:       currentUser(),
		systemInfo: collectSystemInfo(),
		fallback:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path returns the active log file path.
func (l *Logger) Path() string { return l.path }

// SessionID returns this process's audit session identifier.
func (l *Logger) SessionID() string { return l.sessionID }

// Close flushes and closes the store.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

// collectSystemInfo snapshots host facts once per process for event context.
func collectSystemInfo() map[string]string {
	info := map[string]string{
		"os":   runtime.GOOS,
		"arch": runtime.GOARCH,
		"pid":  fmt.Sprintf("%d", os.Getpid()),
	}
	if wd, err := os.Getwd(); err == nil {
		info["cwd"] = wd
	}
	if hi, err := host.Info(); err == nil {
		info["hostname"] = hi.Hostname
		info["platform"] = hi.Platform
		info["platform_version"] = hi.PlatformVersion
		info["kernel_version"] = hi.KernelVersion
	}
	return info
}

// LogEvent appends one audit event. It never returns an error: a failure to
// log must not block or corrupt the caller's safety decision, so problems are
// reported on the fallback channel instead.
func (l *Logger) LogEvent(eventType EventType, severity Severity, message string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	ev := Event{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		EventType:  eventType,
		Severity:   severity,
		User:       l.user,
		SessionID:  l.sessionID,
		Message:    message,
		Details:    details,
		SystemInfo: l.systemInfo,
	}

	sum, err := ev.ComputeChecksum()
	if err != nil {
		l.fallback.Error("audit: cannot checksum event", "error", err, "event_type", eventType)
		return
	}
	ev.Checksum = sum

	line, err := json.Marshal(ev)
	if err != nil {
		l.fallback.Error("audit: cannot marshal event", "error", err, "event_type", eventType)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeededLocked(); err != nil {
		l.fallback.Error("audit: rotation failed", "error", err)
		// Keep going; appending to an oversized file beats dropping the event.
	}
	if l.file == nil {
		l.fallback.Error("audit: store closed, event dropped", "event_type", eventType, "message", message)
		return
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		l.fallback.Error("audit: append failed", "error", err, "event_type", eventType, "message", message)
	}
}

func (l *Logger) rotateIfNeededLocked() error {
	if l.file == nil {
		return fmt.Errorf("audit file not open")
	}
	st, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("stat audit log: %w", err)
	}
	if st.Size() < l.maxBytes {
		return nil
	}
	if err := l.file.Close(); err != nil {
		l.file = nil
		return fmt.Errorf("close for rotate: %w", err)
	}

	for i := l.maxBackups - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", l.path, i)
		to := fmt.Sprintf("%s.%d", l.path, i+1)
		if _, err := os.Stat(from); err == nil {
			_ = os.Rename(from, to)
		}
	}
	_ = os.Rename(l.path, l.path+".1")

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		l.file = nil
		return fmt.Errorf("reopen audit log: %w", err)
	}
	l.file = f
	return nil
}

// LogScan records a completed scan operation.
func (l *Logger) LogScan(operation string, paths []string, totalSize int64, fileCount int, duration time.Duration) {
	l.LogEvent(EventScanComplete, SeverityInfo, "Scan operation completed: "+operation, map[string]any{
		"operation":        operation,
		"paths_scanned":    len(paths),
		"total_size_found": totalSize,
		"files_found":      fileCount,
		"scan_duration_ms": duration.Milliseconds(),
		"paths":            clipPaths(paths),
	})
}

// LogDeletion records a deletion attempt: success, cancellation, or failure.
func (l *Logger) LogDeletion(path, mode, outcome, reason string) {
	eventType := EventDeleteComplete
	severity := SeverityInfo
	switch outcome {
	case "failed":
		eventType = EventDeleteFailed
		severity = SeverityError
	case "cancelled":
		eventType = EventUserCancellation
	}
	l.LogEvent(eventType, severity, "Deletion "+outcome+": "+path, map[string]any{
		"path":    path,
		"mode":    mode,
		"outcome": outcome,
		"reason":  reason,
	})
}

// LogBackup records creation of a backup prior to a destructive operation.
func (l *Logger) LogBackup(sourcePath, backupPath string, success bool, size int64, errMsg string) {
	eventType, severity := EventBackupCreated, SeverityInfo
	if !success {
		eventType, severity = EventBackupFailed, SeverityError
	}
	l.LogEvent(eventType, severity, "Backup for "+sourcePath, map[string]any{
		"source_path": sourcePath,
		"backup_path": backupPath,
		"success":     success,
		"size":        size,
		"error":       errMsg,
	})
}

// LogSecurityViolation records a blocked operation or other security concern.
func (l *Logger) LogSecurityViolation(description string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	if _, ok := details["blocked"]; !ok {
		details["blocked"] = true
	}
	l.LogEvent(EventSecurityViolation, SeverityWarning, "Security event: "+description, details)
}

// LogUserConfirmation records an interactive confirmation or cancellation.
func (l *Logger) LogUserConfirmation(action string, confirmed bool, details map[string]any) {
	eventType := EventUserConfirmation
	verb := "confirmed"
	if !confirmed {
		eventType = EventUserCancellation
		verb = "cancelled"
	}
	if details == nil {
		details = map[string]any{}
	}
	details["action"] = action
	details["confirmed"] = confirmed
	l.LogEvent(eventType, SeverityInfo, "User "+verb+" action: "+action, details)
}

// clipPaths bounds the number of paths embedded in a single event.
func clipPaths(paths []string) []string {
	const max = 10
	if len(paths) <= max {
		return paths
	}
	return paths[:max]
}
