package recovery

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cleanslate-tools/cleanslate/internal/audit"
)

const (
	recordsFileName = "records.json"
	lockFileName    = "records.lock"
	backupsDirName  = "backups"

	// defaultRetention is how long records and their backup payloads are
	// kept before being purged.
	defaultRetention = 30 * 24 * time.Hour
)

// EventLogger is the slice of the audit logger the recovery manager needs.
type EventLogger interface {
	LogEvent(eventType audit.EventType, severity audit.Severity, message string, details map[string]any)
}

// Manager owns the durable record store and the backup payload directory.
// All mutations go through an advisory file lock plus atomic rewrite, so a
// concurrent process or a mid-write kill cannot corrupt the store.
type Manager struct {
	dir         string
	backupsDir  string
	recordsPath string
	lockPath    string
	retention   time.Duration
	log         EventLogger

	mu      sync.Mutex
	records map[string]*Record
}

// Option adjusts Manager construction.
type Option func(*Manager)

// WithRetention overrides the record retention window.
func WithRetention(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retention = d
		}
	}
}

// NewManager opens the recovery store under dir (empty selects
// ~/.cleanslate/recovery), loading existing records and purging those past
// retention.
func NewManager(dir string, log EventLogger, opts ...Option) (*Manager, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve recovery dir: %w", err)
		}
		dir = filepath.Join(home, ".cleanslate", "recovery")
	}
	backups := filepath.Join(dir, backupsDirName)
	if err := os.MkdirAll(backups, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir recovery dir: %w", err)
	}

	m := &Manager{
		dir:         dir,
		backupsDir:  backups,
		recordsPath: filepath.Join(dir, recordsFileName),
		lockPath:    filepath.Join(dir, lockFileName),
		retention:   defaultRetention,
		log:         log,
	}
	for _, opt := range opts {
		opt(m)
	}

	records, err := loadRecords(m.recordsPath)
	if err != nil {
		return nil, err
	}
	m.records = records

	m.purgeExpired()
	return m, nil
}

// Dir returns the recovery root directory.
func (m *Manager) Dir() string { return m.dir }

// BackupsDir returns the directory holding backup payloads.
func (m *Manager) BackupsDir() string { return m.backupsDir }

func (m *Manager) logEvent(eventType audit.EventType, severity audit.Severity, message string, details map[string]any) {
	if m.log != nil {
		m.log.LogEvent(eventType, severity, message, details)
	}
}

// persistLocked rewrites the store under the advisory file lock. Callers
// hold m.mu.
func (m *Manager) persistLocked() error {
	lock, err := acquireLock(m.lockPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.release(); err != nil {
			slog.Warn("recovery: releasing store lock failed", "error", err)
		}
	}()
	return saveRecords(m.recordsPath, m.records)
}

// Register stores a recovery record for an operation that is about to run.
// It never panics or errors: a false return means the record could not be
// validated or persisted, and the failure has been logged.
func (m *Manager) Register(operationID, operationType string, originalPaths, backupPaths []string, filesAffected int, sizeAffected int64, metadata map[string]any) bool {
	if operationID == "" {
		m.logEvent(audit.EventBackupFailed, audit.SeverityError,
			"Recovery registration rejected: empty operation id", nil)
		return false
	}
	// Mismatched path lists are rejected here, at registration, so the
	// defect cannot surface later in the middle of an undo.
	if len(originalPaths) != len(backupPaths) {
		m.logEvent(audit.EventBackupFailed, audit.SeverityError,
			"Recovery registration rejected: path list length mismatch", map[string]any{
				"operation_id":   operationID,
				"original_count": len(originalPaths),
				"backup_count":   len(backupPaths),
			})
		return false
	}

	record := &Record{
		OperationID:    operationID,
		OperationType:  operationType,
		Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
		OriginalPaths:  append([]string(nil), originalPaths...),
		BackupPaths:    append([]string(nil), backupPaths...),
		Metadata:       metadata,
		FilesAffected:  filesAffected,
		SizeAffected:   sizeAffected,
		Checksum:       recordChecksum(operationID, operationType, originalPaths, backupPaths),
		RecoveryStatus: StatusPending,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[operationID] = record
	if err := m.persistLocked(); err != nil {
		delete(m.records, operationID)
		m.logEvent(audit.EventBackupFailed, audit.SeverityError,
			"Recovery registration failed to persist", map[string]any{
				"operation_id": operationID,
				"error":        err.Error(),
			})
		return false
	}

	m.logEvent(audit.EventBackupCreated, audit.SeverityInfo,
		"Recovery record created for operation: "+operationType, map[string]any{
			"operation_id":   operationID,
			"files_affected": filesAffected,
			"size_affected":  sizeAffected,
			"backup_count":   len(backupPaths),
		})
	return true
}

// CanRecover reports whether an undo is currently possible: every backup
// path must still exist and every original path must be absent. If an
// original has reappeared, automatic restoration is refused rather than
// silently overwriting newer content.
func (m *Manager) CanRecover(operationID string) (bool, string) {
	m.mu.Lock()
	record, ok := m.records[operationID]
	m.mu.Unlock()
	if !ok {
		return false, "Operation not found in recovery records"
	}

	var missingBackups []string
	for _, backup := range record.BackupPaths {
		if _, err := os.Stat(backup); err != nil {
			missingBackups = append(missingBackups, backup)
		}
	}
	if len(missingBackups) > 0 {
		return false, "Missing backup files: " + strings.Join(clip(missingBackups, 3), ", ")
	}

	var existingOriginals []string
	for _, original := range record.OriginalPaths {
		if _, err := os.Lstat(original); err == nil {
			existingOriginals = append(existingOriginals, original)
		}
	}
	if len(existingOriginals) > 0 {
		return false, "Original paths already exist: " + strings.Join(clip(existingOriginals, 3), ", ")
	}

	return true, "Recovery possible"
}

// Undo restores an operation's paths from their backups. selectivePaths,
// when non-empty, restricts restoration to originals matching any selector
// by path prefix (either direction). Failures are aggregated per path; one
// bad backup does not block restoring the rest.
func (m *Manager) Undo(operationID string, selectivePaths []string) *Result {
	start := time.Now()

	ok, reason := m.CanRecover(operationID)
	if !ok {
		return &Result{
			Success:     false,
			OperationID: operationID,
			Message:     "Cannot recover: " + reason,
			Duration:    time.Since(start),
		}
	}

	m.mu.Lock()
	record := m.records[operationID]
	record.RecoveryAttempts++
	record.LastRecoveryAttempt = time.Now().UTC().Format(time.RFC3339Nano)
	record.RecoveryStatus = StatusInProgress
	m.mu.Unlock()

	type pair struct{ original, backup string }
	var toRestore []pair
	for i, original := range record.OriginalPaths {
		if len(selectivePaths) > 0 && !matchesSelector(original, selectivePaths) {
			continue
		}
		toRestore = append(toRestore, pair{original, record.BackupPaths[i]})
	}

	result := &Result{OperationID: operationID}
	for _, p := range toRestore {
		files, size, err := restorePath(p.backup, p.original)
		if err != nil {
			result.FailedPaths = append(result.FailedPaths, p.original)
			msg := fmt.Sprintf("Failed to restore %s: %v", p.original, err)
			result.Warnings = append(result.Warnings, msg)
			m.mu.Lock()
			record.RecoveryErrors = append(record.RecoveryErrors, msg)
			m.mu.Unlock()
			continue
		}
		result.RestoredPaths = append(result.RestoredPaths, p.original)
		result.FilesRestored += files
		result.SizeRestored += size
	}

	m.mu.Lock()
	switch {
	case len(result.FailedPaths) == 0 && len(result.RestoredPaths) > 0:
		record.RecoveryStatus = StatusCompleted
	case len(result.RestoredPaths) > 0:
		record.RecoveryStatus = StatusPartial
	default:
		record.RecoveryStatus = StatusFailed
	}
	if err := m.persistLocked(); err != nil {
		slog.Warn("recovery: persisting record after undo failed", "error", err)
	}
	m.mu.Unlock()

	result.Success = len(result.RestoredPaths) > 0
	result.Duration = time.Since(start)
	switch {
	case result.Success && len(result.FailedPaths) == 0:
		result.Message = "Recovery completed successfully"
	case result.Success:
		result.Message = fmt.Sprintf("Recovery partially completed. %d paths failed.", len(result.FailedPaths))
	default:
		result.Message = "Recovery failed. No paths were restored."
	}

	severity := audit.SeverityInfo
	if !result.Success {
		severity = audit.SeverityError
	}
	m.logEvent(audit.EventBackupRestore, severity,
		"Recovery operation finished: "+record.OperationType, map[string]any{
			"operation_id":   operationID,
			"files_restored": result.FilesRestored,
			"size_restored":  result.SizeRestored,
			"failed_paths":   len(result.FailedPaths),
			"duration_ms":    result.Duration.Milliseconds(),
		})

	return result
}

// matchesSelector applies the selective-restore prefix rule in both
// directions: a selector may name an original exactly, a parent of it, or a
// child within it.
func matchesSelector(original string, selectors []string) bool {
	for _, sel := range selectors {
		if strings.HasPrefix(original, sel) || strings.HasPrefix(sel, original) {
			return true
		}
	}
	return false
}

// List returns operations registered within the last daysBack days, newest
// first, with their current recoverability.
func (m *Manager) List(daysBack int) []OperationInfo {
	if daysBack <= 0 {
		daysBack = 7
	}
	cutoff := time.Now().UTC().Add(-time.Duration(daysBack) * 24 * time.Hour)

	m.mu.Lock()
	records := make([]*Record, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r)
	}
	m.mu.Unlock()

	var infos []OperationInfo
	for _, r := range records {
		ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
		if err != nil || ts.Before(cutoff) {
			continue
		}
		ok, reason := m.CanRecover(r.OperationID)
		if ok {
			reason = "Ready for recovery"
		}
		infos = append(infos, OperationInfo{
			OperationID:      r.OperationID,
			OperationType:    r.OperationType,
			Timestamp:        r.Timestamp,
			FilesAffected:    r.FilesAffected,
			SizeAffected:     r.SizeAffected,
			CanRecover:       ok,
			RecoveryStatus:   r.RecoveryStatus,
			RecoveryAttempts: r.RecoveryAttempts,
			Reason:           reason,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Timestamp > infos[j].Timestamp })
	return infos
}

// CleanupCompleted removes completed records older than olderThanDays along
// with their backup payloads, returning how many were removed.
func (m *Manager) CleanupCompleted(olderThanDays int) int {
	if olderThanDays <= 0 {
		olderThanDays = 7
	}
	cutoff := time.Now().UTC().Add(-time.Duration(olderThanDays) * 24 * time.Hour)

	m.mu.Lock()
	defer m.mu.Unlock()

	var doomed []string
	for id, r := range m.records {
		if r.RecoveryStatus != StatusCompleted {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
		if err == nil && ts.Before(cutoff) {
			doomed = append(doomed, id)
		}
	}
	for _, id := range doomed {
		m.removeRecordLocked(id)
	}
	if len(doomed) > 0 {
		if err := m.persistLocked(); err != nil {
			slog.Warn("recovery: persisting after cleanup failed", "error", err)
		}
	}
	return len(doomed)
}

// Statistics summarizes the store.
func (m *Manager) Statistics() *Statistics {
	m.mu.Lock()
	records := make([]*Record, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r)
	}
	m.mu.Unlock()

	stats := &Statistics{
		StatusBreakdown:   map[Status]int{},
		RecoveryDirectory: m.dir,
	}
	for _, r := range records {
		stats.TotalRecords++
		stats.StatusBreakdown[r.RecoveryStatus]++
		if ok, _ := m.CanRecover(r.OperationID); ok {
			stats.RecoverableOperations++
			stats.TotalSizeRecoverable += r.SizeAffected
			stats.TotalFilesRecoverable += r.FilesAffected
		}
	}
	if st, err := os.Stat(m.recordsPath); err == nil {
		stats.DatabaseSizeBytes = st.Size()
	}
	return stats
}

// purgeExpired drops records past the retention window together with their
// backup payloads.
func (m *Manager) purgeExpired() {
	cutoff := time.Now().UTC().Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	var doomed []string
	for id, r := range m.records {
		ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
		if err != nil || ts.Before(cutoff) {
			doomed = append(doomed, id)
		}
	}
	for _, id := range doomed {
		m.removeRecordLocked(id)
	}
	if len(doomed) > 0 {
		if err := m.persistLocked(); err != nil {
			slog.Warn("recovery: persisting after purge failed", "error", err)
		}
		slog.Debug("recovery: purged expired records", "count", len(doomed))
	}
}

// removeRecordLocked deletes a record and its backup payloads. Callers hold
// m.mu and are responsible for persisting.
func (m *Manager) removeRecordLocked(operationID string) {
	record, ok := m.records[operationID]
	if !ok {
		return
	}
	for _, backup := range record.BackupPaths {
		// Only ever delete payloads inside our own backups directory; a
		// record pointing elsewhere is not ours to clean up.
		if !strings.HasPrefix(backup, m.backupsDir+string(filepath.Separator)) {
			continue
		}
		if err := os.RemoveAll(backup); err != nil {
			slog.Warn("recovery: could not remove backup payload", "path", backup, "error", err)
		}
	}
	// The per-operation backup directory may now be empty.
	_ = os.Remove(filepath.Join(m.backupsDir, operationID))
	delete(m.records, operationID)
}

func clip(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
