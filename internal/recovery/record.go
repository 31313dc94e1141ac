// Package recovery makes deletions reversible. Before a destructive
// operation runs, the caller registers a mapping from original paths to
// backup paths; this package persists those records durably, restores from
// them on request, and expires them after a retention window.
package recovery

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Status tracks the lifecycle of a recovery record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusPartial    Status = "partial"
	StatusCancelled  Status = "cancelled"
)

// Record is the durable mapping from one destructive operation to the
// backups needed to undo it. OriginalPaths and BackupPaths are index-aligned
// and always the same length.
type Record struct {
	OperationID         string         `json:"operation_id"`
	OperationType       string         `json:"operation_type"`
	Timestamp           string         `json:"timestamp"`
	OriginalPaths       []string       `json:"original_paths"`
	BackupPaths         []string       `json:"backup_paths"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	FilesAffected       int            `json:"files_affected"`
	SizeAffected        int64          `json:"size_affected"`
	Checksum            string         `json:"checksum"`
	RecoveryStatus      Status         `json:"recovery_status"`
	RecoveryAttempts    int            `json:"recovery_attempts"`
	LastRecoveryAttempt string         `json:"last_recovery_attempt,omitempty"`
	RecoveryErrors      []string       `json:"recovery_errors,omitempty"`
}

// Result is the outcome of an undo attempt. Recovery is best-effort:
// per-path failures aggregate here instead of aborting the batch.
type Result struct {
	Success       bool          `json:"success"`
	OperationID   string        `json:"operation_id"`
	Message       string        `json:"message"`
	RestoredPaths []string      `json:"restored_paths"`
	FailedPaths   []string      `json:"failed_paths"`
	FilesRestored int           `json:"files_restored"`
	SizeRestored  int64         `json:"size_restored"`
	Duration      time.Duration `json:"duration"`
	Warnings      []string      `json:"warnings,omitempty"`
}

// OperationInfo is the listing view over a record.
type OperationInfo struct {
	OperationID      string `json:"operation_id"`
	OperationType    string `json:"operation_type"`
	Timestamp        string `json:"timestamp"`
	FilesAffected    int    `json:"files_affected"`
	SizeAffected     int64  `json:"size_affected"`
	CanRecover       bool   `json:"can_recover"`
	RecoveryStatus   Status `json:"recovery_status"`
	RecoveryAttempts int    `json:"recovery_attempts"`
	Reason           string `json:"reason"`
}

// Statistics summarizes the recovery store.
type Statistics struct {
	TotalRecords          int            `json:"total_records"`
	RecoverableOperations int            `json:"recoverable_operations"`
	TotalSizeRecoverable  int64          `json:"total_size_recoverable"`
	TotalFilesRecoverable int            `json:"total_files_recoverable"`
	StatusBreakdown       map[Status]int `json:"status_breakdown"`
	RecoveryDirectory     string         `json:"recovery_directory"`
	DatabaseSizeBytes     int64          `json:"database_size_bytes"`
}

// recordChecksum fingerprints the immutable identity of a record.
func recordChecksum(operationID, operationType string, originalPaths, backupPaths []string) string {
	h := sha256.New()
	h.Write([]byte(operationID))
	h.Write([]byte(operationType))
	h.Write([]byte(strings.Join(originalPaths, ",")))
	h.Write([]byte(strings.Join(backupPaths, ",")))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
