package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// EventType classifies an audit event.
type EventType string

const (
	EventStartup           EventType = "startup"
	EventShutdown          EventType = "shutdown"
	EventScanStart         EventType = "scan_start"
	EventScanComplete      EventType = "scan_complete"
	EventDeleteStart       EventType = "delete_start"
	EventDeleteComplete    EventType = "delete_complete"
	EventDeleteFailed      EventType = "delete_failed"
	EventBackupCreated     EventType = "backup_created"
	EventBackupFailed      EventType = "backup_failed"
	EventBackupRestore     EventType = "backup_restore"
	EventSecurityViolation EventType = "security_violation"
	EventPermissionDenied  EventType = "permission_denied"
	EventPolicyDecision    EventType = "policy_decision"
	EventUserConfirmation  EventType = "user_confirmation"
	EventUserCancellation  EventType = "user_cancellation"
	EventError             EventType = "error"
	EventWarning           EventType = "warning"
	EventConfigChange      EventType = "config_change"
)

// Severity is the audit severity level.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Event is one append-only audit record. Details is deliberately an open
// string-keyed map: the field set genuinely varies by event type.
type Event struct {
	Timestamp  string            `json:"timestamp"`
	EventType  EventType         `json:"event_type"`
	Severity   Severity          `json:"severity"`
	User       string            `json:"user"`
	SessionID  string            `json:"session_id"`
	Message    string            `json:"message"`
	Details    map[string]any    `json:"details"`
	SystemInfo map[string]string `json:"system_info"`
	Checksum   string            `json:"checksum,omitempty"`
}

// checksumLen is the number of hex characters kept from the SHA-256 digest.
const checksumLen = 16

// ComputeChecksum returns the truncated SHA-256 of the event's canonical
// (sorted-key) JSON serialization with the checksum field excluded. Storing
// it in Checksum enables after-the-fact tamper detection via Verify.
func (e Event) ComputeChecksum() (string, error) {
	e.Checksum = ""
	canonical, err := canonicalJSON(e)
	if err != nil {
		return "", fmt.Errorf("canonicalize event: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:checksumLen], nil
}

// Verify recomputes the checksum over the stored event and compares it to the
// stored value.
func (e Event) Verify() bool {
	if e.Checksum == "" {
		return false
	}
	want, err := e.ComputeChecksum()
	if err != nil {
		return false
	}
	return want == e.Checksum
}

// canonicalJSON marshals v with object keys sorted, by round-tripping through
// a map (encoding/json sorts map keys).
func canonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
