package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Summary aggregates stored events within a time window.
type Summary struct {
	PeriodHours         int            `json:"period_hours"`
	SessionID           string         `json:"session_id"`
	TotalEvents         int            `json:"total_events"`
	EventsByType        map[string]int `json:"events_by_type"`
	EventsBySeverity    map[string]int `json:"events_by_severity"`
	SecurityEvents      int            `json:"security_events"`
	OperationsCompleted int            `json:"operations_completed"`
	OperationsFailed    int            `json:"operations_failed"`
}

// VerifyReport is the outcome of an integrity sweep over the stored events.
type VerifyReport struct {
	Total         int   `json:"total"`
	Valid         int   `json:"valid"`
	TamperedLines []int `json:"tampered_lines,omitempty"`
	MalformedLine []int `json:"malformed_lines,omitempty"`
}

// readEvents returns the events in the active store file not older than
// since. Rotated files are not consulted; the active file covers the window
// any summary consumer asks about in practice.
func (l *Logger) readEvents(since time.Time) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			continue // a torn or corrupt line must not hide the rest
		}
		ts, err := time.Parse(time.RFC3339Nano, ev.Timestamp)
		if err != nil || ts.Before(since) {
			continue
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return events, fmt.Errorf("read audit log: %w", err)
	}
	return events, nil
}

// Summarize aggregates counts by event type and severity for the last N
// hours.
func (l *Logger) Summarize(hours int) (*Summary, error) {
	if hours <= 0 {
		hours = 24
	}
	events, err := l.readEvents(time.Now().UTC().Add(-time.Duration(hours) * time.Hour))
	if err != nil {
		return nil, err
	}

	s := &Summary{
		PeriodHours:      hours,
		SessionID:        l.sessionID,
		EventsByType:     map[string]int{},
		EventsBySeverity: map[string]int{},
	}
	for _, ev := range events {
		s.TotalEvents++
		s.EventsByType[string(ev.EventType)]++
		s.EventsBySeverity[string(ev.Severity)]++

		switch ev.EventType {
		case EventSecurityViolation, EventPermissionDenied:
			s.SecurityEvents++
		case EventDeleteComplete, EventScanComplete, EventBackupRestore:
			s.OperationsCompleted++
		case EventDeleteFailed, EventBackupFailed:
			s.OperationsFailed++
		}
	}
	return s, nil
}

// Export writes the events from the last N hours to outputFile as a JSON
// array and returns how many were written.
func (l *Logger) Export(outputFile string, hours int) (int, error) {
	if hours <= 0 {
		hours = 24
	}
	events, err := l.readEvents(time.Now().UTC().Add(-time.Duration(hours) * time.Hour))
	if err != nil {
		return 0, err
	}
	if events == nil {
		events = []Event{}
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal export: %w", err)
	}
	if err := os.WriteFile(outputFile, data, 0o600); err != nil {
		return 0, fmt.Errorf("write export: %w", err)
	}
	return len(events), nil
}

// VerifyIntegrity recomputes every stored event's checksum and reports lines
// whose stored value no longer matches (or that cannot be parsed at all).
func (l *Logger) VerifyIntegrity() (*VerifyReport, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &VerifyReport{}, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	report := &VerifyReport{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		report.Total++
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			report.MalformedLine = append(report.MalformedLine, line)
			continue
		}
		if ev.Verify() {
			report.Valid++
		} else {
			report.TamperedLines = append(report.TamperedLines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return report, fmt.Errorf("read audit log: %w", err)
	}
	return report, nil
}
