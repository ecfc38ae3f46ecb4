// Package auditlog records reconciliation decisions in a CSV file.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cleared-dev/recon/internal/reconcile"
	"github.com/cleared-dev/recon/internal/recurrence"
)

// Action names the kind of decision an Entry records.
type Action string

const (
	ActionDuplicate    Action = "duplicate"
	ActionSubscription Action = "subscription"
	ActionBill         Action = "bill"
	ActionMalformed    Action = "malformed"
	ActionRisk         Action = "risk"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	UserID    string    `json:"user_id"`
	Action    Action    `json:"action"`
	Subject   string    `json:"subject"`
	Details   string    `json:"details"`
}

// Header is the CSV header for audit-log.csv.
const Header = "timestamp,run_id,user_id,action,subject,details"

const (
	numFields    = 6
	logDir       = "logs"
	logFile      = "logs/audit-log.csv"
	colTimestamp = 0
	colRunID     = 1
	colUserID    = 2
	colAction    = 3
	colSubject   = 4
	colDetails   = 5
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colUserID] = e.UserID
	row[colAction] = string(e.Action)
	row[colSubject] = e.Subject
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp: ts,
		RunID:     record[colRunID],
		UserID:    record[colUserID],
		Action:    Action(record[colAction]),
		Subject:   record[colSubject],
		Details:   record[colDetails],
	}, nil
}

// FromReport lists the decisions in rep worth auditing: duplicates,
// detections, malformed inputs and every non-low risk assessment.
func FromReport(rep *reconcile.Report) []Entry {
	base := Entry{Timestamp: rep.StartedAt, RunID: rep.RunID, UserID: rep.UserID}
	var entries []Entry
	add := func(a Action, subject, details string) {
		e := base
		e.Action, e.Subject, e.Details = a, subject, details
		entries = append(entries, e)
	}

	for _, m := range rep.Duplicates {
		add(ActionDuplicate, subjectOf(m.New.ID, m.New.Description, m.New.Name),
			fmt.Sprintf("reason=%s existing=%s", m.Reason, subjectOf(m.Existing.ID, m.Existing.Description, m.Existing.Name)))
	}
	for _, s := range rep.Subscriptions {
		add(ActionSubscription, s.Merchant,
			fmt.Sprintf("frequency=%s amount=%s confidence=%s category=%s",
				s.Frequency, s.Amount.StringFixed(2), formatFloat(s.Confidence), s.Category))
	}
	for _, b := range rep.Bills {
		add(ActionBill, b.Merchant,
			fmt.Sprintf("cycle_day=%d frequency=%s amount=%s confidence=%s",
				b.CycleDay, b.Frequency, b.Amount.StringFixed(2), formatFloat(b.Confidence)))
	}
	for _, o := range rep.Outcomes {
		if o.Status == recurrence.StatusMalformed {
			add(ActionMalformed, subjectOf(o.TransactionID, o.Merchant), o.Reason)
		}
	}
	// Assessments are index-aligned with Unique.
	for i, a := range rep.Assessments {
		if !a.IsAnomaly {
			continue
		}
		subject := a.TransactionID
		if subject == "" && i < len(rep.Unique) {
			subject = subjectOf(rep.Unique[i].Name, rep.Unique[i].Description)
		}
		add(ActionRisk, subject,
			fmt.Sprintf("level=%s score=%s action=%q factors=%s",
				a.Level, formatFloat(a.Score), a.RecommendedAction, strings.Join(a.Factors, "; ")))
	}
	return entries
}

// Append writes entries to <root>/logs/audit-log.csv, creating the file and header if needed.
func Append(root string, entries []Entry) error {
	dir := filepath.Join(root, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(root, logFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <root>/logs/audit-log.csv.
// Returns an empty slice if the file does not exist.
func Read(root string) ([]Entry, error) {
	path := filepath.Join(root, logFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	entries := make([]Entry, 0, len(records)-1)
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// LastRun returns the entries written by the most recently appended run.
func LastRun(entries []Entry) []Entry {
	if len(entries) == 0 {
		return nil
	}
	return ForRun(entries, entries[len(entries)-1].RunID)
}

// ForRun returns the entries of run runID, in file order.
func ForRun(entries []Entry, runID string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out
}

// subjectOf returns the first non-empty candidate.
func subjectOf(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
