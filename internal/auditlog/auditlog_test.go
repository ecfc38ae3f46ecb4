package auditlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/dedup"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/reconcile"
	"github.com/cleared-dev/recon/internal/recurrence"
)

var testTime = time.Date(2025, 4, 2, 10, 30, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp: testTime,
		RunID:     "run-1",
		UserID:    "u1",
		Action:    ActionDuplicate,
		Subject:   "t1",
		Details:   "reason=fingerprint existing=e1",
	}
}

func TestAppend_NewFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, testEntry(), entries[0])
}

func TestAppend_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	e2 := testEntry()
	e2.Action = ActionRisk
	e2.Details = "level=medium, score=60"
	require.NoError(t, Append(dir, []Entry{e2}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionDuplicate, entries[0].Action)
	assert.Equal(t, "level=medium, score=60", entries[1].Details)

	data, err := os.ReadFile(filepath.Join(dir, logFile))
	require.NoError(t, err)
	assert.Equal(t, 3, len(splitLines(string(data))))
}

func TestRead_Missing(t *testing.T) {
	entries, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestRead_BadTimestamp(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, logDir), 0o755))
	content := Header + "\nyesterday,r,u,risk,t1,x\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, logFile), []byte(content), 0o644))

	_, err := Read(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestUnmarshalEntry_WrongFieldCount(t *testing.T) {
	_, err := UnmarshalEntry([]string{"a", "b"})
	assert.Error(t, err)
}

func TestFromReport(t *testing.T) {
	rep := &reconcile.Report{
		RunID:     "run-1",
		UserID:    "u1",
		StartedAt: testTime,
		Duplicates: []dedup.Match{{
			New:      model.RawTransaction{Description: "SQ *COFFEE SHOP #42"},
			Existing: model.RawTransaction{ID: "c1"},
			Reason:   model.MatchFingerprint,
		}},
		Subscriptions: []model.SubscriptionRecord{{
			UserID: "u1", Merchant: "spotify", Amount: decimal.RequireFromString("9.99"),
			Frequency: model.FrequencyMonthly, Confidence: 0.9,
			StartDate: civil.Date{Year: 2025, Month: 1, Day: 3}, Category: "Music Services",
		}},
		Bills: []model.BillRecord{{
			UserID: "u1", Merchant: "rent payment", IsBill: true, CycleDay: 1,
			Amount: decimal.NewFromInt(1200), Frequency: model.FrequencyMonthly, Confidence: 0.95,
		}},
		Outcomes: []recurrence.Outcome{
			{Status: recurrence.StatusMalformed, TransactionID: "x9", Reason: `unparseable date "soon"`},
			{Status: recurrence.StatusNotRecurring, Merchant: "corner deli"},
		},
		Assessments: []model.RiskAssessment{
			{TransactionID: "b1", Score: 60, Level: model.RiskMedium, IsAnomaly: true,
				Factors: []string{"amount $900.00 is more than 2x the shopping threshold of $400.00"},
				RecommendedAction: "FLAG for review - send verification notification to user"},
			{TransactionID: "s4", Level: model.RiskLow},
		},
	}

	entries := FromReport(rep)
	require.Len(t, entries, 5)

	assert.Equal(t, ActionDuplicate, entries[0].Action)
	assert.Equal(t, "SQ *COFFEE SHOP #42", entries[0].Subject)
	assert.Equal(t, "reason=fingerprint existing=c1", entries[0].Details)

	assert.Equal(t, ActionSubscription, entries[1].Action)
	assert.Equal(t, "frequency=monthly amount=9.99 confidence=0.90 category=Music Services", entries[1].Details)

	assert.Equal(t, ActionBill, entries[2].Action)
	assert.Equal(t, "cycle_day=1 frequency=monthly amount=1200.00 confidence=0.95", entries[2].Details)

	assert.Equal(t, ActionMalformed, entries[3].Action)
	assert.Equal(t, "x9", entries[3].Subject)

	assert.Equal(t, ActionRisk, entries[4].Action)
	assert.Equal(t, "b1", entries[4].Subject)
	assert.Contains(t, entries[4].Details, "level=medium score=60.00")

	for _, e := range entries {
		assert.Equal(t, "run-1", e.RunID)
		assert.Equal(t, testTime, e.Timestamp)
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func TestFromReport_RiskSubjectFallsBackToDescription(t *testing.T) {
	rep := &reconcile.Report{
		RunID:  "run-2",
		UserID: "u1",
		Unique: []model.RawTransaction{
			{Description: "RENT PAYMENT"},
			{Description: "BEST BUY 00412"},
		},
		Assessments: []model.RiskAssessment{
			{Level: model.RiskLow},
			{Level: model.RiskHigh, Score: 95, IsAnomaly: true, Factors: []string{"x"}},
		},
	}

	entries := FromReport(rep)
	require.Len(t, entries, 1)
	assert.Equal(t, "BEST BUY 00412", entries[0].Subject)
}

func TestLastRun(t *testing.T) {
	first, second := testEntry(), testEntry()
	second.RunID = "run-2"
	third := second
	third.Action = ActionBill

	got := LastRun([]Entry{first, second, third})
	require.Len(t, got, 2)
	assert.Equal(t, ActionBill, got[1].Action)

	assert.Len(t, ForRun([]Entry{first, second, third}, "run-1"), 1)
	assert.Nil(t, LastRun(nil))
}
