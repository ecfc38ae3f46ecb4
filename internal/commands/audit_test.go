package commands_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/auditlog"
)

func readAudit(t *testing.T, args ...string) []auditlog.Entry {
	t.Helper()
	stdout, _ := runSplit(t, append([]string{"audit"}, args...)...)
	var entries []auditlog.Entry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	return entries
}

func TestAudit_Empty(t *testing.T) {
	entries := readAudit(t, t.TempDir())
	assert.Empty(t, entries)
}

func TestAudit_LastRun(t *testing.T) {
	dir := t.TempDir()
	first := reconcileJSON(t, "--new", chaseCSV, "--existing", existingCSV, "--audit-dir", dir)
	second := reconcileJSON(t, "--new", chaseCSV, "--existing", existingCSV, "--audit-dir", dir)

	all := readAudit(t, dir)
	last := readAudit(t, dir, "--last")
	require.NotEmpty(t, last)
	assert.Less(t, len(last), len(all))
	for _, e := range last {
		assert.Equal(t, second.RunID, e.RunID)
	}

	byRun := readAudit(t, dir, "--run", first.RunID)
	require.NotEmpty(t, byRun)
	assert.Equal(t, first.RunID, byRun[0].RunID)
	assert.Equal(t, auditlog.ActionDuplicate, byRun[0].Action)
}
