package recovery

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	return m
}

// seedOperation creates an original file, backs it up, deletes the original,
// and registers the operation, mirroring the deletion flow.
func seedOperation(t *testing.T, m *Manager, id string) (original, backup string) {
	t.Helper()
	srcDir := t.TempDir()
	original = filepath.Join(srcDir, "cache.bin")
	require.NoError(t, os.WriteFile(original, []byte("cache-payload"), 0o644))

	backups, err := m.CreateBackup(id, []string{original})
	require.NoError(t, err)
	require.Len(t, backups, 1)
	backup = backups[0]

	require.NoError(t, os.Remove(original))
	require.True(t, m.Register(id, "cache_cleanup", []string{original}, backups, 1, 13, nil))
	return original, backup
}

func TestRegisterThenCanRecoverRoundTrip(t *testing.T) {
	m := newTestManager(t)
	seedOperation(t, m, "op1")

	ok, reason := m.CanRecover("op1")
	assert.True(t, ok)
	assert.Equal(t, "Recovery possible", reason)
}

func TestRegisterRejectsMismatchedPathLists(t *testing.T) {
	m := newTestManager(t)
	ok := m.Register("bad", "cache_cleanup", []string{"/tmp/a", "/tmp/b"}, []string{"/backup/a"}, 2, 10, nil)
	assert.False(t, ok)

	_, reason := m.CanRecover("bad")
	assert.Contains(t, reason, "not found")
}

func TestRegisterRejectsEmptyOperationID(t *testing.T) {
	m := newTestManager(t)
	assert.False(t, m.Register("", "cache_cleanup", nil, nil, 0, 0, nil))
}

func TestCanRecoverRefusesWhenOriginalReappeared(t *testing.T) {
	m := newTestManager(t)
	original, _ := seedOperation(t, m, "op1")

	// Simulate the application recreating the path after deletion. The
	// conservative policy refuses automatic restore over it.
	require.NoError(t, os.WriteFile(original, []byte("newer content"), 0o644))

	ok, reason := m.CanRecover("op1")
	assert.False(t, ok)
	assert.Contains(t, reason, "already exist")
}

func TestCanRecoverRefusesWhenBackupMissing(t *testing.T) {
	m := newTestManager(t)
	_, backup := seedOperation(t, m, "op1")
	require.NoError(t, os.Remove(backup))

	ok, reason := m.CanRecover("op1")
	assert.False(t, ok)
	assert.Contains(t, reason, "Missing backup")
}

func TestUndoRestoresDeletedFile(t *testing.T) {
	m := newTestManager(t)
	original, _ := seedOperation(t, m, "op1")

	result := m.Undo("op1", nil)
	require.True(t, result.Success)
	assert.Equal(t, 1, result.FilesRestored)
	assert.Equal(t, "Recovery completed successfully", result.Message)

	data, err := os.ReadFile(original)
	require.NoError(t, err)
	assert.Equal(t, "cache-payload", string(data))
}

func TestUndoRestoresDirectoryTree(t *testing.T) {
	m := newTestManager(t)

	srcDir := filepath.Join(t.TempDir(), "unity-cache")
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("aa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "sub", "b.txt"), []byte("bbb"), 0o644))

	backups, err := m.CreateBackup("op2", []string{srcDir})
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(srcDir))
	require.True(t, m.Register("op2", "cache_cleanup", []string{srcDir}, backups, 2, 5, nil))

	result := m.Undo("op2", nil)
	require.True(t, result.Success)
	assert.Equal(t, 2, result.FilesRestored)
	assert.Equal(t, int64(5), result.SizeRestored)

	data, err := os.ReadFile(filepath.Join(srcDir, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bbb", string(data))
}

func TestUndoAggregatesPartialFailures(t *testing.T) {
	m := newTestManager(t)

	dir := t.TempDir()
	pathA := filepath.Join(dir, "a")
	pathB := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(pathA, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(pathB, []byte("b"), 0o644))

	backups, err := m.CreateBackup("op3", []string{pathA, pathB})
	require.NoError(t, err)
	require.NoError(t, os.Remove(pathA))
	require.NoError(t, os.Remove(pathB))

	// Register the first original under a parent that is a regular file:
	// MkdirAll over it fails with ENOTDIR no matter who runs the test, so
	// exactly one path of the batch cannot restore.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blocker"), []byte("x"), 0o644))
	badOriginal := filepath.Join(dir, "blocker", "a")
	require.True(t, m.Register("op3", "cache_cleanup", []string{badOriginal, pathB}, backups, 2, 2, nil))

	result := m.Undo("op3", nil)
	assert.True(t, result.Success)
	assert.Equal(t, []string{pathB}, result.RestoredPaths)
	assert.Equal(t, []string{badOriginal}, result.FailedPaths)
	assert.Contains(t, result.Message, "partially")

	m.mu.Lock()
	assert.Equal(t, StatusPartial, m.records["op3"].RecoveryStatus)
	m.mu.Unlock()
}

func TestUndoSelectiveRestore(t *testing.T) {
	m := newTestManager(t)

	dir := t.TempDir()
	pathA := filepath.Join(dir, "chrome-cache")
	pathB := filepath.Join(dir, "unity-cache")
	require.NoError(t, os.WriteFile(pathA, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(pathB, []byte("b"), 0o644))

	backups, err := m.CreateBackup("op4", []string{pathA, pathB})
	require.NoError(t, err)
	require.NoError(t, os.Remove(pathA))
	require.NoError(t, os.Remove(pathB))
	require.True(t, m.Register("op4", "cache_cleanup", []string{pathA, pathB}, backups, 2, 2, nil))

	result := m.Undo("op4", []string{pathA})
	require.True(t, result.Success)
	assert.Equal(t, []string{pathA}, result.RestoredPaths)

	_, err = os.Stat(pathB)
	assert.True(t, os.IsNotExist(err), "unselected path must stay absent")
}

func TestUndoUnknownOperation(t *testing.T) {
	m := newTestManager(t)
	result := m.Undo("ghost", nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "not found")
}

func TestRecordsPersistAcrossManagers(t *testing.T) {
	dir := t.TempDir()
	m1, err := NewManager(dir, nil)
	require.NoError(t, err)
	seedOperation(t, m1, "op1")

	m2, err := NewManager(dir, nil)
	require.NoError(t, err)
	ok, _ := m2.CanRecover("op1")
	assert.True(t, ok)
}

func TestListNewestFirst(t *testing.T) {
	m := newTestManager(t)
	seedOperation(t, m, "older")
	time.Sleep(5 * time.Millisecond)
	seedOperation(t, m, "newer")

	infos := m.List(7)
	require.Len(t, infos, 2)
	assert.Equal(t, "newer", infos[0].OperationID)
	assert.True(t, infos[0].CanRecover)
	assert.Equal(t, "Ready for recovery", infos[0].Reason)
}

func TestCleanupCompletedRemovesBackupPayloads(t *testing.T) {
	m := newTestManager(t)
	_, backup := seedOperation(t, m, "op1")

	result := m.Undo("op1", nil)
	require.True(t, result.Success)

	// Age the record past the cleanup horizon.
	m.mu.Lock()
	m.records["op1"].Timestamp = time.Now().UTC().Add(-30 * 24 * time.Hour).Format(time.RFC3339Nano)
	require.NoError(t, m.persistLocked())
	m.mu.Unlock()

	removed := m.CleanupCompleted(7)
	assert.Equal(t, 1, removed)
	_, err := os.Stat(backup)
	assert.True(t, os.IsNotExist(err))

	_, reason := m.CanRecover("op1")
	assert.Contains(t, reason, "not found")
}

func TestExpiredRecordsPurgedOnLoad(t *testing.T) {
	dir := t.TempDir()
	m1, err := NewManager(dir, nil)
	require.NoError(t, err)
	seedOperation(t, m1, "op1")

	m1.mu.Lock()
	m1.records["op1"].Timestamp = time.Now().UTC().Add(-40 * 24 * time.Hour).Format(time.RFC3339Nano)
	require.NoError(t, m1.persistLocked())
	m1.mu.Unlock()

	m2, err := NewManager(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m2.Statistics().TotalRecords)
}

func TestStatistics(t *testing.T) {
	m := newTestManager(t)
	seedOperation(t, m, "op1")

	stats := m.Statistics()
	assert.Equal(t, 1, stats.TotalRecords)
	assert.Equal(t, 1, stats.RecoverableOperations)
	assert.Equal(t, int64(13), stats.TotalSizeRecoverable)
	assert.Equal(t, 1, stats.StatusBreakdown[StatusPending])
	assert.Greater(t, stats.DatabaseSizeBytes, int64(0))
}
