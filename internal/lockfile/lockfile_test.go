package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLockWritesPID(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	lock, err := AcquireLock(dir)
	require.NoError(t, err)
	defer lock.Release()

	assert.Equal(t, filepath.Join(dir, LockFileName), lock.Path())
	content, err := os.ReadFile(lock.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), fmt.Sprintf("pid=%d\n", os.Getpid())))
	assert.Contains(t, string(content), "started=")
}

func TestAcquireLockConflict(t *testing.T) {
	dir := t.TempDir()
	lock1, err := AcquireLock(dir)
	require.NoError(t, err)
	defer lock1.Release()

	lock2, err := AcquireLock(dir)
	if err == nil {
		lock2.Release()
		t.Fatal("second lock acquisition should have failed")
	}

	var lockErr *LockError
	require.ErrorAs(t, err, &lockErr)
	assert.Contains(t, err.Error(), dir)
	assert.Contains(t, lockErr.Holder, fmt.Sprintf("PID %d (running)", os.Getpid()))

	// The failed attempt must not clobber the holder's information.
	content, err := os.ReadFile(lock1.Path())
	require.NoError(t, err)
	assert.Contains(t, string(content), fmt.Sprintf("pid=%d", os.Getpid()))
}

func TestReleaseRemovesFileAndAllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir)
	require.NoError(t, err)

	require.NoError(t, lock.Release())
	_, err = os.Stat(filepath.Join(dir, LockFileName))
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, lock.Release())

	again, err := AcquireLock(dir)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestParsePID(t *testing.T) {
	assert.Equal(t, 1234, parsePID("pid=1234\nstarted=2024-05-01T10:30:00Z\n"))
	assert.Equal(t, 42, parsePID("started=x\npid=42\n"))
	assert.Equal(t, 0, parsePID("garbage"))
	assert.Equal(t, 0, parsePID("pid=abc"))
}

func TestDescribeHolder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LockFileName)

	assert.Empty(t, describeHolder(path))

	require.NoError(t, os.WriteFile(path, []byte("pid=999999999\n"), 0644))
	assert.Equal(t, "PID 999999999 (not running)", describeHolder(path))

	require.NoError(t, os.WriteFile(path, []byte("someone else\n"), 0644))
	assert.Equal(t, "someone else", describeHolder(path))
}
