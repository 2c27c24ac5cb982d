package position

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceLockAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.pid")
	l, err := AcquireInstanceLock(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\n", os.Getpid()), string(data))

	require.NoError(t, l.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestInstanceLockRefusesLiveHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.pid")
	// Our own PID is certainly alive.
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644))

	_, err := AcquireInstanceLock(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another instance")
}

func TestInstanceLockReclaimsStalePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.pid")
	// PIDs cycle well below this on any sane system.
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), 0o644))

	l, err := AcquireInstanceLock(path)
	require.NoError(t, err)
	defer l.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\n", os.Getpid()), string(data))
}

func TestInstanceLockReclaimsGarbagePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))

	l, err := AcquireInstanceLock(path)
	require.NoError(t, err)
	defer l.Release()
}
