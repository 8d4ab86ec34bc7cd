package reparse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() fakeRegistry {
	return fakeRegistry{values: map[string]string{systemRootKey + "\\" + systemRootValue: `C:\Windows`}}
}

func TestTfsDavEngager_EngageInstallsReparsePointOnFreshSystem(t *testing.T) {
	fs := newFakeFS()
	e := NewTfsDavEngager(newTestRegistry(), fs)

	h, err := e.Engage(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, h.FSHandle)

	_, tfsDavPath, err := e.paths()
	require.NoError(t, err)
	assert.Equal(t, ReparseTarget, fs.dirs[tfsDavPath])
}

func TestTfsDavEngager_EngageRenamesExistingDirectoryAside(t *testing.T) {
	fs := newFakeFS()
	e := NewTfsDavEngager(newTestRegistry(), fs)
	_, tfsDavPath, err := e.paths()
	require.NoError(t, err)
	fs.dirs[tfsDavPath] = "" // a pre-existing ordinary directory, no reparse point

	_, err = e.Engage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReparseTarget, fs.dirs[tfsDavPath])
	_, backedUp := fs.dirs[tfsDavPath+backupSuffix]
	assert.True(t, backedUp)
}

func TestTfsDavEngager_ReEngageIsIdempotentWhenAlreadyRedirected(t *testing.T) {
	fs := newFakeFS()
	e := NewTfsDavEngager(newTestRegistry(), fs)

	first, err := e.Engage(context.Background())
	require.NoError(t, err)

	_, err = e.Engage(context.Background())
	require.NoError(t, err)

	_, tfsDavPath, err := e.paths()
	require.NoError(t, err)
	_, backedUp := fs.dirs[tfsDavPath+backupSuffix]
	assert.False(t, backedUp, "idempotent re-engage must not rename the already-matching mount point aside")

	require.NoError(t, first.Disengage(context.Background()))
}

func TestTfsDavEngager_EngageToleratesAnExistingBackupFromAPriorRun(t *testing.T) {
	fs := newFakeFS()
	e := NewTfsDavEngager(newTestRegistry(), fs)
	_, tfsDavPath, err := e.paths()
	require.NoError(t, err)
	fs.dirs[tfsDavPath] = ""
	fs.dirs[tfsDavPath+backupSuffix] = "" // an orphaned backup from a prior run

	_, err = e.Engage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReparseTarget, fs.dirs[tfsDavPath])
}

func TestTfsDavEngager_DisengageDeletesDirectoryAndRestoresBackup(t *testing.T) {
	fs := newFakeFS()
	e := NewTfsDavEngager(newTestRegistry(), fs)
	_, tfsDavPath, err := e.paths()
	require.NoError(t, err)
	fs.dirs[tfsDavPath] = "" // pre-existing directory, gets backed up during Engage

	h, err := e.Engage(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.Disengage(context.Background()))
	assert.Equal(t, "", fs.dirs[tfsDavPath], "disengage must restore the plain directory that was renamed aside")
	_, backupRemains := fs.dirs[tfsDavPath+backupSuffix]
	assert.False(t, backupRemains)
}

func TestTfsDavEngager_DisengageWithNoBackupLeavesNothingBehind(t *testing.T) {
	fs := newFakeFS()
	e := NewTfsDavEngager(newTestRegistry(), fs)

	h, err := e.Engage(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.Disengage(context.Background()))
	_, tfsDavPath, err := e.paths()
	require.NoError(t, err)
	_, ok := fs.dirs[tfsDavPath]
	assert.False(t, ok)
}

func TestTfsDavEngager_EngageFailsWhenSystemRootMissing(t *testing.T) {
	fs := newFakeFS()
	e := NewTfsDavEngager(fakeRegistry{values: map[string]string{}}, fs)

	_, err := e.Engage(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}
