package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackBucketRoundTrip(t *testing.T) {
	bucket := t.TempDir()
	paths := []string{"/a", "/b", "/c"}
	for _, p := range paths {
		require.NoError(t, WriteLoose(bucket, sampleRecord(p, 0)))
	}

	err := PackBucket(bucket)
	require.NoError(t, err)

	names, err := looseFileNames(bucket)
	require.NoError(t, err)
	require.Empty(t, names)

	for _, p := range paths {
		bm, lookupErr := Lookup(bucket, p, 0)
		require.NoError(t, lookupErr)
		require.NotNil(t, bm)
	}

	entries, err := ReadPackIndex(filepath.Join(bucket, PackIndexName))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		require.LessOrEqual(t, entries[i-1].Hash, entries[i].Hash)
	}
}

func TestPackBucketLeavesLockedFileUntouched(t *testing.T) {
	bucket := t.TempDir()
	require.NoError(t, WriteLoose(bucket, sampleRecord("/a", 0)))
	require.NoError(t, WriteLoose(bucket, sampleRecord("/b", 0)))

	stem := LooseName("/a")
	name := slotName(stem, 0)
	lock := newAdvisoryLock(looseLockPath(bucket, name))
	ok, err := lock.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)
	defer lock.Release()

	require.NoError(t, PackBucket(bucket))

	require.FileExists(t, filepath.Join(bucket, name))

	names, err := looseFileNames(bucket)
	require.NoError(t, err)
	require.Equal(t, []string{name}, names)
}

func TestPackBucketExclusionUnderContention(t *testing.T) {
	bucket := t.TempDir()
	require.NoError(t, WriteLoose(bucket, sampleRecord("/a", 0)))

	require.NoError(t, ensureFile(filepath.Join(bucket, PackFileName)))
	lock := newAdvisoryLock(filepath.Join(bucket, PackLockName))
	ok, err := lock.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)
	defer lock.Release()

	require.NoError(t, PackBucket(bucket))

	names, err := looseFileNames(bucket)
	require.NoError(t, err)
	require.Len(t, names, 1)
}

func TestPackBucketEmptyIsNoop(t *testing.T) {
	bucket := t.TempDir()
	require.NoError(t, PackBucket(bucket))
	require.FileExists(t, filepath.Join(bucket, PackFileName))
}

func TestHashFromLooseNameMatchesHashOf(t *testing.T) {
	name := slotName(LooseName("/some/path"), 7)
	hash, err := hashFromLooseName(name)
	require.NoError(t, err)
	require.Equal(t, hashOf("/some/path"), hash)
}

func TestHashFromLooseNameRejectsMalformed(t *testing.T) {
	_, err := hashFromLooseName("not-hex-no-underscore")
	require.Error(t, err)
}
