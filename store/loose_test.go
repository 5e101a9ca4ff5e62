package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/purestorage/4grep/errkind"
	"github.com/purestorage/4grep/ngram"
	"github.com/purestorage/4grep/recordio"
)

func sampleRecord(path string, mtime int64) *recordio.Record {
	bm := ngram.New()
	bm.Set(0x11111)
	return &recordio.Record{Path: path, MTime: mtime, Bitmap: bm}
}

func TestWriteLooseThenLookup(t *testing.T) {
	bucket := t.TempDir()
	rec := sampleRecord("/a", 0)
	require.NoError(t, WriteLoose(bucket, rec))

	bm, err := Lookup(bucket, "/a", 0)
	require.NoError(t, err)
	require.Equal(t, rec.Bitmap.Bytes(), bm.Bytes())
}

func TestLookupMissReturnsNotFound(t *testing.T) {
	bucket := t.TempDir()
	_, err := Lookup(bucket, "/does/not/exist", 0)
	require.ErrorIs(t, err, errkind.NotFound)
}

func TestWriteLooseDifferentMtimeBothKept(t *testing.T) {
	bucket := t.TempDir()
	require.NoError(t, WriteLoose(bucket, sampleRecord("/a", 0)))
	require.NoError(t, WriteLoose(bucket, sampleRecord("/a", 1)))

	bm0, err := Lookup(bucket, "/a", 0)
	require.NoError(t, err)
	require.NotNil(t, bm0)

	bm1, err := Lookup(bucket, "/a", 1)
	require.NoError(t, err)
	require.NotNil(t, bm1)
}

func TestLookupRemovesTruncatedLooseFile(t *testing.T) {
	bucket := t.TempDir()
	rec := sampleRecord("/a", 0)
	require.NoError(t, WriteLoose(bucket, rec))

	stem := LooseName("/a")
	name := slotName(stem, 0)
	path := filepath.Join(bucket, name)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-4))

	_, err = Lookup(bucket, "/a", 0)
	require.Error(t, err)
	require.NoFileExists(t, path)
}
