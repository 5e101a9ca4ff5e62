package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/exp/mmap"

	"github.com/purestorage/4grep/errkind"
	"github.com/purestorage/4grep/ngram"
	"github.com/purestorage/4grep/recordio"
)

// Lookup resolves path (already expected canonical by the caller) and
// mtime to a bitmap, searching first the bucket's loose files and then
// its pack. It returns errkind.NotFound if no matching record exists
// anywhere, which is not itself an error condition for callers: a miss
// just means the orchestrator should scan the file fresh.
func Lookup(bucket, path string, mtime int64) (*ngram.Bitmap, error) {
	bm, err := lookupLoose(bucket, path, mtime)
	if err == nil {
		return bm, nil
	}
	if !errors.Is(err, errkind.NotFound) {
		return nil, err
	}

	bm, err = lookupPack(bucket, path, mtime)
	if err != nil {
		return nil, err
	}
	return bm, nil
}

// lookupLoose implements spec §4.4's loose search: iterate slot 0, 1,
// 2, … until ENOENT terminates the scan. A locked slot stops the whole
// scan (not just that slot) since the record it guards isn't yet
// meaningful and everything after it in insertion order is unordered
// anyway.
func lookupLoose(bucket, path string, mtime int64) (*ngram.Bitmap, error) {
	stem := LooseName(path)

	for slot := 0; slot < looseSlots; slot++ {
		name := slotName(stem, slot)
		fullPath := filepath.Join(bucket, name)

		f, err := os.Open(fullPath)
		if err != nil {
			if os.IsNotExist(err) {
				break
			}
			return nil, fmt.Errorf("store: open loose %s: %w", fullPath, errkind.WrapIO(err))
		}

		held, err := IsHeld(looseLockPath(bucket, name))
		if err != nil {
			f.Close()
			return nil, err
		}
		if held {
			f.Close()
			break
		}

		bm, matched, hardErr := matchLooseFile(f, fullPath, path, mtime)
		f.Close()
		if hardErr != nil {
			return nil, hardErr
		}
		if matched {
			return bm, nil
		}
	}

	return nil, fmt.Errorf("store: lookup loose %s: %w", path, errkind.NotFound)
}

// matchLooseFile inspects one already-open loose file. It self-heals
// corrupt-but-nonempty files by removing them (the caller continues the
// scan regardless). It only returns a non-nil error for failures that
// should abort the whole lookup, not for "this slot doesn't apply".
func matchLooseFile(f *os.File, fullPath, path string, mtime int64) (bm *ngram.Bitmap, matched bool, err error) {
	status, statErr := recordio.IsCorrupt(f)
	if statErr != nil {
		return nil, false, statErr
	}
	switch status {
	case recordio.StatusEmpty:
		return nil, false, nil
	case recordio.StatusCorrupt:
		os.Remove(fullPath)
		return nil, false, nil
	}

	if _, err := f.Seek(0, 0); err != nil {
		return nil, false, errkind.WrapIO(err)
	}
	rec, decErr := recordio.Decode(f)
	if decErr != nil {
		// Decode can still fail past the header-size check (e.g. a
		// corrupt zstd frame of the right length); treat it the same
		// as a structurally corrupt file.
		os.Remove(fullPath)
		return nil, false, nil
	}

	if rec.Path != path {
		return nil, false, nil // hash collision with a different path
	}
	if rec.MTime != mtime {
		return nil, false, nil // stale version, kept until repack
	}
	return rec.Bitmap, true, nil
}

// lookupPack implements spec §4.4's pack search: binary search the
// sorted external index by hash, scan the equal-hash run, and compare
// path+mtime exactly against each candidate record read from the
// packfile via its offset. ESTALE (common on NFS) is retried exactly
// once.
func lookupPack(bucket, path string, mtime int64) (*ngram.Bitmap, error) {
	indexPath := filepath.Join(bucket, PackIndexName)
	entries, err := ReadPackIndex(indexPath)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("store: lookup pack %s: %w", path, errkind.NotFound)
	}

	hash := hashOf(path)
	lo, hi := lookupRange(entries, hash)
	if lo == hi {
		return nil, fmt.Errorf("store: lookup pack %s: %w", path, errkind.NotFound)
	}

	packPath := filepath.Join(bucket, PackFileName)
	reader, err := openPackWithRetry(packPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	for i := lo; i < hi; i++ {
		rec, matchErr := readRecordAtWithRetry(reader, entries[i].Offset)
		if matchErr != nil {
			return nil, matchErr
		}
		if rec.Path == path && rec.MTime == mtime {
			return rec.Bitmap, nil
		}
	}
	return nil, fmt.Errorf("store: lookup pack %s: %w", path, errkind.NotFound)
}

func openPackWithRetry(path string) (*mmap.ReaderAt, error) {
	r, err := mmap.Open(path)
	if err != nil {
		if errors.Is(err, syscall.ESTALE) {
			r, err = mmap.Open(path)
		}
		if err != nil {
			return nil, fmt.Errorf("store: open pack %s: %w", path, errkind.WrapIO(err))
		}
	}
	return r, nil
}

func readRecordAtWithRetry(r *mmap.ReaderAt, offset uint64) (*recordio.Record, error) {
	rec, err := readRecordAt(r, offset)
	if err != nil && errors.Is(err, syscall.ESTALE) {
		rec, err = readRecordAt(r, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("store: read pack record at %d: %w", offset, err)
	}
	return rec, nil
}

func readRecordAt(r *mmap.ReaderAt, offset uint64) (*recordio.Record, error) {
	section := io.NewSectionReader(r, int64(offset), r.Len()-int64(offset))
	return recordio.Decode(section)
}
