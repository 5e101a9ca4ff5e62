package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/purestorage/4grep/continuity"
	"github.com/purestorage/4grep/errkind"
	"github.com/purestorage/4grep/recordio"
)

// parallelReads caps how many loose files are read concurrently in one
// batch while packing, matching the original's fixed thread count.
const parallelReads = 50

// PackBucket consolidates every loose file in bucket into the bucket's
// packfile plus its sorted external index, deleting each loose file
// only after the index rename that makes it findable has committed.
// Implements spec §4.5. Returns nil (without error) when another packer
// already holds the bucket's lock; that is treated as "nothing to do
// right now", not a failure.
func PackBucket(bucket string) error {
	var packed bool
	err := withZeroUmask(func() error {
		var innerErr error
		packed, innerErr = packBucket(bucket)
		return innerErr
	})
	if err != nil {
		return err
	}
	if !packed {
		log.Infof("pack: %s already locked by another packer, skipping", bucket)
	}
	return nil
}

func packBucket(bucket string) (bool, error) {
	packPath := filepath.Join(bucket, PackFileName)
	if err := ensureFile(packPath); err != nil {
		return false, err
	}

	lockPath := filepath.Join(bucket, PackLockName)
	lock := newAdvisoryLock(lockPath)
	ok, err := lock.TryAcquire()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	defer lock.Release()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		touchLoop(lockPath, stop)
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	names, err := looseFileNames(bucket)
	if err != nil {
		return false, err
	}
	if len(names) == 0 {
		return true, nil
	}

	packFile, err := os.OpenFile(packPath, os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return false, fmt.Errorf("store: open packfile %s: %w", packPath, errkind.WrapIO(err))
	}
	defer packFile.Close()

	var newEntries []indexEntry
	var packedPaths []string

	for start := 0; start < len(names); start += parallelReads {
		end := start + parallelReads
		if end > len(names) {
			end = len(names)
		}
		batch := names[start:end]

		results := readBatchParallel(bucket, batch)
		for i, res := range results {
			if res.skip {
				continue
			}
			offset, err := appendRecordBytes(packFile, res.raw)
			if err != nil {
				log.Warnf("pack: %s: append to packfile: %v", batch[i], err)
				continue
			}
			hash, hashErr := hashFromLooseName(batch[i])
			if hashErr != nil {
				log.Warnf("pack: %s: %v", batch[i], hashErr)
				continue
			}
			newEntries = append(newEntries, indexEntry{Hash: hash, Offset: uint64(offset)})
			packedPaths = append(packedPaths, filepath.Join(bucket, batch[i]))
		}
	}

	if len(newEntries) == 0 {
		return true, nil
	}

	indexPath := filepath.Join(bucket, PackIndexName)
	tmpIndexPath := filepath.Join(bucket, PackIndexTmpName)

	commitErr := continuity.New().
		Thenf("fsync packfile", func() error {
			return packFile.Sync()
		}).
		Thenf("merge and rename pack index", func() error {
			return commitIndex(indexPath, tmpIndexPath, newEntries)
		}).
		Err()
	if commitErr != nil {
		// The packfile tail we just appended is now orphaned (not yet
		// indexed) but safe: it will be re-scanned and re-appended on
		// the next successful pack, since the loose files below are
		// only deleted once the index rename above has actually
		// committed.
		return false, fmt.Errorf("store: pack %s: %w", bucket, commitErr)
	}

	deleteLooseFilesParallel(packedPaths)
	return true, nil
}

func ensureFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o666)
	if err != nil {
		return fmt.Errorf("store: create %s: %w", path, errkind.WrapIO(err))
	}
	return f.Close()
}

// looseFileNames lists every entry directly under bucket that is a
// loose record: not the packfile, not the index, and not a dotfile
// (lock files and the temp index all start with '.').
func looseFileNames(bucket string) ([]string, error) {
	entries, err := os.ReadDir(bucket)
	if err != nil {
		return nil, fmt.Errorf("store: read bucket %s: %w", bucket, errkind.WrapIO(err))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == PackFileName || name == PackIndexName || strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

type readResult struct {
	raw  []byte
	skip bool
}

// readBatchParallel reads each of names concurrently, skipping files
// that are locked, empty, or structurally corrupt (removing the latter)
// exactly as the lookup path does.
func readBatchParallel(bucket string, names []string) []readResult {
	results := make([]readResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i] = readLooseForPack(bucket, name)
		}(i, name)
	}
	wg.Wait()
	return results
}

func readLooseForPack(bucket, name string) readResult {
	held, err := IsHeld(looseLockPath(bucket, name))
	if err != nil || held {
		return readResult{skip: true}
	}

	fullPath := filepath.Join(bucket, name)
	f, err := os.Open(fullPath)
	if err != nil {
		return readResult{skip: true}
	}
	defer f.Close()

	status, err := recordio.IsCorrupt(f)
	if err != nil {
		return readResult{skip: true}
	}
	switch status {
	case recordio.StatusEmpty:
		return readResult{skip: true}
	case recordio.StatusCorrupt:
		os.Remove(fullPath)
		return readResult{skip: true}
	}

	raw, err := os.ReadFile(fullPath)
	if err != nil {
		return readResult{skip: true}
	}
	return readResult{raw: raw}
}

func appendRecordBytes(packFile *os.File, raw []byte) (int64, error) {
	offset, err := packFile.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errkind.WrapIO(err)
	}
	if _, err := packFile.Write(raw); err != nil {
		return 0, errkind.WrapIO(err)
	}
	return offset, nil
}

// hashFromLooseName recovers the XXH64 hash from a loose file's name
// ("HHHHHHHHHHHHHHHH_NNN") rather than recomputing it from the record's
// path, matching the original packer's string_to_hash(filename) which
// parses the hex stem directly.
func hashFromLooseName(name string) (uint64, error) {
	stem, _, found := strings.Cut(name, "_")
	if !found {
		return 0, fmt.Errorf("store: malformed loose name %q: %w", name, errkind.Corrupt)
	}
	hash, err := strconv.ParseUint(stem, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("store: malformed loose name %q: %w", name, errkind.WrapCorrupt(err))
	}
	return hash, nil
}

func commitIndex(indexPath, tmpIndexPath string, newEntries []indexEntry) error {
	existing, err := ReadPackIndex(indexPath)
	if err != nil {
		return err
	}
	sortEntries(newEntries)
	merged := MergeIndexEntries(existing, newEntries)

	if err := WritePackIndex(tmpIndexPath, merged); err != nil {
		return err
	}
	if err := os.Rename(tmpIndexPath, indexPath); err != nil {
		return fmt.Errorf("store: rename pack index: %w", errkind.WrapIO(err))
	}
	return nil
}

// deleteLooseFilesParallel removes paths concurrently across up to 50
// goroutines, a fixed fan-out chosen to match the original's thread
// count rather than scaling with GOMAXPROCS.
func deleteLooseFilesParallel(paths []string) {
	if len(paths) == 0 {
		return
	}
	numWorkers := len(paths)
	if numWorkers > 50 {
		numWorkers = 50
	}

	var wg sync.WaitGroup
	perWorker := len(paths) / numWorkers
	extra := len(paths) % numWorkers
	start := 0
	for w := 0; w < numWorkers; w++ {
		count := perWorker
		if w < extra {
			count++
		}
		chunk := paths[start : start+count]
		start += count

		wg.Add(1)
		go func(chunk []string) {
			defer wg.Done()
			for _, p := range chunk {
				os.Remove(p)
			}
		}(chunk)
	}
	wg.Wait()
}
