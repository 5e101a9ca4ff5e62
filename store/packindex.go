package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/purestorage/4grep/errkind"
)

// indexEntryBytes is the on-disk size of one (hash, offset) pair.
const indexEntryBytes = 16

// indexEntry is one sorted pack-index row. Deliberately mixed-endian on
// disk: Hash is written in the host's native byte order and Offset in
// big-endian, a quirk of the original format we preserve rather than fix,
// since existing index files on disk already carry it. Encapsulated here
// behind readIndexEntry/writeIndexEntry so nothing else in the package
// needs to know about the asymmetry.
type indexEntry struct {
	Hash   uint64
	Offset uint64
}

func readIndexEntry(b []byte) indexEntry {
	return indexEntry{
		Hash:   nativeEndian.Uint64(b[0:8]),
		Offset: binary.BigEndian.Uint64(b[8:16]),
	}
}

func writeIndexEntry(b []byte, e indexEntry) {
	nativeEndian.PutUint64(b[0:8], e.Hash)
	binary.BigEndian.PutUint64(b[8:16], e.Offset)
}

// ReadPackIndex loads every entry of the sorted pack index file at path,
// already sorted by Hash ascending as written.
func ReadPackIndex(path string) ([]indexEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: open pack index %s: %w", path, errkind.WrapIO(err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errkind.WrapIO(err)
	}
	if info.Size()%indexEntryBytes != 0 {
		return nil, fmt.Errorf("store: pack index %s: %w", path, errkind.Corrupt)
	}

	n := int(info.Size() / indexEntryBytes)
	entries := make([]indexEntry, n)
	r := bufio.NewReader(f)
	buf := make([]byte, indexEntryBytes)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("store: read pack index %s: %w", path, errkind.WrapCorrupt(err))
		}
		entries[i] = readIndexEntry(buf)
	}
	return entries, nil
}

// WritePackIndex writes entries (assumed sorted by Hash) to path.
func WritePackIndex(path string, entries []indexEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: create pack index %s: %w", path, errkind.WrapIO(err))
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	buf := make([]byte, indexEntryBytes)
	for _, e := range entries {
		writeIndexEntry(buf, e)
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("store: write pack index %s: %w", path, errkind.WrapIO(err))
		}
	}
	if err := w.Flush(); err != nil {
		return errkind.WrapIO(err)
	}
	return f.Sync()
}

// MergeIndexEntries two-finger merges existing (already sorted) entries
// with fresh ones (sorted by the caller) into a single sorted slice.
func MergeIndexEntries(existing, fresh []indexEntry) []indexEntry {
	merged := make([]indexEntry, 0, len(existing)+len(fresh))
	i, j := 0, 0
	for i < len(existing) && j < len(fresh) {
		if existing[i].Hash <= fresh[j].Hash {
			merged = append(merged, existing[i])
			i++
		} else {
			merged = append(merged, fresh[j])
			j++
		}
	}
	merged = append(merged, existing[i:]...)
	merged = append(merged, fresh[j:]...)
	return merged
}

// sortEntries sorts in place by Hash ascending; used when building a
// fresh batch before merging (ties broken by insertion order via a
// stable sort, since two loose files can legitimately share a hash
// prefix in different collision slots).
func sortEntries(entries []indexEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Hash < entries[j].Hash })
}

// lookupRange returns the [lo, hi) slice of entries whose Hash equals
// target, using binary search on the sorted slice.
func lookupRange(entries []indexEntry, target uint64) (lo, hi int) {
	lo = sort.Search(len(entries), func(i int) bool { return entries[i].Hash >= target })
	hi = lo
	for hi < len(entries) && entries[hi].Hash == target {
		hi++
	}
	return lo, hi
}
