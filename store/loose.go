package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"github.com/purestorage/4grep/errkind"
	"github.com/purestorage/4grep/recordio"
)

// pathHashSeed salts the path hash so loose-file names don't collide
// with unrelated hash uses elsewhere in the store.
const pathHashSeed = uint64(0xfe5000)

// hashOf returns XXH64(path, seed=0xfe5000).
func hashOf(path string) uint64 {
	h := xxhash.NewWithSeed(pathHashSeed)
	_, _ = h.WriteString(path)
	return h.Sum64()
}

// LooseName returns the hex hash stem (without a collision slot
// suffix) used to name the loose files for path.
func LooseName(path string) string {
	return fmt.Sprintf("%016X", hashOf(path))
}

func slotName(stem string, slot int) string {
	return fmt.Sprintf("%s_%03d", stem, slot)
}

// WriteLoose stores rec as a loose record file under bucket, trying
// successive "_NNN" collision slots for its hash stem until it finds
// one it can create exclusively and lock. It returns errkind.NoSlot if
// all looseSlots slots are taken by other live records.
//
// The write is best-effort from the orchestrator's point of view: a
// failure here must never block a filter decision, only be logged.
func WriteLoose(bucket string, rec *recordio.Record) error {
	var err error
	werr := withZeroUmask(func() error {
		err = writeLoose(bucket, rec)
		return nil
	})
	if werr != nil {
		return werr
	}
	return err
}

func writeLoose(bucket string, rec *recordio.Record) error {
	stem := LooseName(rec.Path)

	for slot := 0; slot < looseSlots; slot++ {
		name := slotName(stem, slot)
		fullPath := filepath.Join(bucket, name)
		lockPath := looseLockPath(bucket, name)

		lock := newAdvisoryLock(lockPath)
		ok, err := lock.TryAcquire()
		if err != nil {
			return err
		}
		if !ok {
			// Another writer or reader is using this exact slot right
			// now; try the next one rather than waiting.
			continue
		}

		created, err := createExclusive(fullPath)
		if err != nil {
			lock.Release()
			return err
		}
		if !created {
			// Slot file already exists from a prior write; it may be a
			// different path's record entirely (hash collision) or a
			// stale/corrupt leftover. Either way this writer doesn't own
			// it, so move on.
			lock.Release()
			continue
		}

		writeErr := writeLooseFile(fullPath, rec)
		lock.Release()
		if writeErr != nil {
			os.Remove(fullPath)
			return writeErr
		}
		return nil
	}

	return fmt.Errorf("store: write loose %s: %w", rec.Path, errkind.NoSlot)
}

func createExclusive(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o666)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("store: create %s: %w", path, errkind.WrapIO(err))
	}
	f.Close()
	return true, nil
}

func writeLooseFile(path string, rec *recordio.Record) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o666)
	if err != nil {
		return fmt.Errorf("store: open %s for write: %w", path, errkind.WrapIO(err))
	}
	defer f.Close()
	if err := recordio.EncodeToFile(rec, recordio.WriterLevel, f); err != nil {
		return fmt.Errorf("store: encode %s: %w", path, err)
	}
	return nil
}
