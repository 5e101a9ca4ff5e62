// Package orchestrator wires lookup, on-miss scanning, the loose
// writer, and the filter engine into the single per-file decision the
// rest of the system consumes: does this candidate match the query.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	logging "github.com/ipfs/go-log/v2"

	"github.com/purestorage/4grep/errkind"
	"github.com/purestorage/4grep/filter"
	"github.com/purestorage/4grep/ngram"
	"github.com/purestorage/4grep/recordio"
	"github.com/purestorage/4grep/store"
)

var log = logging.Logger("4grep/orchestrator")

// Outcome is one of the four results spec §4.7 distinguishes. The
// "new bitmap" variants carry an additive bit over their base outcome,
// mirroring the original's MATCH=1/NO_MATCH=2, +BITMAP_CREATED(2) for
// a freshly scanned file, so NewBitmap(outcome) == outcome+2 for either
// base value.
type Outcome int

const (
	Match Outcome = 1 + iota
	NoMatch
	MatchNewBitmap
	NoMatchNewBitmap
)

// BitmapCreated reports whether o corresponds to a bitmap that was
// freshly scanned during this evaluation rather than found in the
// store.
func (o Outcome) BitmapCreated() bool {
	return o == MatchNewBitmap || o == NoMatchNewBitmap
}

// Matched reports whether o is one of the two match outcomes.
func (o Outcome) Matched() bool {
	return o == Match || o == MatchNewBitmap
}

func (o Outcome) String() string {
	switch o {
	case Match:
		return "match"
	case NoMatch:
		return "no-match"
	case MatchNewBitmap:
		return "match-new-bitmap"
	case NoMatchNewBitmap:
		return "no-match-new-bitmap"
	default:
		return "unknown"
	}
}

// Orchestrator evaluates candidate files against a query against the
// index store rooted at Root.
type Orchestrator struct {
	Root string
}

// New returns an Orchestrator rooted at root.
func New(root string) *Orchestrator {
	return &Orchestrator{Root: root}
}

// Evaluate implements spec §4.7 end to end for one candidate path.
func (o *Orchestrator) Evaluate(path string, q filter.Query) (Outcome, error) {
	realPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: %s: %w", path, errkind.NotFound)
	}
	realPath, err = filepath.EvalSymlinks(realPath)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: %s: %w", path, errkind.NotFound)
	}

	info, err := os.Stat(realPath)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: stat %s: %w", realPath, errkind.NotFound)
	}
	mtime := info.ModTime().Unix()

	bucket, err := store.EnsureBucket(o.Root, mtime)
	if err != nil {
		return 0, err
	}

	bm, created, err := o.bitmapFor(bucket, realPath, mtime)
	if err != nil {
		return 0, err
	}

	if filter.ShouldSkip(bm, q) {
		if created {
			return NoMatchNewBitmap, nil
		}
		return NoMatch, nil
	}
	if created {
		return MatchNewBitmap, nil
	}
	return Match, nil
}

// bitmapFor returns the bitmap for (path, mtime), set from an existing
// record when one is found and otherwise scanned fresh from the file's
// contents. created reports which of those happened.
func (o *Orchestrator) bitmapFor(bucket, path string, mtime int64) (bm *ngram.Bitmap, created bool, err error) {
	bm, lookupErr := store.Lookup(bucket, path, mtime)
	if lookupErr == nil {
		return bm, false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("orchestrator: open %s: %w", path, errkind.WrapIO(err))
	}
	defer f.Close()

	bm = ngram.New()
	if err := bm.ApplyStream(f); err != nil {
		return nil, false, err
	}

	rec := &recordio.Record{Path: path, MTime: mtime, Bitmap: bm}
	if writeErr := store.WriteLoose(bucket, rec); writeErr != nil {
		log.Warnf("orchestrator: best-effort write_loose failed for %s: %v", path, writeErr)
	}

	return bm, true, nil
}
