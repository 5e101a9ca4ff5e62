package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/purestorage/4grep/ngram"
)

func bitmapOf(t *testing.T, s string) *ngram.Bitmap {
	t.Helper()
	bm := ngram.New()
	for _, i := range ngram.IndicesOf(s) {
		bm.Set(i)
	}
	return bm
}

func TestQueryMatchesSingleLiteral(t *testing.T) {
	bm := bitmapOf(t, "the quick brown fox")
	q := NewQuery("quick")
	require.True(t, q.Matches(bm))
	require.False(t, ShouldSkip(bm, q))
}

func TestQueryMissingLiteral(t *testing.T) {
	bm := bitmapOf(t, "the quick brown fox")
	q := NewQuery("jumped")
	require.False(t, q.Matches(bm))
	require.True(t, ShouldSkip(bm, q))
}

func TestQueryOrSemantics(t *testing.T) {
	bm := bitmapOf(t, "the quick brown fox")
	q := NewQuery("jumped", "quick")
	require.True(t, q.Matches(bm))
}

func TestQueryShortLiteralConservative(t *testing.T) {
	// A literal shorter than CharsPerGram is deliberately
	// under-selective: it must never cause a real match to be skipped.
	bm := bitmapOf(t, "the quick brown fox")
	q := NewQuery("ab")
	_ = q.Matches(bm) // no panic, no crash regardless of outcome
}

func TestEmptyQueryNeverMatches(t *testing.T) {
	bm := bitmapOf(t, "anything")
	q := Query{}
	require.False(t, q.Matches(bm))
	require.True(t, ShouldSkip(bm, q))
}
