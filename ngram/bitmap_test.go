package ngram

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func countSet(bm *Bitmap) int {
	n := 0
	for i := 0; i < Width; i++ {
		if bm.Get(i) {
			n++
		}
	}
	return n
}

func TestApplyStreamEmpty(t *testing.T) {
	bm := New()
	require.NoError(t, bm.ApplyStream(strings.NewReader("")))
	require.Equal(t, 0, countSet(bm))
}

func TestApplyStreamShorterThanWindow(t *testing.T) {
	bm := New()
	require.NoError(t, bm.ApplyStream(strings.NewReader("aaaa")))
	require.Equal(t, 0, countSet(bm))
}

func TestApplyStreamSingleWindow(t *testing.T) {
	bm := New()
	require.NoError(t, bm.ApplyStream(strings.NewReader("aaaaa")))
	require.True(t, bm.Get(0x11111))
	require.Equal(t, 1, countSet(bm))
}

func TestApplyStreamTwoOverlappingWindows(t *testing.T) {
	bm := New()
	require.NoError(t, bm.ApplyStream(strings.NewReader("aaaaaz")))
	require.True(t, bm.Get(0x11111))
	require.True(t, bm.Get(0x1111A))
	require.Equal(t, 2, countSet(bm))
}

func TestApplyStreamGzipTransparent(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("aaaaaz"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	bm := New()
	require.NoError(t, bm.ApplyStream(&buf))
	require.True(t, bm.Get(0x11111))
	require.True(t, bm.Get(0x1111A))
}

func TestApplyStreamGzipTruncated(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(strings.Repeat("hello world ", 200)))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-4])
	bm := New()
	err = bm.ApplyStream(truncated)
	require.Error(t, err)
}

func TestUnion(t *testing.T) {
	a := New()
	a.Set(5)
	b := New()
	b.Set(9)
	u := Union(a, b)
	require.True(t, u.Get(5))
	require.True(t, u.Get(9))
	require.False(t, u.Get(6))
}

func TestIndicesOfShort(t *testing.T) {
	idx := IndicesOf("aa")
	require.Len(t, idx, 1)
}

func TestIndicesOfMatchesApplyStream(t *testing.T) {
	bm := New()
	require.NoError(t, bm.ApplyStream(strings.NewReader("aaaaaz")))
	for _, i := range IndicesOf("aaaaaz") {
		require.True(t, bm.Get(i))
	}
}

func TestSortedIndices(t *testing.T) {
	idx := SortedIndices([]string{"hello", "world"})
	for i := 1; i < len(idx); i++ {
		require.LessOrEqual(t, idx[i-1], idx[i])
	}
}
