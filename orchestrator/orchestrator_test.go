package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/purestorage/4grep/filter"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEvaluateFreshScanMatch(t *testing.T) {
	root := t.TempDir()
	srcDir := t.TempDir()
	path := writeTempFile(t, srcDir, "f.txt", "the quick brown fox jumps")

	o := New(root)
	q := filter.NewQuery("quick brown")

	outcome, err := o.Evaluate(path, q)
	require.NoError(t, err)
	require.Equal(t, MatchNewBitmap, outcome)
	require.True(t, outcome.Matched())
	require.True(t, outcome.BitmapCreated())
}

func TestEvaluateFreshScanNoMatch(t *testing.T) {
	root := t.TempDir()
	srcDir := t.TempDir()
	path := writeTempFile(t, srcDir, "f.txt", "the quick brown fox jumps")

	o := New(root)
	q := filter.NewQuery("zzzzzzzzzzzzzzz")

	outcome, err := o.Evaluate(path, q)
	require.NoError(t, err)
	require.Equal(t, NoMatchNewBitmap, outcome)
	require.False(t, outcome.Matched())
}

func TestEvaluateSecondCallUsesStoredBitmap(t *testing.T) {
	root := t.TempDir()
	srcDir := t.TempDir()
	path := writeTempFile(t, srcDir, "f.txt", "the quick brown fox jumps")

	o := New(root)
	q := filter.NewQuery("quick brown")

	_, err := o.Evaluate(path, q)
	require.NoError(t, err)

	outcome, err := o.Evaluate(path, q)
	require.NoError(t, err)
	require.Equal(t, Match, outcome)
	require.False(t, outcome.BitmapCreated())
}

func TestEvaluateMissingFile(t *testing.T) {
	root := t.TempDir()
	o := New(root)
	q := filter.NewQuery("anything")

	_, err := o.Evaluate(filepath.Join(t.TempDir(), "missing"), q)
	require.Error(t, err)
}
