package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBucketNameConcreteScenarios(t *testing.T) {
	cases := []struct {
		mtime int64
		want  string
	}{
		{0, "1970_01"},
		{-1, "1969_12"},
		{1502920742, "2017_08"},
		{1 << 31, "2038_01"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, BucketName(c.mtime), "mtime=%d", c.mtime)
	}
}

func TestEnsureBucketCreatesDir(t *testing.T) {
	root := t.TempDir()
	bucket, err := EnsureBucket(root, 1502920742)
	require.NoError(t, err)
	require.DirExists(t, bucket)
	require.Equal(t, "2017_08", bucket[len(bucket)-len("2017_08"):])
}
