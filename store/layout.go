// Package store implements the on-disk index: month-bucket sharding,
// loose-file writes, the loose+pack lookup path, and the background
// packer that consolidates a bucket's loose files into one pack plus a
// sorted external index.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("4grep/store")

const (
	// PackFileName is the append-only concatenation of records in a bucket.
	PackFileName = "packfile"
	// PackIndexName is the sorted (hash, offset) array alongside the pack.
	PackIndexName = "packfile_index"
	// PackIndexTmpName is the transient file used during the atomic rename.
	PackIndexTmpName = ".packfile_index.tmp"
	// PackLockName is the advisory lock held for the duration of a pack.
	PackLockName = ".packfile.lock"

	// looseSlots is the number of _NNN collision slots tried per hash.
	looseSlots = 1000

	bucketDirMode = 0o777
)

// BucketName returns the "YYYY_MM" UTC month bucket name for mtime,
// interpreted as seconds since the Unix epoch. Negative (pre-epoch)
// values and values beyond a 32-bit epoch both resolve correctly
// because time.Unix uses 64-bit arithmetic throughout.
func BucketName(mtime int64) string {
	return time.Unix(mtime, 0).UTC().Format("2006_01")
}

// BucketPath returns root/YYYY_MM for mtime.
func BucketPath(root string, mtime int64) string {
	return filepath.Join(root, BucketName(mtime))
}

// EnsureBucket creates the bucket directory on demand with permissive
// mode, returning its path.
func EnsureBucket(root string, mtime int64) (string, error) {
	bucket := BucketPath(root, mtime)
	if err := os.MkdirAll(bucket, bucketDirMode); err != nil {
		return "", fmt.Errorf("store: create bucket %s: %w", bucket, err)
	}
	return bucket, nil
}

func looseLockPath(bucket, name string) string {
	return filepath.Join(bucket, "."+name+".lock")
}
