// Package recordio implements the length-prefixed, big-endian, Zstandard
// compressed on-disk record format for one (path, mtime, bitmap) entry.
package recordio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	zstdpool "github.com/mostynb/zstdpool-freelist"

	"github.com/purestorage/4grep/errkind"
	"github.com/purestorage/4grep/ngram"
)

// Record is one logical entry: a source file's path, its mtime, and the
// n-gram presence bitmap computed from its contents.
type Record struct {
	Path   string
	MTime  int64
	Bitmap *ngram.Bitmap
}

// Header is the fixed-layout, variable-length-prefixed framing that
// precedes the compressed bitmap payload on disk.
type Header struct {
	PathLen       uint16
	Path          []byte
	MTime         int64
	CompressedLen uint32
}

// Size returns the total on-disk size of a well-formed record with this
// header: 2 + path_len + 8 + 4 + compressed_len.
func (h Header) Size() int64 {
	return 2 + int64(h.PathLen) + 8 + 4 + int64(h.CompressedLen)
}

// WriterLevel and SelfTestLevel are the two zstd compression levels the
// spec names: the loose writer always compresses at WriterLevel;
// SelfTestLevel is the faster level, used here only by the codec's own
// round-trip test (the packer copies record bytes and never encodes). klauspost's
// zstd only exposes four named speed tiers, so numeric spec levels are
// mapped to the nearest tier.
const (
	WriterLevel   = 8
	SelfTestLevel = 3
)

func encoderLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 5:
		return zstd.SpeedDefault
	case level <= 12:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

var decoderPool = zstdpool.NewDecoderPool()

func encoderPoolFor(level int) *zstdpool.EncoderPool {
	switch level {
	case WriterLevel:
		return writerEncoderPool
	case SelfTestLevel:
		return selfTestEncoderPool
	default:
		return zstdpool.NewEncoderPool(zstd.WithEncoderLevel(encoderLevel(level)))
	}
}

var (
	writerEncoderPool   = zstdpool.NewEncoderPool(zstd.WithEncoderLevel(encoderLevel(WriterLevel)))
	selfTestEncoderPool = zstdpool.NewEncoderPool(zstd.WithEncoderLevel(encoderLevel(SelfTestLevel)))
)

// Encode compresses rec.Bitmap at the given zstd level, prefixes it with
// the record header, and writes the whole thing to sink in one buffered
// sequence.
func Encode(rec *Record, level int, sink io.Writer) error {
	if len(rec.Path) > 1<<16-1 {
		return fmt.Errorf("recordio: path too long (%d bytes)", len(rec.Path))
	}

	pool := encoderPoolFor(level)
	enc, err := pool.Get(nil)
	if err != nil {
		return fmt.Errorf("recordio: get zstd encoder: %w", errkind.WrapFormat(err))
	}
	defer pool.Put(enc)

	compressed := enc.EncodeAll(rec.Bitmap.Bytes(), nil)

	w := bufio.NewWriter(sink)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(rec.Path)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("recordio: write path_len: %w", err)
	}
	if _, err := w.WriteString(rec.Path); err != nil {
		return fmt.Errorf("recordio: write path: %w", err)
	}
	var mtimeBuf [8]byte
	binary.BigEndian.PutUint64(mtimeBuf[:], uint64(rec.MTime))
	if _, err := w.Write(mtimeBuf[:]); err != nil {
		return fmt.Errorf("recordio: write mtime: %w", err)
	}
	var clenBuf [4]byte
	binary.BigEndian.PutUint32(clenBuf[:], uint32(len(compressed)))
	if _, err := w.Write(clenBuf[:]); err != nil {
		return fmt.Errorf("recordio: write compressed_len: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("recordio: write compressed payload: %w", err)
	}
	return w.Flush()
}

// EncodeToFile encodes rec into the already-open file f, then flushes
// and fsyncs it, matching the loose writer's crash-safety contract.
func EncodeToFile(rec *Record, level int, f *os.File) error {
	if err := Encode(rec, level, f); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("recordio: fsync: %w", errkind.WrapIO(err))
	}
	return nil
}

// Decode reads the header, in order, from source and returns the
// decoded (path, mtime, bitmap). Any short read or length mismatch
// yields errkind.Corrupt and a zstd decoder error yields
// errkind.FormatError; the returned bitmap is never partially filled.
func Decode(source io.Reader) (*Record, error) {
	r := bufio.NewReader(source)

	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, errkind.WrapCorrupt(err)
	}
	pathLen := binary.BigEndian.Uint16(lenBuf[:])

	pathBuf := make([]byte, pathLen)
	if _, err := io.ReadFull(r, pathBuf); err != nil {
		return nil, errkind.WrapCorrupt(err)
	}

	var mtimeBuf [8]byte
	if _, err := io.ReadFull(r, mtimeBuf[:]); err != nil {
		return nil, errkind.WrapCorrupt(err)
	}
	mtime := int64(binary.BigEndian.Uint64(mtimeBuf[:]))

	var clenBuf [4]byte
	if _, err := io.ReadFull(r, clenBuf[:]); err != nil {
		return nil, errkind.WrapCorrupt(err)
	}
	clen := binary.BigEndian.Uint32(clenBuf[:])

	compressed := make([]byte, clen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, errkind.WrapCorrupt(err)
	}

	dec, err := decoderPool.Get(nil)
	if err != nil {
		return nil, errkind.WrapFormat(err)
	}
	defer decoderPool.Put(dec)

	decompressed, err := dec.DecodeAll(compressed, make([]byte, 0, ngram.SizeBytes))
	if err != nil {
		return nil, errkind.WrapFormat(err)
	}
	if len(decompressed) != ngram.SizeBytes {
		return nil, errkind.Corrupt
	}
	bm, err := ngram.FromBytes(decompressed)
	if err != nil {
		return nil, errkind.Corrupt
	}

	return &Record{
		Path:   string(pathBuf),
		MTime:  mtime,
		Bitmap: bm,
	}, nil
}

// ReadHeader reads just the fixed-width + path-length-prefixed header
// fields, without touching the compressed payload. Used by IsCorrupt to
// compute the expected record size without decompressing.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return h, err
	}
	h.PathLen = binary.BigEndian.Uint16(lenBuf[:])

	h.Path = make([]byte, h.PathLen)
	if _, err := io.ReadFull(r, h.Path); err != nil {
		return h, err
	}

	var mtimeBuf [8]byte
	if _, err := io.ReadFull(r, mtimeBuf[:]); err != nil {
		return h, err
	}
	h.MTime = int64(binary.BigEndian.Uint64(mtimeBuf[:]))

	var clenBuf [4]byte
	if _, err := io.ReadFull(r, clenBuf[:]); err != nil {
		return h, err
	}
	h.CompressedLen = binary.BigEndian.Uint32(clenBuf[:])
	return h, nil
}

// Status is the result of IsCorrupt.
type Status int

const (
	StatusOK Status = iota
	StatusEmpty
	StatusCorrupt
)

// IsCorrupt computes the expected record size from the header alone
// (without decompressing) and compares it to the file's actual size.
func IsCorrupt(f *os.File) (Status, error) {
	info, err := f.Stat()
	if err != nil {
		return StatusCorrupt, fmt.Errorf("recordio: stat: %w", errkind.WrapIO(err))
	}
	if info.Size() == 0 {
		return StatusEmpty, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return StatusCorrupt, errkind.WrapIO(err)
	}
	h, err := ReadHeader(f)
	if err != nil {
		return StatusCorrupt, nil
	}
	if h.Size() != info.Size() {
		return StatusCorrupt, nil
	}
	return StatusOK, nil
}
