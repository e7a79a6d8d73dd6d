// Package recording reads and writes recording containers: TFRecord files
// holding one serialized frame per record, optionally compressed as a whole
// with gzip or zlib.
package recording

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"iter"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/olala7846/car-data-visualization/internal/fsutil"
)

// Compression names a whole-file compression scheme.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZlib Compression = "zlib"
)

// ParseCompression validates a configured compression name.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(s); c {
	case CompressionNone, CompressionGzip, CompressionZlib:
		return c, nil
	default:
		return "", fmt.Errorf("unknown compression %q (want \"\", \"gzip\" or \"zlib\")", s)
	}
}

// maxRecordSize bounds a single record so a corrupt length cannot trigger a
// huge allocation.
const maxRecordSize = 1 << 30

const crcMaskDelta = 0xa282ead8

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func maskedCRC(b []byte) uint32 {
	c := crc32.Checksum(b, castagnoli)
	return ((c >> 15) | (c << 17)) + crcMaskDelta
}

// CorruptRecordError reports a record whose framing or checksum is invalid,
// or a file that ends inside a record.
type CorruptRecordError struct {
	Index  int   // zero-based record index
	Offset int64 // byte offset of the record header in the decompressed stream
	Reason string
	Err    error
}

func (e *CorruptRecordError) Error() string {
	msg := fmt.Sprintf("corrupt record %d at offset %d: %s", e.Index, e.Offset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	Compression     Compression
	VerifyChecksums bool
}

// Reader iterates over the records of one container.
type Reader struct {
	r       *bufio.Reader
	closers []io.Closer
	opts    ReaderOptions
	offset  int64
	index   int
	header  [12]byte
	footer  [4]byte
}

// NewReader reads records from r. Close releases the decompressor but not r.
func NewReader(r io.Reader, opts ReaderOptions) (*Reader, error) {
	rd := &Reader{opts: opts}
	switch opts.Compression {
	case CompressionNone:
	case CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		rd.closers = append(rd.closers, zr)
		r = zr
	case CompressionZlib:
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open zlib stream: %w", err)
		}
		rd.closers = append(rd.closers, zr)
		r = zr
	default:
		return nil, fmt.Errorf("unknown compression %q", opts.Compression)
	}
	rd.r = bufio.NewReaderSize(r, 1<<20)
	return rd, nil
}

// Open opens the container at path. Close releases the file.
func Open(fsys fsutil.FileSystem, path string, opts ReaderOptions) (*Reader, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	rd, err := NewReader(f, opts)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open recording %s: %w", path, err)
	}
	rd.closers = append(rd.closers, f)
	return rd, nil
}

// Next returns the next record. It returns io.EOF after the last record and
// *CorruptRecordError on damaged input.
func (rd *Reader) Next() ([]byte, error) {
	start := rd.offset
	corrupt := func(reason string, err error) error {
		return &CorruptRecordError{Index: rd.index, Offset: start, Reason: reason, Err: err}
	}

	n, err := io.ReadFull(rd.r, rd.header[:])
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return nil, io.EOF
		}
		return nil, corrupt("truncated header", io.ErrUnexpectedEOF)
	}
	length := binary.LittleEndian.Uint64(rd.header[:8])
	if rd.opts.VerifyChecksums {
		if got, want := maskedCRC(rd.header[:8]), binary.LittleEndian.Uint32(rd.header[8:]); got != want {
			return nil, corrupt(fmt.Sprintf("length checksum %08x, want %08x", got, want), nil)
		}
	}
	if length > maxRecordSize {
		return nil, corrupt(fmt.Sprintf("record length %d exceeds limit", length), nil)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(rd.r, data); err != nil {
		return nil, corrupt("truncated data", io.ErrUnexpectedEOF)
	}
	if _, err := io.ReadFull(rd.r, rd.footer[:]); err != nil {
		return nil, corrupt("truncated data checksum", io.ErrUnexpectedEOF)
	}
	if rd.opts.VerifyChecksums {
		if got, want := maskedCRC(data), binary.LittleEndian.Uint32(rd.footer[:]); got != want {
			return nil, corrupt(fmt.Sprintf("data checksum %08x, want %08x", got, want), nil)
		}
	}

	rd.offset += int64(len(rd.header)) + int64(length) + int64(len(rd.footer))
	rd.index++
	return data, nil
}

// Index returns the number of records read so far.
func (rd *Reader) Index() int { return rd.index }

// Close releases the decompressor and, for readers from Open, the file.
func (rd *Reader) Close() error {
	var errs []error
	for _, c := range rd.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rd.closers = nil
	return errors.Join(errs...)
}

// Records lazily yields the records of the container at path. The file is
// opened when iteration starts and closed when it ends, including when the
// consumer stops early. A failure is yielded once and ends the sequence.
func Records(fsys fsutil.FileSystem, path string, opts ReaderOptions) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		rd, err := Open(fsys, path, opts)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rd.Close()

		for {
			rec, err := rd.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Writer appends records to a container.
type Writer struct {
	w      io.Writer
	zw     io.WriteCloser
	header [12]byte
	footer [4]byte
	count  int
}

// NewWriter writes records to w with the given whole-file compression. Close
// flushes the compressor but does not close w.
func NewWriter(w io.Writer, c Compression) (*Writer, error) {
	wr := &Writer{w: w}
	switch c {
	case CompressionNone:
	case CompressionGzip:
		wr.zw = gzip.NewWriter(w)
		wr.w = wr.zw
	case CompressionZlib:
		wr.zw = zlib.NewWriter(w)
		wr.w = wr.zw
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
	return wr, nil
}

// Write appends one record.
func (wr *Writer) Write(rec []byte) error {
	binary.LittleEndian.PutUint64(wr.header[:8], uint64(len(rec)))
	binary.LittleEndian.PutUint32(wr.header[8:], maskedCRC(wr.header[:8]))
	binary.LittleEndian.PutUint32(wr.footer[:], maskedCRC(rec))

	for _, b := range [][]byte{wr.header[:], rec, wr.footer[:]} {
		if _, err := wr.w.Write(b); err != nil {
			return fmt.Errorf("write record %d: %w", wr.count, err)
		}
	}
	wr.count++
	return nil
}

// Count returns the number of records written.
func (wr *Writer) Count() int { return wr.count }

// Close flushes any compressor.
func (wr *Writer) Close() error {
	if wr.zw != nil {
		return wr.zw.Close()
	}
	return nil
}
