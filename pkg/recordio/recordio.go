// Package recordio reads and writes the framed record files the input
// pipeline consumes. Each frame is a little-endian uint32 payload length, a
// CRC-32C of the payload, then the payload bytes.
package recordio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"segdata/pkg/dataset"
)

// ErrCorruptRecord reports a frame whose length or checksum does not hold.
var ErrCorruptRecord = errors.New("recordio: corrupt record")

// maxRecordSize bounds a single frame. Anything larger is treated as
// corruption rather than allocated.
const maxRecordSize = 256 << 20

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Writer appends framed records to an underlying writer.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer framing records onto w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write appends one record.
func (w *Writer) Write(rec []byte) error {
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(rec)))
	binary.LittleEndian.PutUint32(hdr[4:8], crc32.Checksum(rec, castagnoli))
	if _, err := w.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("recordio: write header: %w", err)
	}
	if _, err := w.w.Write(rec); err != nil {
		return fmt.Errorf("recordio: write payload: %w", err)
	}
	return nil
}

// FileWriter is a Writer bound to a buffered file.
type FileWriter struct {
	*Writer
	f  *os.File
	bw *bufio.Writer
}

// NewFileWriter creates (or truncates) path and returns a writer to it.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recordio: create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	return &FileWriter{Writer: NewWriter(bw), f: f, bw: bw}, nil
}

// Close flushes buffered frames and closes the file.
func (w *FileWriter) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("recordio: flush %s: %w", w.f.Name(), err)
	}
	return w.f.Close()
}

// Reader pulls framed records from an underlying reader.
type Reader struct {
	r *bufio.Reader
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next record payload. It returns io.EOF at a clean end of
// input and ErrCorruptRecord when a frame is truncated or fails its
// checksum.
func (r *Reader) Next() ([]byte, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: truncated header", ErrCorruptRecord)
	}
	n := binary.LittleEndian.Uint32(hdr[0:4])
	if n > maxRecordSize {
		return nil, fmt.Errorf("%w: frame length %d", ErrCorruptRecord, n)
	}
	rec := make([]byte, n)
	if _, err := io.ReadFull(r.r, rec); err != nil {
		return nil, fmt.Errorf("%w: truncated payload", ErrCorruptRecord)
	}
	if crc32.Checksum(rec, castagnoli) != binary.LittleEndian.Uint32(hdr[4:8]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptRecord)
	}
	return rec, nil
}

type fileStream struct {
	path string
	f    *os.File
	r    *Reader
	err  error
}

func (s *fileStream) Next() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.f == nil {
		f, err := os.Open(s.path)
		if err != nil {
			s.err = fmt.Errorf("recordio: open %s: %w", s.path, err)
			return nil, s.err
		}
		s.f = f
		s.r = NewReader(f)
	}
	rec, err := s.r.Next()
	if err != nil {
		s.err = err
		s.f.Close()
		s.f = nil
		return nil, err
	}
	return rec, nil
}

// ReadFile opens path lazily as a stream of raw records. It matches the
// pipeline's file-read function signature; the open error, if any, arrives
// on the first pull.
func ReadFile(path string) dataset.Stream[[]byte] {
	return &fileStream{path: path}
}
