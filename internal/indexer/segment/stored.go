package segment

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/index"
)

// storedWriter appends one zstd frame of JSON per document to stored.dat and
// keeps the frame offsets in memory until finish writes stored.idx.
type storedWriter struct {
	file    *os.File
	buf     *bufio.Writer
	enc     *zstd.Encoder
	offsets []uint64
	offset  uint64
}

func newStoredWriter(path string) (*storedWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating stored fields file: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return &storedWriter{
		file:    f,
		buf:     bufio.NewWriterSize(f, 1<<20),
		enc:     enc,
		offsets: []uint64{0},
	}, nil
}

func (w *storedWriter) append(fields index.StoredFields) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshaling stored fields: %w", err)
	}
	frame := w.enc.EncodeAll(raw, nil)
	if _, err := w.buf.Write(frame); err != nil {
		return fmt.Errorf("writing stored fields: %w", err)
	}
	w.offset += uint64(len(frame))
	w.offsets = append(w.offsets, w.offset)
	return nil
}

// finish flushes stored.dat and writes the offset table to idxPath. The
// table has docCount+1 little-endian uint64 entries.
func (w *storedWriter) finish(idxPath string) error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flushing stored fields: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("syncing stored fields: %w", err)
	}
	table := make([]byte, 8*len(w.offsets))
	for i, off := range w.offsets {
		binary.LittleEndian.PutUint64(table[i*8:], off)
	}
	if err := writeFileSync(idxPath, table); err != nil {
		return fmt.Errorf("writing stored fields index: %w", err)
	}
	return nil
}

func (w *storedWriter) close() error {
	w.enc.Close()
	return w.file.Close()
}

// storedReader serves documents by id with ReadAt, safe for concurrent use.
type storedReader struct {
	file    *os.File
	dec     *zstd.Decoder
	offsets []uint64
}

func openStoredReader(dataPath, idxPath string) (*storedReader, error) {
	table, err := os.ReadFile(idxPath)
	if err != nil {
		return nil, fmt.Errorf("reading stored fields index: %w", err)
	}
	if len(table)%8 != 0 || len(table) == 0 {
		return nil, fmt.Errorf("stored fields index has invalid size %d", len(table))
	}
	offsets := make([]uint64, len(table)/8)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint64(table[i*8:])
	}
	f, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("opening stored fields: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &storedReader{file: f, dec: dec, offsets: offsets}, nil
}

func (r *storedReader) count() int {
	return len(r.offsets) - 1
}

func (r *storedReader) get(docID uint32) (index.StoredFields, error) {
	if int(docID) >= r.count() {
		return nil, fmt.Errorf("document %d out of range (count %d)", docID, r.count())
	}
	start, end := r.offsets[docID], r.offsets[docID+1]
	frame := make([]byte, end-start)
	if _, err := r.file.ReadAt(frame, int64(start)); err != nil {
		return nil, fmt.Errorf("reading stored fields of document %d: %w", docID, err)
	}
	raw, err := r.dec.DecodeAll(frame, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing stored fields of document %d: %w", docID, err)
	}
	var fields index.StoredFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("parsing stored fields of document %d: %w", docID, err)
	}
	return fields, nil
}

func (r *storedReader) close() error {
	r.dec.Close()
	return r.file.Close()
}

func writeFileSync(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
