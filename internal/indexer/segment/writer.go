package segment

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/index"
)

// writeSegment serialises a sealed snapshot into a single .spdx file at path:
// header, postings blocks, JSON dictionary, JSON field norms, footer. Entries
// must already be sorted by (field, term).
func writeSegment(path string, snap *index.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating segment file: %w", err)
	}
	defer f.Close()

	headerBytes := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(headerBytes[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(headerBytes[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(headerBytes[8:12], uint32(len(snap.Entries)))
	binary.LittleEndian.PutUint32(headerBytes[12:16], uint32(snap.DocCount))

	w := bufio.NewWriterSize(f, 1<<20)
	var offset int64
	write := func(p []byte) error {
		n, err := w.Write(p)
		offset += int64(n)
		return err
	}
	if err := write(headerBytes); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	postingsStart := offset
	dict := make([]DictEntry, 0, len(snap.Entries))
	for _, entry := range snap.Entries {
		relativeOffset := offset - postingsStart
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		if err := write(postingsData); err != nil {
			return fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Field:      entry.Field,
			Term:       entry.Term,
			PostOffset: relativeOffset,
			PostLen:    len(postingsData),
			DocFreq:    len(entry.Postings),
		})
	}
	postingsSize := offset - postingsStart

	dictStart := offset
	dictData, err := json.Marshal(dict)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}
	if err := write(dictData); err != nil {
		return fmt.Errorf("writing dictionary: %w", err)
	}

	normStart := offset
	normData, err := json.Marshal(snap.Norms)
	if err != nil {
		return fmt.Errorf("marshaling field norms: %w", err)
	}
	if err := write(normData); err != nil {
		return fmt.Errorf("writing field norms: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], crc32.ChecksumIEEE(normData))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(dictStart))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(postingsSize))
	binary.LittleEndian.PutUint64(footer[32:40], uint64(normStart))
	binary.LittleEndian.PutUint64(footer[40:48], uint64(len(normData)))
	if err := write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing segment file: %w", err)
	}

	binary.LittleEndian.PutUint64(headerBytes[16:24], uint64(dictStart))
	binary.LittleEndian.PutUint64(headerBytes[24:32], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(headerBytes[32:40], uint64(postingsStart))
	binary.LittleEndian.PutUint64(headerBytes[40:48], uint64(postingsSize))
	binary.LittleEndian.PutUint64(headerBytes[48:56], uint64(normStart))
	binary.LittleEndian.PutUint64(headerBytes[56:64], uint64(len(normData)))
	if _, err := f.WriteAt(headerBytes, 0); err != nil {
		return fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing segment file: %w", err)
	}
	return f.Close()
}
