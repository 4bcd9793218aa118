package index

import (
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/errors"
)

// MemoryStore is the memory-resident backend. It is frozen at seal time and
// released by Close; reads after Close fail with ErrNotSealed.
type MemoryStore struct {
	language string
	analyzer string
	postings map[termKey]PostingList
	stored   []StoredFields
	fields   map[string]FieldStats
	norms    map[string][]uint32
	docCount int
	closed   atomic.Bool
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) PostingsFor(field, term string) (PostingList, error) {
	if s.closed.Load() {
		return nil, errClosed
	}
	return s.postings[termKey{field: field, term: term}], nil
}

func (s *MemoryStore) DocumentFrequency(field, term string) (int, error) {
	if s.closed.Load() {
		return 0, errClosed
	}
	return len(s.postings[termKey{field: field, term: term}]), nil
}

func (s *MemoryStore) StoredFields(docID uint32) (StoredFields, error) {
	if s.closed.Load() {
		return nil, errClosed
	}
	if int(docID) >= len(s.stored) {
		return nil, apperrors.Newf(apperrors.ErrIO, "document %d out of range (count %d)", docID, len(s.stored))
	}
	out := make(StoredFields, len(s.stored[docID]))
	for k, v := range s.stored[docID] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) DocumentCount() int {
	return s.docCount
}

func (s *MemoryStore) AverageFieldLength(field string) float64 {
	return s.fields[field].Average()
}

func (s *MemoryStore) FieldLength(docID uint32, field string) int {
	lengths := s.norms[field]
	if int(docID) >= len(lengths) {
		return 0
	}
	return int(lengths[docID])
}

func (s *MemoryStore) Language() string { return s.language }

func (s *MemoryStore) AnalyzerSignature() string { return s.analyzer }

// Generation is always zero: a memory store is never superseded in place.
func (s *MemoryStore) Generation() uint64 { return 0 }

// Close marks the store released. The maps are left to the collector so a
// reader racing with Close sees errClosed rather than a nil map.
func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}

var errClosed = apperrors.New(apperrors.ErrNotSealed, "store has been released")

// MemorySink collects stored fields in memory and freezes the snapshot into a
// MemoryStore.
type MemorySink struct {
	stored []StoredFields
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) StoreFields(docID uint32, fields StoredFields) error {
	for uint32(len(m.stored)) < docID {
		m.stored = append(m.stored, StoredFields{})
	}
	m.stored = append(m.stored, fields)
	return nil
}

func (m *MemorySink) Seal(snapshot *Snapshot) (Store, error) {
	postings := make(map[termKey]PostingList, len(snapshot.Entries))
	for _, entry := range snapshot.Entries {
		postings[termKey{field: entry.Field, term: entry.Term}] = entry.Postings
	}
	stored := m.stored
	for len(stored) < snapshot.DocCount {
		stored = append(stored, StoredFields{})
	}
	m.stored = nil
	return &MemoryStore{
		language: snapshot.Language,
		analyzer: snapshot.Analyzer,
		postings: postings,
		stored:   stored,
		fields:   snapshot.Fields,
		norms:    snapshot.Norms,
		docCount: snapshot.DocCount,
	}, nil
}

func (m *MemorySink) Abort() error {
	m.stored = nil
	return nil
}
