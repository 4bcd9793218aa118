package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/analyzer"
)

type termKey struct {
	field string
	term  string
}

// MemoryIndex is the accumulation buffer of a build. Documents arrive with
// increasing ids, so every posting list stays sorted by appending.
type MemoryIndex struct {
	index    map[termKey]PostingList
	norms    map[string][]uint32
	fields   map[string]FieldStats
	docCount int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index:  make(map[termKey]PostingList),
		norms:  make(map[string][]uint32),
		fields: make(map[string]FieldStats),
	}
}

// AddField appends the postings of one indexed field of document docID.
func (m *MemoryIndex) AddField(docID uint32, field string, tokens []analyzer.Token) {
	termData := make(map[string]*Posting)
	order := make([]string, 0, len(tokens))
	for _, token := range tokens {
		p, exists := termData[token.Term]
		if !exists {
			p = &Posting{
				DocID:     docID,
				Positions: make([]int, 0, 4),
			}
			termData[token.Term] = p
			order = append(order, token.Term)
		}
		p.Frequency++
		p.Positions = append(p.Positions, token.Position)
	}
	for _, term := range order {
		key := termKey{field: field, term: term}
		posting := termData[term]
		m.index[key] = append(m.index[key], *posting)
	}

	norms := m.norms[field]
	for uint32(len(norms)) < docID {
		norms = append(norms, 0)
	}
	m.norms[field] = append(norms, uint32(len(tokens)))

	stats := m.fields[field]
	stats.Docs++
	stats.TotalLength += int64(len(tokens))
	m.fields[field] = stats
}

// EndDocument records that a document was added, whether or not it had any
// indexed field.
func (m *MemoryIndex) EndDocument() {
	m.docCount++
}

// Snapshot returns all entries sorted by field then term, with norms padded
// to the full document count.
func (m *MemoryIndex) Snapshot(language string) *Snapshot {
	entries := make([]TermEntry, 0, len(m.index))
	for key, postings := range m.index {
		entries = append(entries, TermEntry{
			Field:    key.field,
			Term:     key.term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Field != entries[j].Field {
			return entries[i].Field < entries[j].Field
		}
		return entries[i].Term < entries[j].Term
	})
	norms := make(map[string][]uint32, len(m.norms))
	for field, lengths := range m.norms {
		padded := make([]uint32, m.docCount)
		copy(padded, lengths)
		norms[field] = padded
	}
	fields := make(map[string]FieldStats, len(m.fields))
	for field, stats := range m.fields {
		fields[field] = stats
	}
	return &Snapshot{
		Language: language,
		DocCount: m.docCount,
		Entries:  entries,
		Fields:   fields,
		Norms:    norms,
	}
}

func (m *MemoryIndex) Reset() {
	m.index = make(map[termKey]PostingList)
	m.norms = make(map[string][]uint32)
	m.fields = make(map[string]FieldStats)
	m.docCount = 0
}
