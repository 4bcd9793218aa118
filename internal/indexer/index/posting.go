package index

type Posting struct {
	DocID     uint32 `json:"i"`
	Frequency int    `json:"f"`
	Positions []int  `json:"p,omitempty"`
}

// PostingList is ordered by ascending DocID.
type PostingList []Posting

type TermEntry struct {
	Field    string
	Term     string
	Postings PostingList
}

// FieldStats aggregates one field across the corpus. Docs counts documents
// with the field indexed; TotalLength is the summed term count.
type FieldStats struct {
	Docs        int   `json:"docs"`
	TotalLength int64 `json:"total_length"`
}

// Average returns the mean field length over documents carrying the field.
func (s FieldStats) Average() float64 {
	if s.Docs == 0 {
		return 0
	}
	return float64(s.TotalLength) / float64(s.Docs)
}

// Field is one named value of a Document.
type Field struct {
	Content string
	Stored  bool
	Indexed bool
	// Keyword fields are indexed as a single unanalyzed term.
	Keyword bool
}

// Document maps field names to values.
type Document map[string]Field

// StoredFields is what the document store returns for a document id.
type StoredFields map[string]string

// Snapshot is the sealed, sorted content of a build handed to a backend.
type Snapshot struct {
	Language string
	// Analyzer is the Signature of the analyzer that produced the terms.
	Analyzer string
	DocCount int
	Entries  []TermEntry
	Fields   map[string]FieldStats
	// Norms holds per-document field lengths, indexed by DocID.
	Norms map[string][]uint32
}
