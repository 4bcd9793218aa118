package index

// Store is the read contract shared by the persisted and memory-resident
// backends. A Store is a sealed, immutable snapshot and is safe for
// concurrent readers.
type Store interface {
	PostingsFor(field, term string) (PostingList, error)
	DocumentFrequency(field, term string) (int, error)
	StoredFields(docID uint32) (StoredFields, error)
	DocumentCount() int
	AverageFieldLength(field string) float64
	FieldLength(docID uint32, field string) int
	Language() string
	// AnalyzerSignature identifies the analyzer configuration the index was
	// built with.
	AnalyzerSignature() string
	Generation() uint64
	Close() error
}

// Sink receives a build's output. StoreFields is called once per document in
// id order during Add; Seal is called once at Close; Abort discards
// everything written so far.
type Sink interface {
	StoreFields(docID uint32, fields StoredFields) error
	Seal(snapshot *Snapshot) (Store, error)
	Abort() error
}
