package index

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/analyzer"
	apperrors "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/errors"
)

type State int

const (
	StateEmpty State = iota
	StateBuilding
	StateSealed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBuilding:
		return "building"
	case StateSealed:
		return "sealed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrAlreadySealed = apperrors.New(apperrors.ErrNotSealed, "index already sealed")
	ErrBuildFailed   = apperrors.New(apperrors.ErrNotSealed, "build aborted by an earlier failure")
)

// Builder accumulates documents and seals them into a Store through a Sink.
// It is not safe for concurrent use; callers serialise Add and Close.
type Builder struct {
	analyzer analyzer.Analyzer
	sink     Sink
	mem      *MemoryIndex
	state    State
	nextID   uint32
	store    Store
	logger   *slog.Logger
}

func NewBuilder(a analyzer.Analyzer, sink Sink) *Builder {
	return &Builder{
		analyzer: a,
		sink:     sink,
		mem:      NewMemoryIndex(),
		logger:   slog.Default().With("component", "index-builder", "language", a.Language()),
	}
}

func (b *Builder) State() State { return b.state }

// Add assigns the next document id, buffers postings for every indexed field
// and hands stored fields to the sink. A sink failure moves the builder to
// StateFailed; the caller must Abort and discard it.
func (b *Builder) Add(doc Document) (uint32, error) {
	switch b.state {
	case StateSealed:
		return 0, ErrAlreadySealed
	case StateFailed:
		return 0, ErrBuildFailed
	}
	if b.nextID == math.MaxUint32 {
		return 0, apperrors.New(apperrors.ErrIO, "document id space exhausted")
	}
	b.state = StateBuilding
	docID := b.nextID

	stored := make(StoredFields)
	for _, name := range sortedFieldNames(doc) {
		field := doc[name]
		if field.Stored {
			stored[name] = field.Content
		}
		if !field.Indexed {
			continue
		}
		var tokens []analyzer.Token
		if field.Keyword {
			tokens = []analyzer.Token{{Term: field.Content}}
		} else {
			tokens = b.analyzer.Tokenize(field.Content)
		}
		b.mem.AddField(docID, name, tokens)
	}
	if err := b.sink.StoreFields(docID, stored); err != nil {
		b.state = StateFailed
		return 0, fmt.Errorf("storing fields of document %d: %w", docID, err)
	}
	b.mem.EndDocument()
	b.nextID++
	return docID, nil
}

// Close seals the build. Calling Close on a sealed builder is a no-op.
func (b *Builder) Close() error {
	switch b.state {
	case StateSealed:
		return nil
	case StateFailed:
		return ErrBuildFailed
	}
	snapshot := b.mem.Snapshot(b.analyzer.Language())
	snapshot.Analyzer = b.analyzer.Signature()
	store, err := b.sink.Seal(snapshot)
	if err != nil {
		b.state = StateFailed
		return fmt.Errorf("sealing index: %w", err)
	}
	b.store = store
	b.state = StateSealed
	b.mem.Reset()
	b.logger.Info("index sealed",
		"docs", snapshot.DocCount,
		"terms", len(snapshot.Entries),
		"generation", store.Generation(),
	)
	return nil
}

// Abort discards a build that has not been sealed. It is safe to defer
// unconditionally: on a sealed builder it does nothing.
func (b *Builder) Abort() error {
	if b.state == StateSealed {
		return nil
	}
	b.state = StateFailed
	b.mem.Reset()
	return b.sink.Abort()
}

// Store returns the sealed store.
func (b *Builder) Store() (Store, error) {
	if b.state != StateSealed {
		return nil, apperrors.Newf(apperrors.ErrNotSealed, "index is %s", b.state)
	}
	return b.store, nil
}

func sortedFieldNames(doc Document) []string {
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
