package index

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/analyzer"
	apperrors "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/errors"
)

func contentDoc(text string) Document {
	return Document{
		"title":   {Content: "r", Stored: true, Indexed: true, Keyword: true},
		"content": {Content: text, Stored: true, Indexed: true},
	}
}

func newZhBuilder(t *testing.T) *Builder {
	t.Helper()
	a, err := analyzer.New("zh")
	require.NoError(t, err)
	return NewBuilder(a, NewMemorySink())
}

func TestBuilderLifecycle(t *testing.T) {
	b := newZhBuilder(t)
	assert.Equal(t, StateEmpty, b.State())

	_, err := b.Store()
	assert.True(t, errors.Is(err, apperrors.ErrNotSealed))

	id0, err := b.Add(contentDoc("猫坐在垫子上。"))
	require.NoError(t, err)
	id1, err := b.Add(contentDoc("狗跑进花园。"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), id0)
	assert.Equal(t, uint32(1), id1)
	assert.Equal(t, StateBuilding, b.State())

	require.NoError(t, b.Close())
	assert.Equal(t, StateSealed, b.State())
	require.NoError(t, b.Close(), "second close is a no-op")

	_, err = b.Add(contentDoc("鸟"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotSealed))
	assert.Contains(t, err.Error(), "already sealed")

	store, err := b.Store()
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, 2, store.DocumentCount())
	assert.Equal(t, "zh", store.Language())

	postings, err := store.PostingsFor("content", "猫")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, uint32(0), postings[0].DocID)
	assert.Equal(t, 1, postings[0].Frequency)

	df, err := store.DocumentFrequency("title", "r")
	require.NoError(t, err)
	assert.Equal(t, 2, df, "keyword field indexed unanalyzed")

	fields, err := store.StoredFields(1)
	require.NoError(t, err)
	assert.Equal(t, StoredFields{"title": "r", "content": "狗跑进花园。"}, fields)

	assert.Equal(t, 6, store.FieldLength(0, "content"))
	assert.Equal(t, 5, store.FieldLength(1, "content"))
	assert.InDelta(t, 5.5, store.AverageFieldLength("content"), 1e-9)
}

func TestBuilderPostingsSortedAndConsistent(t *testing.T) {
	b := newZhBuilder(t)
	texts := []string{"花园花园", "猫", "花", "园花", "狗"}
	for _, text := range texts {
		_, err := b.Add(contentDoc(text))
		require.NoError(t, err)
	}
	require.NoError(t, b.Close())
	store, err := b.Store()
	require.NoError(t, err)

	postings, err := store.PostingsFor("content", "花")
	require.NoError(t, err)
	ids := make([]uint32, len(postings))
	for i, p := range postings {
		ids[i] = p.DocID
	}
	assert.Equal(t, []uint32{0, 2, 3}, ids)
	assert.Equal(t, 2, postings[0].Frequency)
	assert.Equal(t, []int{0, 2}, postings[0].Positions)

	df, err := store.DocumentFrequency("content", "花")
	require.NoError(t, err)
	assert.Equal(t, len(postings), df)
}

func TestBuilderStoredOnlyAndIndexedOnly(t *testing.T) {
	b := newZhBuilder(t)
	_, err := b.Add(Document{
		"note": {Content: "不索引", Stored: true},
		"body": {Content: "只索引", Indexed: true},
	})
	require.NoError(t, err)
	require.NoError(t, b.Close())
	store, _ := b.Store()

	fields, err := store.StoredFields(0)
	require.NoError(t, err)
	assert.Equal(t, StoredFields{"note": "不索引"}, fields)

	p, _ := store.PostingsFor("note", "索")
	assert.Empty(t, p)
	p, _ = store.PostingsFor("body", "索")
	assert.Len(t, p, 1)
}

func TestBuilderEmptyCloseSeals(t *testing.T) {
	b := newZhBuilder(t)
	require.NoError(t, b.Close())
	store, err := b.Store()
	require.NoError(t, err)
	assert.Equal(t, 0, store.DocumentCount())
	assert.Equal(t, 0.0, store.AverageFieldLength("content"))
}

type failingSink struct {
	MemorySink
	failAt  uint32
	aborted int
}

func (f *failingSink) StoreFields(docID uint32, fields StoredFields) error {
	if docID == f.failAt {
		return apperrors.New(apperrors.ErrIO, "disk full")
	}
	return f.MemorySink.StoreFields(docID, fields)
}

func (f *failingSink) Abort() error {
	f.aborted++
	return nil
}

func TestBuilderIOFailureLeavesIndexUnsealed(t *testing.T) {
	a, _ := analyzer.New("zh")
	sink := &failingSink{failAt: 1}
	b := NewBuilder(a, sink)

	_, err := b.Add(contentDoc("一"))
	require.NoError(t, err)
	_, err = b.Add(contentDoc("二"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrIO))
	assert.Equal(t, StateFailed, b.State())

	_, err = b.Add(contentDoc("三"))
	assert.True(t, errors.Is(err, apperrors.ErrNotSealed))
	assert.Error(t, b.Close(), "a failed build never seals")
	_, err = b.Store()
	assert.Error(t, err)

	require.NoError(t, b.Abort())
	assert.Equal(t, 1, sink.aborted)
}

func TestMemoryStoreClosedRejectsReads(t *testing.T) {
	b := newZhBuilder(t)
	_, _ = b.Add(contentDoc("猫"))
	require.NoError(t, b.Close())
	store, _ := b.Store()
	require.NoError(t, store.Close())

	_, err := store.PostingsFor("content", "猫")
	assert.True(t, errors.Is(err, apperrors.ErrNotSealed))
	_, err = store.StoredFields(0)
	assert.Error(t, err)
}
