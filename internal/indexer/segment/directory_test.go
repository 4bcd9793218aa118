package segment

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/analyzer"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/errors"
)

func lineDoc(text string) index.Document {
	return index.Document{
		"title":   {Content: "r", Stored: true, Indexed: true, Keyword: true},
		"content": {Content: text, Stored: true, Indexed: true},
	}
}

func buildIndex(t *testing.T, dir string, overwrite bool, lines ...string) index.Store {
	t.Helper()
	a, err := analyzer.New("zh")
	require.NoError(t, err)
	w, err := Create(dir, Options{Overwrite: overwrite})
	require.NoError(t, err)
	b := index.NewBuilder(a, w)
	for _, line := range lines {
		_, err := b.Add(lineDoc(line))
		require.NoError(t, err)
	}
	require.NoError(t, b.Close())
	store, err := b.Store()
	require.NoError(t, err)
	return store
}

func TestSealedIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	built := buildIndex(t, dir, false, "猫坐在垫子上。", "狗跑进花园。", "猫和狗是朋友。")
	require.NoError(t, built.Close())

	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, 3, store.DocumentCount())
	assert.Equal(t, "zh", store.Language())
	assert.Equal(t, "zh+unigram", store.AnalyzerSignature())
	assert.Equal(t, uint64(1), store.Generation())

	postings, err := store.PostingsFor("content", "猫")
	require.NoError(t, err)
	require.Len(t, postings, 2)
	assert.Equal(t, uint32(0), postings[0].DocID)
	assert.Equal(t, uint32(2), postings[1].DocID)

	df, err := store.DocumentFrequency("content", "狗")
	require.NoError(t, err)
	assert.Equal(t, 2, df)

	df, err = store.DocumentFrequency("content", "鸟")
	require.NoError(t, err)
	assert.Zero(t, df)
	missing, err := store.PostingsFor("content", "鸟")
	require.NoError(t, err)
	assert.Empty(t, missing)

	fields, err := store.StoredFields(1)
	require.NoError(t, err)
	assert.Equal(t, "狗跑进花园。", fields["content"])
	assert.Equal(t, "r", fields["title"])

	assert.Equal(t, 6, store.FieldLength(0, "content"))
	assert.InDelta(t, 17.0/3.0, store.AverageFieldLength("content"), 1e-9)
}

func TestOpenWithoutSealedIndex(t *testing.T) {
	_, err := Open(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotSealed))
}

func TestCurrentGenerationFollowsSeal(t *testing.T) {
	dir := t.TempDir()
	_, err := CurrentGeneration(dir)
	assert.True(t, errors.Is(err, apperrors.ErrNotSealed))

	require.NoError(t, buildIndex(t, dir, false, "猫").Close())
	gen, err := CurrentGeneration(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)

	require.NoError(t, buildIndex(t, dir, true, "狗").Close())
	gen, err = CurrentGeneration(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), gen)
}

func TestSecondWriterIsLockedOut(t *testing.T) {
	dir := t.TempDir()
	first, err := Create(dir, Options{})
	require.NoError(t, err)

	_, err = Create(dir, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrResourceLocked))

	require.NoError(t, first.Abort())
	require.NoError(t, first.Abort(), "abort is idempotent")

	again, err := Create(dir, Options{})
	require.NoError(t, err, "lock is released by abort")
	require.NoError(t, again.Abort())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), buildingExt)
	}
}

func TestOverwriteRequiresPermission(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, buildIndex(t, dir, false, "猫").Close())

	_, err := Create(dir, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrResourceLocked))

	rebuilt := buildIndex(t, dir, true, "狗", "鸟")
	defer rebuilt.Close()
	assert.Equal(t, uint64(2), rebuilt.Generation())
	assert.Equal(t, 2, rebuilt.DocumentCount())

	_, err = os.Stat(filepath.Join(dir, generationName(1)))
	assert.True(t, os.IsNotExist(err), "superseded generation is removed")
}

func TestOpenStoreDoesNotSeeNewGeneration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, buildIndex(t, dir, false, "猫坐在垫子上。").Close())

	old, err := Open(dir)
	require.NoError(t, err)
	defer old.Close()

	require.NoError(t, buildIndex(t, dir, true, "狗", "狗狗").Close())

	assert.Equal(t, 1, old.DocumentCount())
	postings, err := old.PostingsFor("content", "猫")
	require.NoError(t, err)
	assert.Len(t, postings, 1)
	fields, err := old.StoredFields(0)
	require.NoError(t, err)
	assert.Equal(t, "猫坐在垫子上。", fields["content"])

	fresh, err := Open(dir)
	require.NoError(t, err)
	defer fresh.Close()
	assert.Equal(t, 2, fresh.DocumentCount())
}

func TestAbortedBuildLeavesPreviousIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, buildIndex(t, dir, false, "猫").Close())

	a, err := analyzer.New("zh")
	require.NoError(t, err)
	w, err := Create(dir, Options{Overwrite: true})
	require.NoError(t, err)
	b := index.NewBuilder(a, w)
	_, err = b.Add(lineDoc("狗"))
	require.NoError(t, err)
	require.NoError(t, b.Abort())

	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, uint64(1), store.Generation())
	assert.Equal(t, 1, store.DocumentCount())
}

func TestUnopenableGenerationIsNotPublished(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, buildIndex(t, dir, false, "猫").Close())

	openSealed = func(string, uint64) (*Store, error) {
		return nil, apperrors.New(apperrors.ErrIO, "reopen failed")
	}
	t.Cleanup(func() { openSealed = openGeneration })

	a, err := analyzer.New("zh")
	require.NoError(t, err)
	w, err := Create(dir, Options{Overwrite: true})
	require.NoError(t, err)
	b := index.NewBuilder(a, w)
	_, err = b.Add(lineDoc("狗"))
	require.NoError(t, err)
	require.Error(t, b.Close())

	gen, err := CurrentGeneration(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)
	_, err = os.Stat(filepath.Join(dir, generationName(2)))
	assert.True(t, os.IsNotExist(err))

	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, 1, store.DocumentCount())
}

func TestCorruptDictionaryIsDetected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, buildIndex(t, dir, false, "猫坐在垫子上。", "狗跑进花园。").Close())

	path := filepath.Join(dir, generationName(1), postingsFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	dictOffset := binary.LittleEndian.Uint64(data[16:24])
	data[dictOffset+2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Open(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrIO))
	assert.Contains(t, err.Error(), "checksum")
}

func TestClosedStoreRejectsReads(t *testing.T) {
	store := buildIndex(t, t.TempDir(), false, "猫")
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.PostingsFor("content", "猫")
	assert.True(t, errors.Is(err, apperrors.ErrNotSealed))
	_, err = store.StoredFields(0)
	assert.True(t, errors.Is(err, apperrors.ErrNotSealed))
}
