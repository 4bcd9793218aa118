// Package segment is the persisted index backend. An index directory holds a
// LOCK file, a CURRENT pointer and one directory per sealed generation:
//
//	<dir>/LOCK
//	<dir>/CURRENT                     names the sealed generation
//	<dir>/gen-000001/MANIFEST.json
//	<dir>/gen-000001/postings.spdx    header, postings, dictionary, norms, footer
//	<dir>/gen-000001/stored.dat       zstd frames of stored fields
//	<dir>/gen-000001/stored.idx       frame offsets
//
// A Writer builds the next generation in gen-N.building under the lock and
// switches CURRENT only after every file is synced, so readers either see the
// previous generation or the complete new one.
package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/resilience"
)

var errLockHeld = errors.New("lock held")

// Options controls how Create treats an existing sealed index.
type Options struct {
	Overwrite bool
}

// Writer is the persisted index.Sink. It holds the directory lock from
// Create until Seal or Abort.
type Writer struct {
	dir       string
	gen       uint64
	building  string
	buildID   string
	lock      *dirLock
	stored    *storedWriter
	docs      uint32
	finished  bool
	logger    *slog.Logger
	startedAt time.Time
}

var _ index.Sink = (*Writer)(nil)

// Create opens dir for writing a new generation. It fails with
// ErrResourceLocked if another writer holds the directory, or if a sealed
// index already exists there and opts.Overwrite is false.
func Create(dir string, opts Options) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.IOf(err, "creating index directory %s", dir)
	}
	lock, err := acquireLock(filepath.Join(dir, lockFile))
	if err != nil {
		if errors.Is(err, errLockHeld) {
			return nil, apperrors.Newf(apperrors.ErrResourceLocked, "index at %s is being built by another writer", dir)
		}
		return nil, apperrors.IOf(err, "locking index directory %s", dir)
	}

	w, err := prepareGeneration(dir, opts, lock)
	if err != nil {
		lock.release()
		return nil, err
	}
	return w, nil
}

func prepareGeneration(dir string, opts Options, lock *dirLock) (*Writer, error) {
	current, sealed, err := readCurrent(dir)
	if err != nil {
		return nil, apperrors.IOf(err, "inspecting index directory %s", dir)
	}
	if sealed && !opts.Overwrite {
		return nil, apperrors.Newf(apperrors.ErrResourceLocked,
			"sealed index (generation %d) exists at %s and overwrite was not requested", current, dir)
	}
	next := current
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.IOf(err, "reading index directory %s", dir)
	}
	for _, entry := range entries {
		if gen, ok := parseGeneration(entry.Name()); ok && gen > next {
			next = gen
		}
	}
	next++

	building := filepath.Join(dir, generationName(next)+buildingExt)
	if err := os.RemoveAll(building); err != nil {
		return nil, apperrors.IOf(err, "clearing %s", building)
	}
	if err := os.MkdirAll(building, 0o755); err != nil {
		return nil, apperrors.IOf(err, "creating %s", building)
	}
	stored, err := newStoredWriter(filepath.Join(building, storedData))
	if err != nil {
		os.RemoveAll(building)
		return nil, apperrors.IOf(err, "preparing generation %d", next)
	}
	w := &Writer{
		dir:       dir,
		gen:       next,
		building:  building,
		buildID:   uuid.NewString(),
		lock:      lock,
		stored:    stored,
		startedAt: time.Now(),
	}
	w.logger = slog.Default().With("component", "segment-writer", "dir", dir, "generation", next, "build_id", w.buildID)
	w.logger.Info("index generation opened for writing", "overwrite", sealed)
	return w, nil
}

// Generation is the number the sealed index will carry.
func (w *Writer) Generation() uint64 { return w.gen }

func (w *Writer) StoreFields(docID uint32, fields index.StoredFields) error {
	if w.finished {
		return apperrors.New(apperrors.ErrNotSealed, "writer already finished")
	}
	if docID != w.docs {
		return apperrors.Newf(apperrors.ErrIO, "stored fields out of order: got document %d, want %d", docID, w.docs)
	}
	if err := w.stored.append(fields); err != nil {
		return apperrors.IOf(err, "document %d", docID)
	}
	w.docs++
	return nil
}

// Seal writes the segment and manifest, publishes the generation through
// CURRENT, removes older generations and releases the lock. On failure the
// partial generation is removed and nothing is published.
func (w *Writer) Seal(snap *index.Snapshot) (index.Store, error) {
	if w.finished {
		return nil, apperrors.New(apperrors.ErrNotSealed, "writer already finished")
	}
	store, err := w.publish(snap)
	if err != nil {
		w.Abort()
		return nil, err
	}
	w.finished = true
	w.removeOldGenerations()
	if err := w.lock.release(); err != nil {
		w.logger.Warn("releasing index lock", "error", err)
	}
	w.logger.Info("index generation sealed",
		"docs", snap.DocCount,
		"terms", len(snap.Entries),
		"duration", time.Since(w.startedAt).Round(time.Millisecond),
	)
	return store, nil
}

// publish writes the generation, opens it, and only then points CURRENT at
// it. A generation that cannot be opened is never made current.
func (w *Writer) publish(snap *index.Snapshot) (*Store, error) {
	if uint32(snap.DocCount) != w.docs {
		return nil, apperrors.Newf(apperrors.ErrIO, "snapshot has %d documents, stored %d", snap.DocCount, w.docs)
	}
	if err := w.stored.finish(filepath.Join(w.building, storedIndex)); err != nil {
		return nil, apperrors.IOf(err, "sealing stored fields")
	}
	if err := w.stored.close(); err != nil {
		return nil, apperrors.IOf(err, "closing stored fields")
	}
	w.stored = nil
	if err := writeSegment(filepath.Join(w.building, postingsFile), snap); err != nil {
		return nil, apperrors.IOf(err, "writing postings segment")
	}
	manifest := &Manifest{
		Version:    FormatVersion,
		Generation: w.gen,
		BuildID:    w.buildID,
		Language:   snap.Language,
		Analyzer:   snap.Analyzer,
		DocCount:   snap.DocCount,
		TermCount:  len(snap.Entries),
		Fields:     snap.Fields,
		CreatedAt:  time.Now().UTC(),
	}
	if err := writeManifest(w.building, manifest); err != nil {
		return nil, apperrors.IOf(err, "writing manifest")
	}
	final := filepath.Join(w.dir, generationName(w.gen))
	if err := os.Rename(w.building, final); err != nil {
		return nil, apperrors.IOf(err, "publishing generation %d", w.gen)
	}
	w.building = final
	store, err := openSealed(w.dir, w.gen)
	if err != nil {
		return nil, err
	}
	if err := writeCurrent(w.dir, w.gen); err != nil {
		store.Close()
		return nil, apperrors.IOf(err, "switching CURRENT to generation %d", w.gen)
	}
	return store, nil
}

// Abort removes the unpublished generation and releases the lock. It is
// idempotent and does nothing after a successful Seal.
func (w *Writer) Abort() error {
	if w.finished {
		return nil
	}
	w.finished = true
	var firstErr error
	if w.stored != nil {
		if err := w.stored.close(); err != nil {
			firstErr = err
		}
		w.stored = nil
	}
	if w.building != "" {
		if err := os.RemoveAll(w.building); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := w.lock.release(); err != nil && firstErr == nil {
		firstErr = err
	}
	w.logger.Warn("index generation aborted", "docs_written", w.docs)
	if firstErr != nil {
		return apperrors.IOf(firstErr, "aborting generation %d", w.gen)
	}
	return nil
}

// removeOldGenerations deletes superseded generations and leftover build
// directories. Readers that still hold files of an old generation keep
// reading them until they close.
func (w *Writer) removeOldGenerations() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("listing old generations", "error", err)
		return
	}
	for _, entry := range entries {
		gen, ok := parseGeneration(entry.Name())
		if !ok || gen >= w.gen || !entry.IsDir() {
			continue
		}
		if err := os.RemoveAll(filepath.Join(w.dir, entry.Name())); err != nil {
			w.logger.Warn("removing old generation", "name", entry.Name(), "error", err)
			continue
		}
		w.logger.Debug("old generation removed", "name", entry.Name())
	}
}

// Store is a sealed persisted generation opened for reading.
type Store struct {
	dir      string
	manifest *Manifest
	segment  *Reader
	stored   *storedReader
	closed   atomic.Bool
	once     sync.Once
}

var _ index.Store = (*Store)(nil)

var openRetry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond}

// Open opens the generation CURRENT points to. It fails with ErrNotSealed if
// no index has been sealed in dir.
func Open(dir string) (*Store, error) {
	var store *Store
	err := resilience.Retry(context.Background(), "open index", openRetry, func(context.Context) error {
		gen, ok, err := readCurrent(dir)
		if err != nil {
			return resilience.Permanent(apperrors.IOf(err, "opening index at %s", dir))
		}
		if !ok {
			return resilience.Permanent(apperrors.Newf(apperrors.ErrNotSealed, "no sealed index at %s", dir))
		}
		s, err := openGeneration(dir, gen)
		if err != nil {
			// A concurrent writer may have replaced gen between the two reads.
			if errors.Is(err, os.ErrNotExist) {
				return err
			}
			return resilience.Permanent(err)
		}
		store = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// CurrentGeneration reports the generation CURRENT points to without opening
// it.
func CurrentGeneration(dir string) (uint64, error) {
	gen, ok, err := readCurrent(dir)
	if err != nil {
		return 0, apperrors.IOf(err, "reading index at %s", dir)
	}
	if !ok {
		return 0, apperrors.Newf(apperrors.ErrNotSealed, "no sealed index at %s", dir)
	}
	return gen, nil
}

// openSealed is replaced in tests to fail the reopen of a fresh generation.
var openSealed = openGeneration

func openGeneration(dir string, gen uint64) (*Store, error) {
	genDir := filepath.Join(dir, generationName(gen))
	manifest, err := readManifest(genDir)
	if err != nil {
		return nil, apperrors.IOf(err, "opening generation %d", gen)
	}
	seg, err := OpenReader(filepath.Join(genDir, postingsFile))
	if err != nil {
		return nil, apperrors.IOf(err, "opening generation %d", gen)
	}
	stored, err := openStoredReader(filepath.Join(genDir, storedData), filepath.Join(genDir, storedIndex))
	if err != nil {
		seg.Close()
		return nil, apperrors.IOf(err, "opening generation %d", gen)
	}
	if int(seg.DocCount()) != manifest.DocCount || stored.count() != manifest.DocCount {
		seg.Close()
		stored.close()
		return nil, apperrors.Newf(apperrors.ErrIO,
			"generation %d is inconsistent: manifest %d docs, segment %d, stored %d",
			gen, manifest.DocCount, seg.DocCount(), stored.count())
	}
	return &Store{
		dir:      dir,
		manifest: manifest,
		segment:  seg,
		stored:   stored,
	}, nil
}


func (s *Store) PostingsFor(field, term string) (index.PostingList, error) {
	if s.closed.Load() {
		return nil, errStoreClosed
	}
	postings, err := s.segment.Search(field, term)
	if err != nil {
		return nil, apperrors.IOf(err, "postings for %s:%q", field, term)
	}
	return postings, nil
}

func (s *Store) DocumentFrequency(field, term string) (int, error) {
	if s.closed.Load() {
		return 0, errStoreClosed
	}
	return s.segment.DocFreq(field, term), nil
}

func (s *Store) StoredFields(docID uint32) (index.StoredFields, error) {
	if s.closed.Load() {
		return nil, errStoreClosed
	}
	fields, err := s.stored.get(docID)
	if err != nil {
		return nil, apperrors.IOf(err, "stored fields")
	}
	return fields, nil
}

func (s *Store) DocumentCount() int { return s.manifest.DocCount }

func (s *Store) AverageFieldLength(field string) float64 {
	return s.manifest.Fields[field].Average()
}

func (s *Store) FieldLength(docID uint32, field string) int {
	return s.segment.FieldLength(docID, field)
}

func (s *Store) Language() string { return s.manifest.Language }

func (s *Store) AnalyzerSignature() string { return s.manifest.Analyzer }

func (s *Store) Generation() uint64 { return s.manifest.Generation }

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		err = s.segment.Close()
		if cerr := s.stored.close(); err == nil {
			err = cerr
		}
		if err != nil {
			err = fmt.Errorf("closing generation %d: %w", s.manifest.Generation, err)
		}
	})
	return err
}

var errStoreClosed = apperrors.New(apperrors.ErrNotSealed, "store has been closed")
