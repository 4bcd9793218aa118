// Package corpus turns a directory of plain-text files into index documents,
// one per line.
package corpus

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/errors"
)

const (
	TitleField   = "title"
	ContentField = "content"
)

// ListFiles returns every regular file under root whose extension is ext,
// sorted so that document ids are reproducible across runs.
func ListFiles(root, ext string) ([]string, error) {
	suffix := "." + strings.TrimPrefix(ext, ".")
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), suffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.IOf(err, "listing corpus under %s", root)
	}
	sort.Strings(paths)
	return paths, nil
}

// LineDocument builds the document for one corpus line: a keyword title
// holding the placeholder and the stored, indexed content.
func LineDocument(title, content string) index.Document {
	return index.Document{
		TitleField:   {Content: title, Stored: true, Indexed: true, Keyword: true},
		ContentField: {Content: content, Stored: true, Indexed: true},
	}
}

// LineSource reads files in order and yields one document per line. Blank
// lines are kept so that line numbers and document ids stay aligned.
type LineSource struct {
	paths  []string
	title  string
	next   int
	file   *os.File
	reader *bufio.Reader
	lines  int
	logger *slog.Logger
}

func NewLineSource(paths []string, title string) *LineSource {
	return &LineSource{
		paths:  paths,
		title:  title,
		logger: slog.Default().With("component", "corpus"),
	}
}

// Next returns the next line as a document, or io.EOF after the last file.
func (s *LineSource) Next(ctx context.Context) (index.Document, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.reader == nil {
			if s.next >= len(s.paths) {
				return nil, io.EOF
			}
			if err := s.open(s.paths[s.next]); err != nil {
				return nil, err
			}
			s.next++
		}
		line, err := s.reader.ReadString('\n')
		if len(line) > 0 {
			s.lines++
			return LineDocument(s.title, strings.TrimRight(line, "\r\n")), nil
		}
		if errors.Is(err, io.EOF) {
			s.closeFile()
			continue
		}
		if err != nil {
			return nil, apperrors.IOf(err, "reading %s", s.file.Name())
		}
	}
}

func (s *LineSource) open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return apperrors.IOf(err, "opening corpus file")
	}
	s.file = f
	s.reader = bufio.NewReaderSize(f, 64*1024)
	s.logger.Debug("reading corpus file", "path", path, "file", s.next+1, "of", len(s.paths))
	return nil
}

func (s *LineSource) closeFile() {
	if s.file != nil {
		s.file.Close()
	}
	s.file = nil
	s.reader = nil
}

// Lines is the number of documents produced so far.
func (s *LineSource) Lines() int { return s.lines }

func (s *LineSource) Close() error {
	s.closeFile()
	s.next = len(s.paths)
	return nil
}

// SplitSentences cuts text after each sentence terminator (。！!.？?) and
// keeps the terminator with its sentence. Whitespace-only pieces are
// dropped.
func SplitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if !isTerminator(r) {
			continue
		}
		end := i + len(string(r))
		out = appendSentence(out, text[start:end])
		start = end
	}
	return appendSentence(out, text[start:])
}

func appendSentence(out []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}

func isTerminator(r rune) bool {
	switch r {
	case '。', '！', '!', '.', '？', '?':
		return true
	}
	return false
}
