// Package batch augments question TSV files with retrieved passages.
package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// FieldNames is the column order of input and output files.
var FieldNames = []string{
	"sidx", "fid", "qid", "passages", "question",
	"option1", "option2", "option3", "option4", "label",
}

const (
	questionField = "question"
	passageField  = "passages"
)

// Record is one row keyed by header name.
type Record map[string]string

// Reader yields records from a tab-separated file with a header row.
type Reader struct {
	csv    *csv.Reader
	header []string
	line   int
}

func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing header row")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	return &Reader{csv: cr, header: header, line: 1}, nil
}

// Read returns the next record or io.EOF. Short rows leave the missing
// columns empty; extra cells are dropped.
func (r *Reader) Read() (Record, error) {
	row, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading row %d: %w", r.line+1, err)
	}
	r.line++
	rec := make(Record, len(r.header))
	for i, name := range r.header {
		if i < len(row) {
			rec[name] = row[i]
		}
	}
	return rec, nil
}

// Writer emits records in FieldNames order after a header row.
type Writer struct {
	csv *csv.Writer
	row []string
}

func NewWriter(w io.Writer) (*Writer, error) {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(FieldNames); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	return &Writer{csv: cw, row: make([]string, len(FieldNames))}, nil
}

func (w *Writer) Write(rec Record) error {
	for i, name := range FieldNames {
		w.row[i] = rec[name]
	}
	return w.csv.Write(w.row)
}

// Flush writes buffered rows and reports any earlier write error.
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}
