// Package ranker scores candidate documents with Okapi BM25.
package ranker

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/index"
)

type Params struct {
	K1 float64
	B  float64
}

func DefaultParams() Params {
	return Params{K1: 1.2, B: 0.75}
}

type ScoredDoc struct {
	DocID uint32  `json:"doc_id"`
	Score float64 `json:"score"`
}

// TermPostings is one query term with its posting list in the queried field.
type TermPostings struct {
	Term     string
	DocFreq  int
	Postings index.PostingList
}

// FieldStats is the subset of index.Store the scorer needs.
type FieldStats interface {
	DocumentCount() int
	AverageFieldLength(field string) float64
	FieldLength(docID uint32, field string) int
}

// Rank scores every document that appears in at least one term's postings
// and returns the best limit of them, score descending and ties broken by
// ascending DocID. Each document's score is summed over terms in the order
// given, so results are reproducible bit for bit.
func Rank(terms []TermPostings, field string, stats FieldStats, params Params, limit int) []ScoredDoc {
	if limit <= 0 {
		return []ScoredDoc{}
	}
	candidates := roaring.New()
	for _, tp := range terms {
		for _, p := range tp.Postings {
			candidates.Add(p.DocID)
		}
	}
	if candidates.IsEmpty() {
		return []ScoredDoc{}
	}

	// scores[i] belongs to the i-th smallest candidate id.
	scores := make([]float64, candidates.GetCardinality())
	totalDocs := stats.DocumentCount()
	avgLen := stats.AverageFieldLength(field)
	for _, tp := range terms {
		idf := IDF(totalDocs, tp.DocFreq)
		for _, p := range tp.Postings {
			docLen := float64(stats.FieldLength(p.DocID, field))
			slot := candidates.Rank(p.DocID) - 1
			scores[slot] += idf * TFNorm(float64(p.Frequency), docLen, avgLen, params)
		}
	}

	top := newTopN(min(limit, len(scores)))
	it := candidates.Iterator()
	for i := 0; it.HasNext(); i++ {
		top.offer(ScoredDoc{DocID: it.Next(), Score: scores[i]})
	}
	return top.sorted()
}

// IDF is ln(1 + (N - n + 0.5) / (n + 0.5)); it stays positive for any n <= N.
func IDF(totalDocs, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(1 + numerator/denominator)
}

// TFNorm is the saturated term-frequency factor of BM25.
func TFNorm(termFreq, docLength, avgDocLength float64, params Params) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + params.K1*(1-params.B+params.B*lengthRatio)
	return (termFreq * (params.K1 + 1)) / denominator
}
