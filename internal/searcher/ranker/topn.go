package ranker

import (
	"container/heap"
)

// topN keeps the best n documents seen so far in a min-heap whose root is
// the weakest survivor.
type topN struct {
	limit int
	h     scoredDocHeap
}

func newTopN(limit int) *topN {
	return &topN{limit: limit, h: make(scoredDocHeap, 0, limit+1)}
}

func (t *topN) offer(doc ScoredDoc) {
	if t.h.Len() == t.limit && !better(doc, t.h[0]) {
		return
	}
	heap.Push(&t.h, doc)
	if t.h.Len() > t.limit {
		heap.Pop(&t.h)
	}
}

func (t *topN) sorted() []ScoredDoc {
	result := make([]ScoredDoc, t.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&t.h).(ScoredDoc)
	}
	return result
}

// better orders by score descending, then DocID ascending.
func better(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return better(h[j], h[i]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
