// Package benchmark contains Go benchmarks for the analyzer, index builder,
// persisted segments and search pipeline, measuring throughput and allocation
// behaviour.
package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/config"
)

var subjects = []string{"猫", "狗", "鸟", "鱼", "马", "牛", "羊", "兔"}

func sentence(i int) string {
	return fmt.Sprintf("%s在第%d个花园里和%s一起玩，%s看着它们。",
		subjects[i%len(subjects)], i, subjects[(i+1)%len(subjects)], subjects[(i+3)%len(subjects)])
}

func corpusDocs(n int) []index.Document {
	docs := make([]index.Document, n)
	for i := range docs {
		docs[i] = corpus.LineDocument("r", sentence(i))
	}
	return docs
}

// BenchmarkMemoryIndexAdd measures per-document insert throughput into the
// in-memory posting buffer.
func BenchmarkMemoryIndexAdd(b *testing.B) {
	a := mustAnalyzer(b, "zh")
	mi := index.NewMemoryIndex()
	tokens := a.Tokenize(sentence(1))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mi.AddField(uint32(i), "content", tokens)
		mi.EndDocument()
	}
}

// BenchmarkMemoryIndexSnapshot measures the cost of freezing the buffer at
// seal time.
func BenchmarkMemoryIndexSnapshot(b *testing.B) {
	a := mustAnalyzer(b, "zh")
	mi := index.NewMemoryIndex()
	for i := 0; i < 5000; i++ {
		mi.AddField(uint32(i), "content", a.Tokenize(sentence(i)))
		mi.EndDocument()
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		snapshot := mi.Snapshot("zh")
		_ = snapshot
	}
}

// BenchmarkBuildInMemory measures a full build and seal of the memory
// backend at various corpus sizes.
func BenchmarkBuildInMemory(b *testing.B) {
	a := mustAnalyzer(b, "zh")
	for _, size := range []int{100, 1000, 5000} {
		docs := corpusDocs(size)
		b.Run(fmt.Sprintf("docs_%d", size), func(b *testing.B) {
			engine := indexer.NewEngine(config.IndexConfig{LogInterval: size + 1}, a, nil)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				store, err := engine.BuildInMemory(context.Background(), indexer.NewSliceSource(docs...))
				if err != nil {
					b.Fatal(err)
				}
				store.Close()
			}
		})
	}
}

// BenchmarkBuildPersisted measures a full build, including segment write,
// stored-field compression and the generation switch.
func BenchmarkBuildPersisted(b *testing.B) {
	a := mustAnalyzer(b, "zh")
	for _, size := range []int{100, 1000, 5000} {
		docs := corpusDocs(size)
		b.Run(fmt.Sprintf("docs_%d", size), func(b *testing.B) {
			cfg := config.IndexConfig{Dir: b.TempDir(), Overwrite: true, LogInterval: size + 1}
			engine := indexer.NewEngine(cfg, a, nil)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				store, err := engine.Build(context.Background(), indexer.NewSliceSource(docs...))
				if err != nil {
					b.Fatal(err)
				}
				store.Close()
			}
		})
	}
}
