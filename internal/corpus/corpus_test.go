package corpus

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestListFilesSortedAndFiltered(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.txt"), "")
	writeFile(t, filepath.Join(root, "a", "z.txt"), "")
	writeFile(t, filepath.Join(root, "a", "skip.md"), "")
	writeFile(t, filepath.Join(root, "c.txt.bak"), "")

	paths, err := ListFiles(root, "txt")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a", "z.txt"),
		filepath.Join(root, "b.txt"),
	}, paths)

	dotted, err := ListFiles(root, ".txt")
	require.NoError(t, err)
	assert.Equal(t, paths, dotted)
}

func TestListFilesMissingRoot(t *testing.T) {
	_, err := ListFiles(filepath.Join(t.TempDir(), "nope"), "txt")
	require.Error(t, err)
}

func TestLineSourceYieldsEveryLine(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "1.txt")
	second := filepath.Join(root, "2.txt")
	writeFile(t, first, "猫坐在垫子上。\r\n\n狗跑进花园。\n")
	writeFile(t, second, "没有换行的最后一行")

	src := NewLineSource([]string{first, second}, "r")
	defer src.Close()

	var contents []string
	for {
		doc, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, "r", doc[TitleField].Content)
		assert.True(t, doc[TitleField].Keyword)
		assert.True(t, doc[ContentField].Stored)
		assert.True(t, doc[ContentField].Indexed)
		contents = append(contents, doc[ContentField].Content)
	}
	assert.Equal(t, []string{"猫坐在垫子上。", "", "狗跑进花园。", "没有换行的最后一行"}, contents)
	assert.Equal(t, 4, src.Lines())
}

func TestLineSourceHonoursCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.txt")
	writeFile(t, path, "a\nb\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLineSource([]string{path}, "r").Next(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"chinese", "猫很可爱。狗也是！鸟呢？", []string{"猫很可爱。", "狗也是！", "鸟呢？"}},
		{"ascii terminators", "Go is fun. Is it? Yes!", []string{"Go is fun.", "Is it?", "Yes!"}},
		{"trailing fragment", "第一句。第二句没有结尾", []string{"第一句。", "第二句没有结尾"}},
		{"only terminators", "。。", []string{"。", "。"}},
		{"blank", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.in))
		})
	}
}
