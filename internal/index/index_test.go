package index

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vidsage/vidsage/internal/model"
)

// fakeEmbedder maps text onto a deterministic 3-dim vector keyed by which
// topic words appear, so similarity behaves predictably in tests.
type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls++
	vec := []float32{0.01, 0.01, 0.01}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "gopher") {
		vec[0] = 1
	}
	if strings.Contains(lower, "ocean") {
		vec[1] = 1
	}
	if strings.Contains(lower, "music") {
		vec[2] = 1
	}
	return vec, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-embed"
}

func TestSplit_OverlapAndCoverage(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		sb.WriteString("line number with some padding text to fill space\n")
	}
	chunks := Split(sb.String(), 1000, 200)
	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		require.Equal(t, i, chunk.ChunkID)
		require.LessOrEqual(t, len(chunk.Content), 1000)
		require.NotEmpty(t, chunk.Content)
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	chunks := Split("just a short transcript", 1000, 200)
	require.Len(t, chunks, 1)
	require.Equal(t, "just a short transcript", chunks[0].Content)
}

func TestSplit_Empty(t *testing.T) {
	require.Nil(t, Split("   ", 1000, 200))
}

func buildTestIndex(t *testing.T) (*VectorIndex, *fakeEmbedder) {
	embedder := &fakeEmbedder{}
	b := NewBuilder(embedder, 40, 0)
	doc := &model.SourceDocument{
		SourceKey: "test",
		Segments: []string{
			"the gopher digs tunnels underground",
			"the ocean covers most of the planet",
			"music theory explains harmony",
			"another gopher fact about burrows",
		},
	}
	idx, err := b.Build(context.Background(), doc)
	require.NoError(t, err)
	return idx, embedder
}

func TestQuery_SimilarityRanksRelevantFirst(t *testing.T) {
	idx, _ := buildTestIndex(t)
	results, err := idx.Query(context.Background(), "tell me about the gopher", 2, 10, ModeSimilarity)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Contains(t, strings.ToLower(results[0].Content), "gopher")
}

func TestQuery_MMRReturnsK(t *testing.T) {
	idx, _ := buildTestIndex(t)
	results, err := idx.Query(context.Background(), "gopher ocean music", 3, 10, ModeMMR)
	require.NoError(t, err)
	require.Len(t, results, 3)
	seen := map[int]bool{}
	for _, r := range results {
		require.False(t, seen[r.ChunkID], "duplicate chunk %d", r.ChunkID)
		seen[r.ChunkID] = true
	}
}

func TestRehydrate_SkipsEmbeddingBackend(t *testing.T) {
	idx, embedder := buildTestIndex(t)
	buildCalls := embedder.calls

	rebuilt := NewBuilder(embedder, 40, 0).Rehydrate(idx.Embeddings())
	require.NotNil(t, rebuilt)
	require.Equal(t, idx.Len(), rebuilt.Len())
	require.Equal(t, buildCalls, embedder.calls)

	results, err := rebuilt.Query(context.Background(), "ocean", 1, 5, ModeSimilarity)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Contains(t, results[0].Content, "ocean")
}
