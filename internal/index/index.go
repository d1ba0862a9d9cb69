package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/vidsage/vidsage/internal/ai"
	"github.com/vidsage/vidsage/internal/model"
)

type SearchMode string

const (
	ModeSimilarity SearchMode = "similarity"
	// ModeMMR trades raw relevance for diversity among the returned chunks.
	ModeMMR SearchMode = "mmr"
)

const mmrLambda = 0.5

// VectorIndex is the per-source retrieval structure: embedded chunks plus a
// ranked query operation. It is owned by the session that built it.
type VectorIndex struct {
	embedder ai.IEmbedder
	chunks   []model.ChunkEmbedding
}

type Builder struct {
	embedder  ai.IEmbedder
	chunkSize int
	overlap   int
}

func NewBuilder(embedder ai.IEmbedder, chunkSize, overlap int) *Builder {
	return &Builder{embedder: embedder, chunkSize: chunkSize, overlap: overlap}
}

// Build splits and embeds one document. Embedding failure on any chunk
// fails the build; a partial index would silently degrade every answer.
func (b *Builder) Build(ctx context.Context, doc *model.SourceDocument) (*VectorIndex, error) {
	if b.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	chunks := Split(doc.JoinedText(), b.chunkSize, b.overlap)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no content to index")
	}
	logger := logutil.GetLogger(ctx).With(zap.String("source_key", doc.SourceKey))
	logger.Info("building vector index", zap.Int("chunks", len(chunks)))

	embedded := make([]model.ChunkEmbedding, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := b.embedder.Embed(ctx, chunk.Content, "RETRIEVAL_DOCUMENT")
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", chunk.ChunkID, err)
		}
		embedded = append(embedded, model.ChunkEmbedding{Chunk: chunk, Embedding: vec})
	}
	logger.Info("vector index ready")
	return &VectorIndex{embedder: b.embedder, chunks: embedded}, nil
}

// Rehydrate rebuilds an index from previously persisted chunk embeddings
// without touching the embedding backend.
func (b *Builder) Rehydrate(chunks []model.ChunkEmbedding) *VectorIndex {
	if len(chunks) == 0 {
		return nil
	}
	return &VectorIndex{embedder: b.embedder, chunks: chunks}
}

// Embeddings exposes the raw records for persistence.
func (idx *VectorIndex) Embeddings() []model.ChunkEmbedding {
	return idx.chunks
}

func (idx *VectorIndex) Len() int {
	return len(idx.chunks)
}

// Query returns the k most relevant chunks for text, overfetching fetchK
// candidates first. ModeMMR re-ranks the candidates for diversity.
func (idx *VectorIndex) Query(ctx context.Context, text string, k, fetchK int, mode SearchMode) ([]model.ScoredChunk, error) {
	if k <= 0 || len(idx.chunks) == 0 {
		return nil, nil
	}
	if fetchK < k {
		fetchK = k
	}
	queryVec, err := idx.embedder.Embed(ctx, text, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates := make([]model.ScoredChunk, 0, len(idx.chunks))
	for _, chunk := range idx.chunks {
		candidates = append(candidates, model.ScoredChunk{
			Chunk: chunk.Chunk,
			Score: cosineSimilarity(queryVec, chunk.Embedding),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if fetchK < len(candidates) {
		candidates = candidates[:fetchK]
	}
	if mode != ModeMMR || len(candidates) <= k {
		if k < len(candidates) {
			candidates = candidates[:k]
		}
		return candidates, nil
	}
	return idx.mmrSelect(candidates, k), nil
}

// mmrSelect greedily picks chunks balancing query relevance against
// similarity to the chunks already chosen.
func (idx *VectorIndex) mmrSelect(candidates []model.ScoredChunk, k int) []model.ScoredChunk {
	byID := make(map[int][]float32, len(idx.chunks))
	for _, c := range idx.chunks {
		byID[c.ChunkID] = c.Embedding
	}
	selected := make([]model.ScoredChunk, 0, k)
	remaining := append([]model.ScoredChunk(nil), candidates...)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := math.Inf(-1)
		for i, cand := range remaining {
			redundancy := 0.0
			for _, sel := range selected {
				sim := cosineSimilarity(byID[cand.ChunkID], byID[sel.ChunkID])
				if sim > redundancy {
					redundancy = sim
				}
			}
			score := mmrLambda*cand.Score - (1-mmrLambda)*redundancy
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
