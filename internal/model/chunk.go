package model

// Chunk is a bounded contiguous slice of transcript text, the unit indexed
// for retrieval.
type Chunk struct {
	ChunkID int    `json:"chunk_id"`
	Content string `json:"content"`
}

// ChunkEmbedding pairs a chunk with its embedding vector. This is the record
// persisted by the optional Postgres chunk store and the payload of the
// "index" cache category.
type ChunkEmbedding struct {
	Chunk
	Embedding []float32 `json:"embedding"`
}

// ScoredChunk is a retrieval result with its similarity score.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}
