package index

import (
	"context"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/vidsage/vidsage/internal/model"
	"github.com/vidsage/vidsage/internal/pkg/dbutil"
)

const chunkTable = "source_chunks"

const chunkSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS source_chunks (
	source_key TEXT NOT NULL,
	chunk_id   INTEGER NOT NULL,
	content    TEXT NOT NULL,
	embedding  VECTOR NOT NULL,
	ctime      BIGINT NOT NULL,
	PRIMARY KEY (source_key, chunk_id)
);
`

// ChunkStore persists chunk embeddings in Postgres so a cached index entry
// can be rehydrated without re-embedding the source.
type ChunkStore struct {
	db *sqlx.DB
}

func OpenChunkStore(dsn string) (*ChunkStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect chunk store: %w", err)
	}
	if _, err := db.Exec(chunkSchema); err != nil {
		return nil, fmt.Errorf("init chunk store schema: %w", err)
	}
	return &ChunkStore{db: db}, nil
}

// Save replaces the persisted chunk set for one source.
func (s *ChunkStore) Save(ctx context.Context, sourceKey string, chunks []model.ChunkEmbedding, ctime int64) error {
	delQuery, delArgs, err := builder.BuildDelete(chunkTable, map[string]interface{}{"source_key": sourceKey})
	if err != nil {
		return err
	}
	delQuery, delArgs = dbutil.Finalize(delQuery, delArgs)
	if _, err := s.db.ExecContext(ctx, delQuery, delArgs...); err != nil {
		return fmt.Errorf("clear old chunks: %w", err)
	}
	rows := make([]map[string]interface{}, 0, len(chunks))
	for _, chunk := range chunks {
		rows = append(rows, map[string]interface{}{
			"source_key": sourceKey,
			"chunk_id":   chunk.ChunkID,
			"content":    chunk.Content,
			"embedding":  pgvector.NewVector(chunk.Embedding),
			"ctime":      ctime,
		})
	}
	insQuery, insArgs, err := builder.BuildInsert(chunkTable, rows)
	if err != nil {
		return err
	}
	insQuery, insArgs = dbutil.Finalize(insQuery, insArgs)
	if _, err := s.db.ExecContext(ctx, insQuery, insArgs...); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	return nil
}

// Load returns the persisted chunks for a source in chunk order.
func (s *ChunkStore) Load(ctx context.Context, sourceKey string) ([]model.ChunkEmbedding, error) {
	query, args, err := builder.BuildSelect(chunkTable,
		map[string]interface{}{"source_key": sourceKey, "_orderby": "chunk_id asc"},
		[]string{"chunk_id", "content", "embedding"})
	if err != nil {
		return nil, err
	}
	query, args = dbutil.Finalize(query, args)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []model.ChunkEmbedding
	for rows.Next() {
		var chunkID int
		var content string
		var embedding pgvector.Vector
		if err := rows.Scan(&chunkID, &content, &embedding); err != nil {
			return nil, err
		}
		chunks = append(chunks, model.ChunkEmbedding{
			Chunk:     model.Chunk{ChunkID: chunkID, Content: content},
			Embedding: embedding.Slice(),
		})
	}
	return chunks, rows.Err()
}

func (s *ChunkStore) Delete(ctx context.Context, sourceKey string) error {
	query, args, err := builder.BuildDelete(chunkTable, map[string]interface{}{"source_key": sourceKey})
	if err != nil {
		return err
	}
	query, args = dbutil.Finalize(query, args)
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// DeleteBefore drops persisted chunks written before the cutoff and
// returns how many rows went away.
func (s *ChunkStore) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	query, args, err := builder.BuildDelete(chunkTable, map[string]interface{}{"ctime <": cutoff})
	if err != nil {
		return 0, err
	}
	query, args = dbutil.Finalize(query, args)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (s *ChunkStore) Close() error {
	return s.db.Close()
}
