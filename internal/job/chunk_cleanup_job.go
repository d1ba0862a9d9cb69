package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/vidsage/vidsage/internal/index"
)

// ChunkCleanupJob expires persisted chunk embeddings whose source entries
// have long since fallen out of the content cache.
type ChunkCleanupJob struct {
	store  *index.ChunkStore
	maxAge time.Duration
}

func NewChunkCleanupJob(store *index.ChunkStore, maxAge time.Duration) *ChunkCleanupJob {
	return &ChunkCleanupJob{store: store, maxAge: maxAge}
}

func (j *ChunkCleanupJob) Name() string {
	return "chunk_cleanup"
}

func (j *ChunkCleanupJob) Run(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	maxAge := j.maxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	cutoff := time.Now().Add(-maxAge).Unix()
	deleted, err := j.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("expired chunk embeddings removed", zap.Int64("rows", deleted))
	}
	return nil
}
