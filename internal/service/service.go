package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/vidsage/vidsage/internal/answer"
	"github.com/vidsage/vidsage/internal/cache"
	"github.com/vidsage/vidsage/internal/index"
	"github.com/vidsage/vidsage/internal/model"
	appErr "github.com/vidsage/vidsage/internal/pkg/errors"
	"github.com/vidsage/vidsage/internal/ratelimit"
	"github.com/vidsage/vidsage/internal/security"
	"github.com/vidsage/vidsage/internal/session"
	"github.com/vidsage/vidsage/internal/summarize"
	"github.com/vidsage/vidsage/internal/transcript"
)

// LoadResult is what a successful video load hands back to the caller: a
// fresh session plus the derived artifacts.
type LoadResult struct {
	SessionID  string `json:"session_id"`
	SourceKey  string `json:"source_key"`
	Summary    string `json:"summary"`
	KeyPoints  string `json:"key_points"`
	ChunkCount int    `json:"chunk_count"`
	FromCache  bool   `json:"from_cache"`
}

// Service wires the full load/ask flow: security gate, content cache,
// transcript provider, summarization, retrieval index and the answer
// pipeline, all sharing one rate limiter.
type Service struct {
	gate       *security.Gate
	provider   transcript.Provider
	cache      *cache.ContentCache
	summarizer *summarize.Summarizer
	builder    *index.Builder
	chunkStore *index.ChunkStore
	sessions   *session.Manager
	answerer   *answer.Pipeline
	limiter    *ratelimit.Limiter
	now        func() time.Time
}

type Options struct {
	Gate       *security.Gate
	Provider   transcript.Provider
	Cache      *cache.ContentCache
	Summarizer *summarize.Summarizer
	Builder    *index.Builder
	ChunkStore *index.ChunkStore
	Sessions   *session.Manager
	Answerer   *answer.Pipeline
	Limiter    *ratelimit.Limiter
}

func New(opts Options) *Service {
	return &Service{
		gate:       opts.Gate,
		provider:   opts.Provider,
		cache:      opts.Cache,
		summarizer: opts.Summarizer,
		builder:    opts.Builder,
		chunkStore: opts.ChunkStore,
		sessions:   opts.Sessions,
		answerer:   opts.Answerer,
		limiter:    opts.Limiter,
		now:        time.Now,
	}
}

// LoadVideo fetches (or recalls) a transcript, derives the summary artifact
// and retrieval index, and opens a session over them.
func (s *Service) LoadVideo(ctx context.Context, callerID, rawURL string) (*LoadResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("caller", callerID))

	if s.gate != nil {
		if ok, reason := s.gate.CheckRateLimit(callerID); !ok {
			return nil, fmt.Errorf("%w: %s", appErr.ErrTooMany, reason)
		}
		if ok, reason := s.gate.ValidateSourceURL(ctx, rawURL); !ok {
			return nil, fmt.Errorf("%w: %s", appErr.ErrBadSourceURL, reason)
		}
	}
	videoID, err := transcript.ExtractVideoID(rawURL)
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("source_key", videoID))

	doc, fromCache, err := s.loadDocument(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if doc.Empty() {
		return nil, appErr.ErrNoTranscript
	}

	idx, err := s.loadIndex(ctx, doc)
	if err != nil {
		return nil, err
	}

	artifact := s.summarizer.Generate(ctx, doc)

	sess := s.sessions.Create(videoID, idx, artifact)
	logger.Info("video loaded",
		zap.String("session_id", sess.ID),
		zap.Int("chunks", idx.Len()),
		zap.Bool("from_cache", fromCache))

	return &LoadResult{
		SessionID:  sess.ID,
		SourceKey:  videoID,
		Summary:    artifact.Summary,
		KeyPoints:  artifact.Bullets,
		ChunkCount: idx.Len(),
		FromCache:  fromCache,
	}, nil
}

func (s *Service) loadDocument(ctx context.Context, videoID string) (*model.SourceDocument, bool, error) {
	if s.cache != nil {
		var doc model.SourceDocument
		if s.cache.Get(ctx, cache.CategoryRaw, videoID, &doc) && !doc.Empty() {
			return &doc, true, nil
		}
	}
	segments, err := s.provider.Fetch(ctx, videoID)
	if err != nil {
		return nil, false, err
	}
	doc := &model.SourceDocument{SourceKey: videoID, Segments: segments}
	if s.cache != nil {
		s.cache.Set(ctx, cache.CategoryRaw, videoID, doc)
	}
	return doc, false, nil
}

// loadIndex recalls a persisted index when one exists, otherwise builds it
// and persists the embeddings for the next load.
func (s *Service) loadIndex(ctx context.Context, doc *model.SourceDocument) (*index.VectorIndex, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("source_key", doc.SourceKey))

	if s.cache != nil {
		var chunks []model.ChunkEmbedding
		if s.cache.Get(ctx, cache.CategoryIndex, doc.SourceKey, &chunks) {
			if idx := s.builder.Rehydrate(chunks); idx != nil {
				logger.Info("index rehydrated from cache", zap.Int("chunks", idx.Len()))
				return idx, nil
			}
		}
	}
	if s.chunkStore != nil {
		chunks, err := s.chunkStore.Load(ctx, doc.SourceKey)
		if err != nil {
			logger.Warn("chunk store load failed", zap.Error(err))
		} else if idx := s.builder.Rehydrate(chunks); idx != nil {
			logger.Info("index rehydrated from chunk store", zap.Int("chunks", idx.Len()))
			return idx, nil
		}
	}

	idx, err := s.builder.Build(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", appErr.ErrAIUnavailable, err.Error())
	}
	if s.cache != nil {
		s.cache.Set(ctx, cache.CategoryIndex, doc.SourceKey, idx.Embeddings())
	}
	if s.chunkStore != nil {
		if err := s.chunkStore.Save(ctx, doc.SourceKey, idx.Embeddings(), s.now().Unix()); err != nil {
			logger.Warn("chunk store save failed", zap.Error(err))
		}
	}
	return idx, nil
}

// Ask answers one question within a session and records the exchange.
func (s *Service) Ask(ctx context.Context, callerID, sessionID, question string) (answer.Outcome, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: session %s", appErr.ErrNotFound, sessionID)
	}
	out := s.answerer.Answer(ctx, callerID, question, sess.History(), sess.Index())
	if answered, ok := out.(answer.Answered); ok {
		sess.AppendExchange(question, answered.Text)
	}
	return out, nil
}

// History returns the running chat transcript for a session.
func (s *Service) History(sessionID string) ([]model.ChatTurn, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: session %s", appErr.ErrNotFound, sessionID)
	}
	return sess.History(), nil
}

// InvalidateSource drops every cached artifact for one source.
func (s *Service) InvalidateSource(ctx context.Context, rawURL string) error {
	videoID, err := transcript.ExtractVideoID(rawURL)
	if err != nil {
		// Allow passing a bare source key as well as a full URL.
		videoID = rawURL
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, videoID)
	}
	if s.chunkStore != nil {
		if err := s.chunkStore.Delete(ctx, videoID); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateAll wipes every cache namespace.
func (s *Service) InvalidateAll(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.ClearAll(ctx)
}

// LimiterStats reports the shared limiter's window utilization.
func (s *Service) LimiterStats() ratelimit.Stats {
	return s.limiter.Stats()
}
