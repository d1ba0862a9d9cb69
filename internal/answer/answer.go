package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/vidsage/vidsage/internal/index"
	"github.com/vidsage/vidsage/internal/model"
	appErr "github.com/vidsage/vidsage/internal/pkg/errors"
	"github.com/vidsage/vidsage/internal/ratelimit"
	"github.com/vidsage/vidsage/internal/security"
)

const (
	retrievalK      = 8
	retrievalFetchK = 50
	shrinkChunkLen  = 1500

	defaultRelevanceThreshold = 0.1
)

const (
	msgNotReady    = "The assistant is still preparing the video content. Please load a video first."
	msgNoRelevant  = "I couldn't find relevant information in the video to answer that question."
	msgOverloaded  = "The assistant is handling a lot of requests right now. Please try again in a moment."
	msgGenericFail = "Something went wrong while answering. Please try asking again."
)

// Outcome is the tagged result of one answer attempt. Callers switch on the
// concrete type; there is no error return.
type Outcome interface {
	outcome()
}

// Answered carries the final sanitized answer and the chunk ids it was
// grounded on. Sources is empty for conversational and fallback answers.
type Answered struct {
	Text    string
	Sources []int
}

// Refused means the question was rejected before any generation happened.
type Refused struct {
	Reason string
}

// SystemNotReady means no retrieval index exists for the session yet.
type SystemNotReady struct{}

// InternalError means generation failed in a way the pipeline could not
// degrade around. Detail is diagnostic, not user facing.
type InternalError struct {
	Detail string
}

func (Answered) outcome()       {}
func (Refused) outcome()        {}
func (SystemNotReady) outcome() {}
func (InternalError) outcome()  {}

type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// Pipeline answers questions about one source grounded in its retrieval
// index. All generation flows through the shared rate limiter.
type Pipeline struct {
	gate               *security.Gate
	gen                generator
	limiter            *ratelimit.Limiter
	relevanceThreshold float64
}

func New(gate *security.Gate, gen generator, limiter *ratelimit.Limiter, relevanceThreshold float64) *Pipeline {
	if relevanceThreshold <= 0 {
		relevanceThreshold = defaultRelevanceThreshold
	}
	return &Pipeline{gate: gate, gen: gen, limiter: limiter, relevanceThreshold: relevanceThreshold}
}

const condensePromptTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
%s
Follow Up Input: %s
Standalone question:`

const answerPromptTemplate = `You are a helpful assistant answering questions about a video using its transcript.
Answer using ONLY the transcript context below. If the context does not contain the answer, say so briefly.

CONTEXT:
%s

QUESTION: %s

ANSWER:`

const minimalPromptTemplate = `Answer briefly based on this transcript excerpt.

EXCERPT:
%s

QUESTION: %s`

const knowledgePromptTemplate = `Answer this question directly and concisely: %s`

// Answer runs the full per-question pipeline. It never panics and never
// returns an error; every failure maps to an Outcome variant.
func (p *Pipeline) Answer(ctx context.Context, callerID, question string, history []model.ChatTurn, idx *index.VectorIndex) Outcome {
	logger := logutil.GetLogger(ctx).With(zap.String("caller", callerID))

	if idx == nil || idx.Len() == 0 || p.gen == nil {
		return SystemNotReady{}
	}

	if reply, ok := conversationalReply(question); ok {
		logger.Debug("conversational short-circuit")
		return Answered{Text: reply}
	}

	if p.gate != nil {
		if ok, reason := p.gate.CheckRateLimit(callerID); !ok {
			return Refused{Reason: reason}
		}
		if ok, reason := p.gate.ValidateQuestion(ctx, question); !ok {
			return Refused{Reason: reason}
		}
	}
	question = security.CleanInput(question)

	standalone := p.condenseQuestion(ctx, question, history)

	scored, err := idx.Query(ctx, standalone, retrievalK, retrievalFetchK, index.ModeMMR)
	if err != nil {
		logger.Error("retrieval failed", zap.Error(err))
		return InternalError{Detail: err.Error()}
	}

	text, sources, out := p.generateGrounded(ctx, standalone, scored)
	if out != nil {
		return out
	}

	if relevanceScore(standalone, scored) < p.relevanceThreshold {
		text = p.knowledgeFallback(ctx, standalone, text)
	}

	return Answered{Text: security.CleanOutput(text), Sources: sources}
}

// generateGrounded runs the primary retrieval-augmented call plus the
// token-overflow recovery path. A nil Outcome means text is usable.
func (p *Pipeline) generateGrounded(ctx context.Context, question string, scored []model.ScoredChunk) (string, []int, Outcome) {
	logger := logutil.GetLogger(ctx)

	contextText := joinChunks(scored)
	sources := chunkIDs(scored)

	text, err := p.generate(ctx, fmt.Sprintf(answerPromptTemplate, contextText, question))
	if err == nil && strings.TrimSpace(text) != "" {
		return text, sources, nil
	}

	switch {
	case err != nil && appErr.IsPromptTooLarge(err):
		logger.Warn("prompt too large, retrying with single truncated chunk")
		if len(scored) == 0 {
			return msgNoRelevant, nil, nil
		}
		excerpt := scored[0].Content
		if len(excerpt) > shrinkChunkLen {
			excerpt = excerpt[:shrinkChunkLen]
		}
		text, err = p.generate(ctx, fmt.Sprintf(minimalPromptTemplate, excerpt, question))
		if err == nil && strings.TrimSpace(text) != "" {
			return text, []int{scored[0].ChunkID}, nil
		}
		logger.Warn("shrunken retry failed", zap.Error(err))
		return msgNoRelevant, nil, nil
	case err != nil && (appErr.IsQuotaExceeded(err) || errors.Is(err, appErr.ErrQuotaExhausted)):
		logger.Warn("generation quota exhausted", zap.Error(err))
		return "", nil, Refused{Reason: msgOverloaded}
	case err != nil:
		logger.Error("grounded generation failed", zap.Error(err))
		return "", nil, InternalError{Detail: err.Error()}
	default:
		// Generated successfully but empty.
		return msgNoRelevant, nil, nil
	}
}

// condenseQuestion rewrites a follow-up into a standalone question using the
// prior exchanges. Any failure falls back to the original question.
func (p *Pipeline) condenseQuestion(ctx context.Context, question string, history []model.ChatTurn) string {
	pairs := model.PairTurns(history)
	if len(pairs) == 0 {
		return question
	}
	var sb strings.Builder
	for _, pair := range pairs {
		fmt.Fprintf(&sb, "Human: %s\nAssistant: %s\n", pair.Question, pair.Answer)
	}
	condensed, err := p.generate(ctx, fmt.Sprintf(condensePromptTemplate, sb.String(), question))
	if err != nil || strings.TrimSpace(condensed) == "" {
		if err != nil {
			logutil.GetLogger(ctx).Warn("question condensation failed", zap.Error(err))
		}
		return question
	}
	return strings.TrimSpace(condensed)
}

// knowledgeFallback makes one ungrounded attempt when retrieval looked
// irrelevant, adopting the result only when it is strictly longer than the
// grounded answer. Errors here never surface.
func (p *Pipeline) knowledgeFallback(ctx context.Context, question, grounded string) string {
	logger := logutil.GetLogger(ctx)
	logger.Info("low retrieval relevance, trying knowledge fallback")

	fallback, err := p.generate(ctx, fmt.Sprintf(knowledgePromptTemplate, question))
	if err != nil {
		logger.Warn("knowledge fallback failed", zap.Error(err))
		return grounded
	}
	if len(strings.TrimSpace(fallback)) > len(strings.TrimSpace(grounded)) {
		return fallback
	}
	return grounded
}

func (p *Pipeline) generate(ctx context.Context, prompt string) (string, error) {
	if p.limiter == nil {
		return p.gen.Generate(ctx, prompt)
	}
	return p.limiter.Execute(ctx, p.gen.ModelName(), prompt, func(ctx context.Context) (string, error) {
		return p.gen.Generate(ctx, prompt)
	})
}

// relevanceScore is the share of question words that also appear in the
// retrieved chunks, clamped to 1.0. Zero when nothing was retrieved.
func relevanceScore(question string, scored []model.ScoredChunk) float64 {
	qWords := wordSet(question)
	if len(qWords) == 0 || len(scored) == 0 {
		return 0
	}
	cWords := wordSet(joinChunks(scored))
	matched := 0
	for w := range qWords {
		if _, ok := cWords[w]; ok {
			matched++
		}
	}
	score := float64(matched) / float64(len(qWords))
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func joinChunks(scored []model.ScoredChunk) string {
	parts := make([]string, 0, len(scored))
	for _, s := range scored {
		parts = append(parts, s.Content)
	}
	return strings.Join(parts, "\n\n")
}

func chunkIDs(scored []model.ScoredChunk) []int {
	ids := make([]int, 0, len(scored))
	for _, s := range scored {
		ids = append(ids, s.ChunkID)
	}
	return ids
}

var acknowledgments = map[string]struct{}{
	"cool": {}, "thanks": {}, "thank you": {}, "thx": {}, "ok": {}, "okay": {},
	"nice": {}, "great": {}, "awesome": {}, "got it": {}, "i see": {},
	"good": {}, "sure": {}, "yes": {}, "no": {}, "wow": {}, "hello": {},
	"hi": {}, "hey": {}, "bye": {}, "goodbye": {},
}

// substantiveKeywords mark a short input as a real question rather than
// chit-chat: interrogatives, modals and common ask-verbs.
var substantiveKeywords = map[string]struct{}{
	"what": {}, "why": {}, "how": {}, "when": {}, "where": {}, "who": {},
	"which": {}, "whose": {}, "can": {}, "could": {}, "would": {}, "should": {},
	"will": {}, "shall": {}, "do": {}, "does": {}, "did": {}, "is": {},
	"are": {}, "was": {}, "were": {}, "explain": {}, "describe": {},
	"summarize": {}, "summary": {}, "tell": {}, "list": {}, "define": {},
	"compare": {}, "mean": {}, "meaning": {}, "about": {},
}

const cannedConversationalReply = "You're welcome! Feel free to ask me anything else about the video."

// conversationalReply short-circuits chit-chat so acknowledgments never
// consume generation quota.
func conversationalReply(question string) (string, bool) {
	norm := strings.ToLower(strings.TrimSpace(question))
	norm = strings.Trim(norm, "!.?,")
	norm = strings.Join(strings.Fields(norm), " ")
	if norm == "" {
		return "", false
	}
	if _, ok := acknowledgments[norm]; ok {
		return cannedConversationalReply, true
	}
	words := strings.Fields(norm)
	if len(words) > 2 {
		return "", false
	}
	for _, w := range words {
		if _, ok := substantiveKeywords[w]; ok {
			return "", false
		}
	}
	return cannedConversationalReply, true
}
