package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/vidsage/vidsage/internal/cache"
	"github.com/vidsage/vidsage/internal/model"
	"github.com/vidsage/vidsage/internal/ratelimit"
)

const (
	reduceThreshold = 6000
	sampleWindow    = 1500
	excerptLen      = 2000
	maxBullets      = 8
	minBullets      = 2
)

const primaryPromptTemplate = `Write a comprehensive narrative summary of the following video transcript.
Cover each of these dimensions where the content supports it:
1. The main topic and what the video is about
2. Key concepts introduced
3. How those concepts are explained
4. Important details and examples
5. Any process or method walked through
6. Notable insights or observations
7. Practical applications mentioned
8. Main takeaways
9. Relevant background or context
10. Why this content is valuable to a viewer

Write flowing prose, not a list. Output ONLY the summary.

TRANSCRIPT:
%s`

const fallbackPromptTemplate = `Summarize this video transcript excerpt in a few sentences: %s`

const bulletPromptTemplate = `List the 6-8 most important key points from this video summary.
Start every line with the bullet character "•". Output ONLY the bullet lines.

SUMMARY:
%s`

const bulletRetryPromptTemplate = `Give 6 short bullet points about this text. Start each line with "•".

%s`

// Summarizer turns a transcript into a valid (summary, bullets) artifact.
// Generation goes through the shared rate limiter; every failure path
// degrades to a deterministic local artifact, so Generate never errors.
type Summarizer struct {
	gen     generator
	limiter *ratelimit.Limiter
	cache   *cache.ContentCache
}

type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

func New(gen generator, limiter *ratelimit.Limiter, contentCache *cache.ContentCache) *Summarizer {
	return &Summarizer{gen: gen, limiter: limiter, cache: contentCache}
}

// Generate produces the artifact for a document, consulting and populating
// the derived-content cache when the document carries a source key.
func (s *Summarizer) Generate(ctx context.Context, doc *model.SourceDocument) model.SummaryArtifact {
	logger := logutil.GetLogger(ctx).With(zap.String("source_key", doc.SourceKey))

	if doc.SourceKey != "" && s.cache != nil {
		var cached model.SummaryArtifact
		if s.cache.Get(ctx, cache.CategoryDerived, doc.SourceKey, &cached) && cached.Valid() {
			logger.Info("summary served from cache")
			return cached
		}
	}

	text := doc.JoinedText()
	artifact := model.SummaryArtifact{
		Summary: s.generateSummary(ctx, text),
	}
	artifact.Bullets = s.generateBullets(ctx, artifact.Summary, text)

	if doc.SourceKey != "" && s.cache != nil && artifact.Valid() {
		s.cache.Set(ctx, cache.CategoryDerived, doc.SourceKey, artifact)
	}
	return artifact
}

func (s *Summarizer) generateSummary(ctx context.Context, text string) string {
	logger := logutil.GetLogger(ctx)
	reduced := ReduceContent(text)

	summary, err := s.generate(ctx, fmt.Sprintf(primaryPromptTemplate, reduced))
	if err == nil && summaryValid(summary) {
		return strings.TrimSpace(summary)
	}
	if err != nil {
		logger.Warn("primary summary generation failed", zap.Error(err))
	} else {
		logger.Warn("primary summary too short, retrying with simple prompt")
	}

	summary, err = s.generate(ctx, fmt.Sprintf(fallbackPromptTemplate, truncate(text, excerptLen)))
	if err == nil && summaryValid(summary) {
		return strings.TrimSpace(summary)
	}
	if err != nil {
		logger.Warn("fallback summary generation failed", zap.Error(err))
	}
	logger.Warn("degrading to deterministic summary")
	return deterministicSummary(text)
}

func (s *Summarizer) generateBullets(ctx context.Context, summary, rawText string) string {
	logger := logutil.GetLogger(ctx)

	source := summary
	if len(strings.TrimSpace(summary)) < 100 {
		source = truncate(rawText, excerptLen)
	}

	raw, err := s.generate(ctx, fmt.Sprintf(bulletPromptTemplate, source))
	if err == nil {
		if bullets := postProcessBullets(raw); bulletsValid(bullets) {
			return bullets
		}
	} else {
		logger.Warn("bullet generation failed", zap.Error(err))
	}

	raw, err = s.generate(ctx, fmt.Sprintf(bulletRetryPromptTemplate, truncate(source, excerptLen)))
	if err == nil {
		if bullets := postProcessBullets(raw); bulletsValid(bullets) {
			return bullets
		}
	} else {
		logger.Warn("bullet retry generation failed", zap.Error(err))
	}

	logger.Warn("degrading to mechanical bullets")
	return mechanicalBullets(summary)
}

func (s *Summarizer) generate(ctx context.Context, prompt string) (string, error) {
	if s.gen == nil {
		return "", fmt.Errorf("generator not configured")
	}
	if s.limiter == nil {
		return s.gen.Generate(ctx, prompt)
	}
	return s.limiter.Execute(ctx, s.gen.ModelName(), prompt, func(ctx context.Context) (string, error) {
		return s.gen.Generate(ctx, prompt)
	})
}

func summaryValid(summary string) bool {
	return model.SummaryArtifact{Summary: summary}.SummaryValid()
}

func bulletsValid(bullets string) bool {
	return model.SummaryArtifact{Bullets: bullets}.BulletsValid()
}

// ReduceContent bounds prompt cost for long transcripts by sampling three
// fixed windows: the opening framing, the core content and the conclusion.
func ReduceContent(text string) string {
	if len(text) <= reduceThreshold {
		return text
	}
	start := text[:sampleWindow]
	midPoint := len(text) / 2
	middle := text[midPoint-sampleWindow/2 : midPoint+sampleWindow/2]
	end := text[len(text)-sampleWindow:]
	return start + "\n\n[...]\n\n" + middle + "\n\n[...]\n\n" + end
}

func deterministicSummary(text string) string {
	return fmt.Sprintf(
		"This video transcript contains approximately %d characters of spoken content. "+
			"An automatic summary could not be generated; use the chat to ask questions about specific topics.",
		len(text))
}

var numberedPrefixes = []string{"1.", "2.", "3.", "4.", "5.", "6.", "7.", "8.", "9.", "10."}

// postProcessBullets keeps only lines that look like list items: markdown
// list items recognized through the goldmark AST, then plain lines starting
// with a bullet marker or an "N. " numbered prefix.
func postProcessBullets(generated string) string {
	lines := markdownListItems(generated)
	if len(lines) == 0 {
		lines = scanBulletLines(generated)
	}
	if len(lines) > maxBullets {
		lines = lines[:maxBullets]
	}
	return strings.Join(lines, "\n")
}

func markdownListItems(text string) []string {
	md := goldmark.New()
	reader := gtext.NewReader([]byte(text))
	doc := md.Parser().Parse(reader)

	var items []string
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || node.Kind() != ast.KindListItem {
			return ast.WalkContinue, nil
		}
		content := strings.TrimSpace(nodeText(node, reader.Source()))
		if content != "" {
			items = append(items, "• "+strings.TrimLeft(content, "•-* "))
		}
		return ast.WalkSkipChildren, nil
	})
	return items
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func scanBulletLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		switch {
		case strings.HasPrefix(trimmed, "•"):
			lines = append(lines, "• "+strings.TrimSpace(strings.TrimPrefix(trimmed, "•")))
		case strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*"):
			lines = append(lines, "• "+strings.TrimSpace(trimmed[1:]))
		default:
			for _, prefix := range numberedPrefixes {
				if strings.HasPrefix(trimmed, prefix+" ") || trimmed == prefix {
					lines = append(lines, "• "+strings.TrimSpace(strings.TrimPrefix(trimmed, prefix)))
					break
				}
			}
		}
	}
	return lines
}

// mechanicalBullets synthesizes bullets by splitting the summary into
// sentences. The last resort is a fixed placeholder so callers always get
// at least something list shaped.
func mechanicalBullets(summary string) string {
	sentences := splitSentences(summary)
	if len(sentences) > maxBullets {
		sentences = sentences[:maxBullets]
	}
	if len(sentences) >= minBullets {
		for i, s := range sentences {
			sentences[i] = "• " + s
		}
		return strings.Join(sentences, "\n")
	}
	return strings.Join([]string{
		"• The video content has been processed",
		"• A summary of the transcript is available",
		"• Ask questions in the chat to explore specific topics",
	}, "\n")
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range strings.TrimSpace(text) {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); len(s) > 3 {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); len(s) > 3 {
		sentences = append(sentences, s)
	}
	return sentences
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
