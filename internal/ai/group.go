package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/vidsage/vidsage/internal/pkg/errors"
)

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

// groupGenerator walks an ordered model hierarchy until one tier answers.
// Quota and size rejections are returned immediately: those belong to the
// rate limiter and the answer pipeline respectively, not to model fallback.
type groupGenerator struct {
	items []GeneratorEntry
}

func NewGroupGenerator(items []GeneratorEntry) IGenerator {
	if len(items) == 0 {
		return nil
	}
	return &groupGenerator{items: items}
}

func (g *groupGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Generator == nil {
			continue
		}
		res, err := item.Generator.Generate(ctx, prompt)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, appErr.ErrQuotaExceeded) || errors.Is(err, appErr.ErrPromptTooLarge) {
			return "", err
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("generator tier failed",
			zap.Int("index", i), zap.String("model", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return "", fmt.Errorf("generator not configured")
	}
	return "", fmt.Errorf("all generator tiers failed: %w", lastErr)
}

func (g *groupGenerator) ModelName() string {
	names := make([]string, 0, len(g.items))
	for _, item := range g.items {
		if item.Name == "" {
			continue
		}
		names = append(names, item.Name)
	}
	return strings.Join(names, "|")
}
