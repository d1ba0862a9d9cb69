package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	appErr "github.com/vidsage/vidsage/internal/pkg/errors"
)

var ErrUnavailable = appErr.ErrAIUnavailable

// GenerateOptions carries the per-task sampling knobs forwarded to the
// backend on every call.
type GenerateOptions struct {
	Temperature float32
	MaxTokens   int
}

type IProvider interface {
	Name() string
	Generate(ctx context.Context, model string, prompt string, opts GenerateOptions) (string, error)
	Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error)
}

// IGenerator is a provider bound to one model and one option set.
type IGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

type generator struct {
	provider IProvider
	model    string
	opts     GenerateOptions
}

func NewGenerator(p IProvider, model string, opts GenerateOptions) IGenerator {
	return &generator{provider: p, model: model, opts: opts}
}

func (g *generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.provider.Generate(ctx, g.model, prompt, g.opts)
}

func (g *generator) ModelName() string {
	return g.model
}

type embedder struct {
	provider IProvider
	model    string
}

func NewEmbedder(p IProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return e.provider.Embed(ctx, e.model, text, taskType)
}

func (e *embedder) ModelName() string {
	return e.model
}

type ProviderFactory func(args interface{}) (IProvider, error)

var registry = map[string]ProviderFactory{}

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewProvider(name string, args interface{}) (IProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
