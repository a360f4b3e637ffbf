// Package analyzer asks a remote language/vision model whether page content
// shows alerts and returns the model's report.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/JakeFAU/webmonitor/internal/metrics"
)

// ErrEmptyResponse is returned when the model answered without choices.
var ErrEmptyResponse = errors.New("model returned no choices")

// Generator is the part of llms.Model the analyzer needs.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Config selects models and sampling.
type Config struct {
	ReasoningModel string
	VisualModel    string
	Temperature    float64
}

// Limiter paces model calls, keyed by model name.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// Analyzer implements monitor.Analyzer.
type Analyzer struct {
	model   Generator
	cfg     Config
	limiter Limiter
	logger  *zap.Logger
}

// New builds an Analyzer. A nil model puts it in placeholder mode: both entry
// points return Placeholder without any network traffic.
func New(model Generator, cfg Config, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{model: model, cfg: cfg, logger: logger}
}

// WithLimiter makes every model call wait for a token first.
func (a *Analyzer) WithLimiter(l Limiter) *Analyzer {
	a.limiter = l
	return a
}

// Available reports whether a model client is configured.
func (a *Analyzer) Available() bool {
	return a.model != nil
}

// AnalyzeText sends the (truncated) page text to the reasoning model.
func (a *Analyzer) AnalyzeText(ctx context.Context, text string) string {
	if !a.Available() {
		return Placeholder
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, textSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(textPromptFormat, Truncate(text, MaxPromptChars))),
	}
	report, err := a.generate(ctx, a.cfg.ReasoningModel, messages)
	if err != nil {
		a.logger.Warn("text analysis failed", zap.String("model", a.cfg.ReasoningModel), zap.Error(err))
		metrics.ObserveAnalysisError("text")
		return fmt.Sprintf(textFailureFormat, err)
	}
	return report
}

// AnalyzeImage sends the PNG screenshot to the visual model.
func (a *Analyzer) AnalyzeImage(ctx context.Context, png []byte) string {
	if !a.Available() {
		return Placeholder
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, imageSystemPrompt),
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextContent{Text: imagePrompt},
				llms.BinaryPart("image/png", png),
			},
		},
	}
	report, err := a.generate(ctx, a.cfg.VisualModel, messages)
	if err != nil {
		a.logger.Warn("image analysis failed", zap.String("model", a.cfg.VisualModel), zap.Error(err))
		metrics.ObserveAnalysisError("image")
		return fmt.Sprintf(imageFailureFormat, err)
	}
	return report
}

func (a *Analyzer) generate(ctx context.Context, model string, messages []llms.MessageContent) (string, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx, model); err != nil {
			return "", err
		}
	}
	a.logger.Debug("calling model", zap.String("model", model), zap.Float64("temperature", a.cfg.Temperature))
	resp, err := a.model.GenerateContent(ctx, messages,
		llms.WithModel(model),
		llms.WithTemperature(a.cfg.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

// Truncate returns at most limit runes of s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == limit {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
