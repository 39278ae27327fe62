package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"inboxflow/internal/automation/domain"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const analysisTemperature = 0.15

// Analyzer turns an email document into a structured analysis through a
// completion provider guarded by a circuit breaker
type Analyzer struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
	logger   zerolog.Logger
}

// BreakerSettings tunes the circuit breaker around the provider
type BreakerSettings struct {
	// Consecutive failures that open the breaker
	MaxFailures uint32
	// How long the breaker stays open before probing again
	OpenTimeout time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{MaxFailures: 5, OpenTimeout: 30 * time.Second}
}

func NewAnalyzer(provider Provider, settings BreakerSettings, logger zerolog.Logger) *Analyzer {
	l := logger.With().Str("component", "ai_analyzer").Logger()
	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ai-analysis",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return &Analyzer{provider: provider, breaker: breaker, logger: l}
}

// Analyze runs the analysis prompt for doc in the given language
func (a *Analyzer) Analyze(ctx context.Context, doc domain.EmailDocument, language string) (*domain.AnalysisResult, error) {
	req := CompletionRequest{
		System:      SystemPrompt(language),
		Prompt:      BuildPrompt(doc, language),
		Temperature: analysisTemperature,
		JSON:        true,
	}

	out, err := a.breaker.Execute(func() (interface{}, error) {
		return a.provider.Complete(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("%s analysis failed: %w", a.provider.Name(), err)
	}

	raw, _ := out.(string)
	return ParseAnalysis(raw)
}

// ParseAnalysis decodes a model answer. Markdown code fences and text around
// the JSON object are tolerated.
func ParseAnalysis(raw string) (*domain.AnalysisResult, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrNoResponse
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, ErrMalformedResponse
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &result, nil
}
