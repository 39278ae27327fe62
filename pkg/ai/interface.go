package ai

import (
	"context"
	"errors"
)

var (
	// ErrNoResponse is returned when a provider answers with empty content
	ErrNoResponse = errors.New("ai returned no response")
	// ErrMalformedResponse is returned when the answer is not the expected JSON
	ErrMalformedResponse = errors.New("ai response is not valid analysis json")
)

// CompletionRequest is a single-turn chat completion
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float32
	// JSON asks the provider to constrain output to a JSON object when it can
	JSON bool
}

// Provider is implemented by every AI backend (OpenAI, Gemini, Ollama, ...)
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
