package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIServiceComplete(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4.1-mini","choices":[{"index":0,"message":{"role":"assistant","content":"{\"prioridad\":\"alta\"}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	svc := NewOpenAIService("sk-test", "", srv.URL+"/v1")
	out, err := svc.Complete(context.Background(), CompletionRequest{System: "sys", Prompt: "hello", Temperature: 0.15, JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"prioridad":"alta"}`, out)

	assert.Equal(t, "gpt-4.1-mini", body["model"])
	messages := body["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "hello", messages[1].(map[string]interface{})["content"])
	assert.Equal(t, "json_object", body["response_format"].(map[string]interface{})["type"])
}

func TestOpenAIServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIService("sk-test", "gpt-4.1-mini", srv.URL+"/v1").Complete(context.Background(), CompletionRequest{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, isQuotaError(err))
}

func TestGeminiServiceComplete(t *testing.T) {
	var body geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{}"}]}}]}`))
	}))
	defer srv.Close()

	out, err := NewGeminiServiceWithBaseURL("g-key", srv.URL).Complete(context.Background(), CompletionRequest{System: "sys", Prompt: "p", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
	require.NotNil(t, body.SystemInstruction)
	assert.Equal(t, "sys", body.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "application/json", body.GenerationConfig["responseMimeType"])
}

func TestGeminiServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	_, err := NewGeminiServiceWithBaseURL("g-key", srv.URL).Complete(context.Background(), CompletionRequest{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, isQuotaError(err))
}

func TestOllamaServiceComplete(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"response":"{\"categoria\":\"otro\"}","done":true}`))
	}))
	defer srv.Close()

	out, err := NewOllamaService(srv.URL, "mistral").Complete(context.Background(), CompletionRequest{System: "s", Prompt: "p", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"categoria":"otro"}`, out)
	assert.Equal(t, "mistral", body["model"])
	assert.Equal(t, "json", body["format"])
	assert.Equal(t, false, body["stream"])
}

type stubProvider struct {
	name  string
	out   string
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	s.calls++
	return s.out, s.err
}

func TestFallbackService(t *testing.T) {
	t.Run("primary success", func(t *testing.T) {
		primary := &stubProvider{name: "p", out: "ok"}
		secondary := &stubProvider{name: "s", out: "other"}
		out, err := NewFallbackService(primary, secondary, zerolog.Nop()).Complete(context.Background(), CompletionRequest{})
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.Equal(t, 0, secondary.calls)
	})

	t.Run("falls back on error", func(t *testing.T) {
		primary := &stubProvider{name: "p", err: errors.New("dial tcp: connection refused")}
		secondary := &stubProvider{name: "s", out: "other"}
		out, err := NewFallbackService(primary, secondary, zerolog.Nop()).Complete(context.Background(), CompletionRequest{})
		require.NoError(t, err)
		assert.Equal(t, "other", out)
	})

	t.Run("falls back on empty answer", func(t *testing.T) {
		primary := &stubProvider{name: "p", out: "  "}
		secondary := &stubProvider{name: "s", out: "other"}
		out, err := NewFallbackService(primary, secondary, zerolog.Nop()).Complete(context.Background(), CompletionRequest{})
		require.NoError(t, err)
		assert.Equal(t, "other", out)
	})

	t.Run("both fail", func(t *testing.T) {
		primary := &stubProvider{name: "p", err: errors.New("429 quota")}
		secondary := &stubProvider{name: "s", err: errors.New("boom")}
		_, err := NewFallbackService(primary, secondary, zerolog.Nop()).Complete(context.Background(), CompletionRequest{})
		assert.Error(t, err)
	})

	t.Run("cancelled context skips secondary", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		primary := &stubProvider{name: "p", err: context.Canceled}
		secondary := &stubProvider{name: "s", out: "other"}
		_, err := NewFallbackService(primary, secondary, zerolog.Nop()).Complete(ctx, CompletionRequest{})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, secondary.calls)
	})
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, isConnectionError(errors.New("Post \"http://x\": dial tcp 127.0.0.1:1: connect: connection refused")))
	assert.False(t, isConnectionError(errors.New("bad request")))
	assert.False(t, isConnectionError(nil))
	assert.True(t, isQuotaError(errors.New("status 429")))
	assert.True(t, isQuotaError(errors.New("RESOURCE_EXHAUSTED")))
	assert.False(t, isQuotaError(errors.New("bad request")))
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(Config{Provider: ProviderOpenAI}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewProvider(Config{Provider: ProviderGemini}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewProvider(Config{Provider: "claude"}, zerolog.Nop())
	assert.Error(t, err)

	p, err := NewProvider(Config{Provider: ProviderOllama}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	p, err = NewProvider(Config{Provider: ProviderAuto, OpenAIAPIKey: "k", GeminiAPIKey: "g"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "openai+gemini+ollama", p.Name())
}
