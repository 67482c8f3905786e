package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

// Provider constants for LLM provider selection.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

var ErrMissingAPIKey = errors.New("API key is required")

// Config holds LLM client configuration.
type Config struct {
	Provider  string // "anthropic" (default), "openai" or "gemini"
	APIKey    string // Required: API key for the provider
	BaseURL   string // Optional: custom API endpoint
	Model     string // Model name (e.g., "claude-sonnet-4-5", "gpt-4o", "gemini-2.5-flash")
	MaxTokens int    // Default max output tokens when a request leaves it unset
}

// Client is the surface the chat pipeline and the insight extractor need:
// a structured single-shot call and a streamed conversation turn.
type Client interface {
	// Chat sends one system+user turn and decodes the JSON reply into result.
	Chat(ctx context.Context, req Request, result any) (*Response, error)

	// Stream replays req.Messages after the system prompt and calls onDelta for
	// every text fragment as it arrives. On failure the returned Response still
	// carries whatever text was produced before the error.
	Stream(ctx context.Context, req StreamRequest, onDelta func(string) error) (*Response, error)

	Model() string
}

type Request struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       any
	MaxTokens    int
	Temperature  *float64 // nil = model default, explicit 0 = deterministic
}

type StreamRequest struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
	Temperature  *float64
}

// Message represents one prior conversation turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

type Response struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// New creates a Client for cfg.Provider. Defaults to Anthropic if no provider is specified.
func New(ctx context.Context, cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderAnthropic
	}

	switch provider {
	case ProviderAnthropic:
		return newAnthropicClient(cfg), nil
	case ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	case ProviderGemini:
		return newGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

func Temp(t float64) *float64 {
	return &t
}

func maxTokensOr(n, cfgDefault, fallback int) int {
	if n > 0 {
		return n
	}
	if cfgDefault > 0 {
		return cfgDefault
	}
	return fallback
}

// IsRetryable reports whether a failed call is worth retrying: rate limits,
// provider 5xx and transport errors are, client errors and cancellation are not.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.DebugContext(ctx, "llm error not retryable: context cancelled or deadline exceeded")
		return false
	}
	if errors.Is(err, ErrMalformedJSON) {
		return true
	}

	status := 0
	var openaiErr *openai.Error
	var anthropicErr *anthropic.Error
	var geminiErr genai.APIError
	switch {
	case errors.As(err, &openaiErr):
		status = openaiErr.StatusCode
	case errors.As(err, &anthropicErr):
		status = anthropicErr.StatusCode
	case errors.As(err, &geminiErr):
		status = geminiErr.Code
	default:
		// Network errors (no API response) are generally retryable
		slog.WarnContext(ctx, "llm network error, will retry", "error", err)
		return true
	}

	switch {
	case status == 429:
		slog.WarnContext(ctx, "llm rate limited, will retry", "status_code", status)
		return true
	case status >= 500:
		slog.WarnContext(ctx, "llm server error, will retry", "status_code", status)
		return true
	default:
		slog.ErrorContext(ctx, "llm client error, not retryable", "status_code", status, "error", err)
		return false
	}
}
