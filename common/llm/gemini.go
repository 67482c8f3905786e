package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

type geminiClient struct {
	client    *genai.Client
	model     string
	maxTokens int
}

func newGeminiClient(ctx context.Context, cfg Config) (*geminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &geminiClient{client: client, model: model, maxTokens: cfg.MaxTokens}, nil
}

func (c *geminiClient) Model() string {
	return c.model
}

func (c *geminiClient) config(system string, maxTokens int, temp *float64) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if system != "" {
		gc.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if temp != nil {
		gc.Temperature = genai.Ptr(float32(*temp))
	}
	return gc
}

func (c *geminiClient) Chat(ctx context.Context, req Request, result any) (*Response, error) {
	gc := c.config(req.SystemPrompt, maxTokensOr(req.MaxTokens, c.maxTokens, 1024), req.Temperature)
	gc.ResponseMIMEType = "application/json"

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.UserPrompt), gc)
	if err != nil {
		return nil, fmt.Errorf("gemini chat: %w", err)
	}

	out := &Response{Content: resp.Text()}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	slog.DebugContext(ctx, "llm chat completed",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", out.PromptTokens,
		"completion_tokens", out.CompletionTokens)

	if err := DecodeJSON(out.Content, result); err != nil {
		return out, err
	}
	return out, nil
}

func (c *geminiClient) Stream(ctx context.Context, req StreamRequest, onDelta func(string) error) (*Response, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case "user":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}

	gc := c.config(req.SystemPrompt, maxTokensOr(req.MaxTokens, c.maxTokens, 4096), req.Temperature)

	start := time.Now()
	var text strings.Builder
	out := &Response{}
	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, gc) {
		if err != nil {
			out.Content = text.String()
			return out, fmt.Errorf("gemini stream: %w", err)
		}
		if resp.UsageMetadata != nil {
			out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
			out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}
		delta := resp.Text()
		if delta == "" {
			continue
		}
		text.WriteString(delta)
		if err := onDelta(delta); err != nil {
			out.Content = text.String()
			return out, err
		}
	}
	out.Content = text.String()

	slog.DebugContext(ctx, "llm stream completed",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", out.PromptTokens,
		"completion_tokens", out.CompletionTokens)

	return out, nil
}
