package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client calls an OpenAI-compatible chat completions endpoint. Only masked
// transcripts are ever passed to Analyze; the vault mapping never crosses
// this boundary.
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	logger     *zap.Logger
}

// Config contains generation service configuration
type Config struct {
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url"`
	APIKeyEnv      string        `yaml:"api_key_env" mapstructure:"api_key_env"`
	Model          string        `yaml:"model" mapstructure:"model"`
	Temperature    float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay" mapstructure:"retry_max_delay"`
	RequestsPerMin int           `yaml:"requests_per_min" mapstructure:"requests_per_min"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// systemPrompt instructs the model to analyze a masked transcript and emit
// strict JSON. Placeholder tokens must survive verbatim so the analysis can
// be rehydrated afterwards.
const systemPrompt = `You are a customer-support call analyst. The transcript you receive has been redacted: personal data is replaced with placeholder tokens like [PERSON_1] or [CREDIT_CARD_2].

Analyze the transcript and respond with a single JSON object containing exactly these fields:
- "category": one of "billing", "technical", "account", "complaint", "general"
- "summary": 2-3 sentence summary of the call
- "customer_sentiment": one of "positive", "neutral", "negative"
- "resolution_status": one of "resolved", "pending", "escalated", "unresolved"
- "actions_taken": array of strings
- "followups_required": array of strings
- "risk_flags": array of strings (empty if none)
- "entities": array of placeholder tokens mentioned in the transcript
- "confidence": number between 0 and 1

Rules:
1. Copy placeholder tokens EXACTLY as they appear, including brackets. Never invent, alter, or expand them.
2. Respond with JSON only. No markdown, no commentary.`

// NewClient builds a client for the configured endpoint. The API key is read
// from the environment variable named by APIKeyEnv.
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	apiKey := os.Getenv(config.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("api key environment variable %s is not set", config.APIKeyEnv)
	}

	rpm := config.RequestsPerMin
	if rpm <= 0 {
		rpm = 5
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		apiKey:  apiKey,
		logger:  logger,
	}, nil
}

// Analyze sends a masked transcript for analysis and returns the parsed JSON
// document. Retries transient failures with exponential backoff, capped at
// MaxRetries attempts.
func (c *Client) Analyze(ctx context.Context, maskedTranscript string) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var lastErr error
	delay := c.config.RetryBaseDelay

	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		result, err := c.complete(ctx, maskedTranscript)
		if err == nil {
			return result, nil
		}
		lastErr = err

		c.logger.Warn("Analysis request failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", c.config.MaxRetries),
			zap.Error(err))

		if attempt == c.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.config.RetryMaxDelay {
			delay = c.config.RetryMaxDelay
		}
	}

	return nil, fmt.Errorf("analysis failed after %d attempts: %w", c.config.MaxRetries, lastErr)
}

func (c *Client) complete(ctx context.Context, transcript string) (map[string]any, error) {
	reqBody := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: transcript},
		},
		Temperature:    c.config.Temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("service error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("response contains no choices")
	}

	var analysis map[string]any
	if err := json.Unmarshal([]byte(chatResp.Choices[0].Message.Content), &analysis); err != nil {
		return nil, fmt.Errorf("model returned invalid JSON: %w", err)
	}

	return analysis, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
