package signals

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"arbitrage/internal/config"
)

// HTTPAdvisorClient реализует AdvisorClient поверх Messages API внешнего
// LLM-советника (формат запроса/ответа совместим с Anthropic Messages API).
// Guardrails уже оборачивает вызов таймаутом и валидацией ответа - клиент
// сам по себе не кэширует и не считает бюджет.
type HTTPAdvisorClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
}

// NewHTTPAdvisorClient создаёт клиента советника по конфигурации Guardrails
func NewHTTPAdvisorClient(cfg config.GuardrailsConfig) *HTTPAdvisorClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPAdvisorClient{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

type advisorRequest struct {
	Model     string           `json:"model"`
	MaxTokens int              `json:"max_tokens"`
	Messages  []advisorMessage `json:"messages"`
}

type advisorMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type advisorResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Analyze отправляет prompt советнику и возвращает текст первого блока ответа
func (c *HTTPAdvisorClient) Analyze(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("advisor client: ADVISOR_API_KEY is not configured")
	}

	body, err := json.Marshal(advisorRequest{
		Model:     c.model,
		MaxTokens: 1024,
		Messages:  []advisorMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("advisor client: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("advisor client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("advisor client: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("advisor client: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("advisor client: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed advisorResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("advisor client: decode response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("advisor client: empty response content")
	}

	return parsed.Content[0].Text, nil
}
