package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"birthday_notification_bot/internal/domain/generator"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/chat/completions"
	defaultModel   = "gpt-4"
	systemPrompt   = "You are a friendly colleague writing birthday messages."
	temperature    = 0.8
	maxTokens      = 200
)

// Client implements the generator contract against the OpenAI chat
// completions API. Failures are returned as-is; the orchestrator maps
// them to the fallback path, there is no retry here.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Generate composes one greeting. Already-used facts are appended to
// the prompt as explicit exclusions.
func (c *Client) Generate(ctx context.Context, req generator.Request) (*generator.Result, error) {
	prompt := req.Template
	if len(req.ExcludedFacts) > 0 {
		var b strings.Builder
		b.WriteString(prompt)
		b.WriteString("\n\nDO NOT use these historical facts that were used in previous years:\n")
		for i, fact := range req.ExcludedFacts {
			fmt.Fprintf(&b, "%d. %s\n", i+1, fact)
		}
		b.WriteString("\nInstead, find a different positive historical fact from that date.")
		prompt = b.String()
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read generation response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("openai error (%s): %s", apiErr.Error.Type, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("openai returned status %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	return &generator.Result{
		Text:           text,
		HistoricalFact: ExtractHistoricalFact(text),
	}, nil
}

// ExtractHistoricalFact pulls the fact portion out of a generated
// message: everything before the "and also ... was born" closer.
func ExtractHistoricalFact(text string) string {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, "and also")
	if idx < 0 {
		return ""
	}
	fact := strings.TrimSpace(text[:idx])
	fact = strings.TrimSpace(strings.TrimPrefix(fact, "On this day in history,"))
	fact = strings.TrimSpace(strings.TrimPrefix(fact, "On this day,"))
	return fact
}
