package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docpipeline/docpipeline/internal/pipelineerr"
)

// StructuredResult is one model response to a generate-structured call:
// the raw text the model returned, the same text parsed as JSON, and
// token/latency accounting for cost and metrics.
type StructuredResult struct {
	RawResponse string
	ParsedJSON  string // re-marshaled compact JSON, markdown fences stripped
	TokensIn    int
	TokensOut   int
	LatencyMs   float64
}

// LLMClient calls an OpenAI-compatible chat-completions endpoint and
// coerces its answer into a schema-shaped JSON object. Providers that
// don't report usage get a word-count-based estimate, same as the
// provider this is modeled on.
type LLMClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewLLMClient builds an LLMClient.
func NewLLMClient(baseURL, apiKey, model string, timeout time.Duration) *LLMClient {
	return &LLMClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
	}
}

const structuredSystemPrompt = "You are a precise data extraction assistant. " +
	"Extract information from the provided text and return ONLY valid JSON " +
	"that strictly conforms to the provided schema. " +
	"Do not include any explanations, markdown formatting, or additional text. " +
	"Return only the raw JSON object."

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

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// GenerateStructured builds a prompt from text and a JSON schema,
// calls the model, and returns its answer with markdown code fences
// stripped. schemaJSON is the schema already serialized by the caller,
// so the same bytes can be SHA-256'd for the prompt hash.
func (c *LLMClient) GenerateStructured(ctx context.Context, prompt string, schemaJSON string, temperature float64, maxTokens int) (*StructuredResult, error) {
	start := time.Now()

	fullPrompt := prompt + "\n\nRequired JSON Schema:\n" + schemaJSON

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: structuredSystemPrompt},
			{Role: "user", Content: fullPrompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindConfiguration, "llmclient: marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindConfiguration, "llmclient: build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pipelineerr.ClassifyNetworkError("llmclient", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pipelineerr.ClassifyNetworkError("llmclient", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, pipelineerr.ClassifyHTTPStatus(resp.StatusCode, "llmclient", fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 500)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindModelOutput, "llmclient: decode response", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, pipelineerr.New(pipelineerr.KindModelOutput, "llmclient: response has no choices")
	}

	rawResponse := parsed.Choices[0].Message.Content
	cleanJSON, err := stripJSONFences(rawResponse)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindModelOutput, "llmclient: invalid json in model output", err)
	}

	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	tokensIn := parsed.Usage.PromptTokens
	tokensOut := parsed.Usage.CompletionTokens
	if tokensIn == 0 {
		tokensIn = estimateTokens(fullPrompt)
	}
	if tokensOut == 0 {
		tokensOut = estimateTokens(rawResponse)
	}

	return &StructuredResult{
		RawResponse: rawResponse,
		ParsedJSON:  cleanJSON,
		TokensIn:    tokensIn,
		TokensOut:   tokensOut,
		LatencyMs:   latencyMs,
	}, nil
}

// stripJSONFences removes a leading ```json/``` fence and a trailing ```
// fence, then validates and re-marshals to compact JSON so downstream
// storage always sees a canonical form.
func stripJSONFences(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var v interface{}
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return "", err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// CostUSD computes the extraction cost for one model call from the
// configured per-1K-token prices.
func CostUSD(tokensIn, tokensOut int, costPer1KInput, costPer1KOutput float64) float64 {
	return float64(tokensIn)/1000.0*costPer1KInput + float64(tokensOut)/1000.0*costPer1KOutput
}
