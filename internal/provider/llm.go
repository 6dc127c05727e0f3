package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/unalkalkan/narrated-video-pipeline/internal/errs"
	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

// HTTPLLMProvider wraps an OpenAI-compatible chat completion endpoint to
// implement structured-extraction calls for the Parser Stage (C5).
type HTTPLLMProvider struct {
	name       string
	cfg        types.LLMProviderConfig
	httpClient *http.Client
}

// NewHTTPLLMProvider constructs a parser-LLM wrapper from configuration.
func NewHTTPLLMProvider(cfg types.LLMProviderConfig) (*HTTPLLMProvider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required for LLM provider %s", cfg.Name)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required for LLM provider %s", cfg.Name)
	}
	return &HTTPLLMProvider{
		name:       cfg.Name,
		cfg:        cfg,
		httpClient: newHTTPClient(cfg.Options),
	}, nil
}

func (p *HTTPLLMProvider) Name() string { return p.name }

func (p *HTTPLLMProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Extract sends one chunk to the extraction LLM and validates the
// response conforms to the parsed-scene schema, raising ParseError on
// malformed JSON.
func (p *HTTPLLMProvider) Extract(ctx context.Context, chunk string, limits ExtractLimits) (*ParsedChunk, error) {
	prompt := p.buildExtractionPrompt(chunk, limits)

	content, err := p.callChatCompletion(ctx, []chatMessage{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, err
	}

	var parsed ParsedChunk
	jsonStr, ok := extractJSONObject(content)
	if !ok {
		return nil, errs.NewParseError("no JSON object found in extraction response")
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, errs.NewParseError("malformed extraction response: %v", err)
	}
	return &parsed, nil
}

const extractionSystemPrompt = "You are a narrative extraction expert. Given a chunk of prose, " +
	"identify characters, chapters, and scenes, and return only a JSON object " +
	"matching the requested schema."

func (p *HTTPLLMProvider) buildExtractionPrompt(chunk string, limits ExtractLimits) string {
	var sb strings.Builder
	sb.WriteString("Extract up to ")
	fmt.Fprintf(&sb, "%d characters and %d scenes from the following text.\n\n", limits.MaxCharacters, limits.MaxScenes)
	sb.WriteString("Respond with a single JSON object: ")
	sb.WriteString(`{"characters":[...],"chapters":[{"chapter_id":1,"title":"","summary":"","scenes":[...]}],"plot_points":[...]}`)
	sb.WriteString("\n\nText:\n")
	sb.WriteString(chunk)
	return sb.String()
}

func (p *HTTPLLMProvider) callChatCompletion(ctx context.Context, messages []chatMessage) (string, error) {
	reqBody := chatCompletionRequest{Model: p.cfg.Model, Messages: messages}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := endpointJoin(p.cfg.Endpoint, "chat/completions")
	log.Printf("[LLM-%s] Request: POST %s", p.name, endpoint)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", errs.NewAPIError(0, "LLM request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.NewAPIError(resp.StatusCode, "reading LLM response: %v", err)
	}

	log.Printf("[LLM-%s] Response: %d (payload %s)", p.name, resp.StatusCode, truncateForLog(string(body), 200))

	if resp.StatusCode != http.StatusOK {
		return "", errs.NewAPIError(resp.StatusCode, "LLM API error (status %d): %s", resp.StatusCode, truncateForLog(string(body), 500))
	}

	var apiResp chatCompletionResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", errs.NewParseError("parsing LLM response envelope: %v", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", errs.NewParseError("no choices in LLM response")
	}
	return apiResp.Choices[0].Message.Content, nil
}

func extractJSONObject(s string) (string, bool) {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || start >= end {
		return "", false
	}
	return s[start : end+1], true
}
