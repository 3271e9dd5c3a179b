// Package ai wraps the OpenAI-compatible chat API used for design-to-HTML
// conversion (vision) and edit suggestions (text).
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/emailgen-labs/emailgen-api/pkg/config"
)

const chatCompletionPath = "/v1/chat/completions"

// ContentPart is one element of a multimodal chat message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an inline data URL or remote reference.
type ImageURL struct {
	URL string `json:"url"`
}

// Message is a chat turn. Content is either a string or []ContentPart.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ChatRequest matches the OpenAI chat completion request format.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatResponse matches the OpenAI chat completion response format.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Client is a reusable OpenAI-compatible API client.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	visionModel    string
	assistantModel string
	maxOutputChars int
}

// NewClient builds a client from configuration.
func NewClient(cfg config.AIConfig) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		visionModel:    cfg.VisionModel,
		assistantModel: cfg.AssistantModel,
		maxOutputChars: cfg.MaxOutputChars,
	}
}

const convertSystemPrompt = `You convert email design images into table-based HTML email markup.
Respond with HTML only: no markdown fences, no commentary. Use inline CSS,
a 600px-wide layout table, and include alt text on every image.`

// ConvertDesign sends a design page image to the vision model and returns the
// generated HTML markup.
func (c *Client) ConvertDesign(ctx context.Context, image []byte, mimeType, instructions string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	userParts := []ContentPart{
		{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}},
	}
	if instructions != "" {
		userParts = append(userParts, ContentPart{Type: "text", Text: instructions})
	}

	resp, err := c.doChat(ctx, &ChatRequest{
		Model: c.visionModel,
		Messages: []Message{
			{Role: "system", Content: convertSystemPrompt},
			{Role: "user", Content: userParts},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}

	html := stripCodeFences(resp)
	if c.maxOutputChars > 0 && len(html) > c.maxOutputChars {
		return "", fmt.Errorf("model output exceeds %d chars", c.maxOutputChars)
	}
	return html, nil
}

const suggestSystemPrompt = `You propose edits to HTML email markup. Respond with a single JSON object:
{"description": string, "originalCode": string, "newCode": string,
 "startLine": int, "endLine": int, "startCol": int|null, "endCol": int|null}
Line numbers are 1-indexed against the document you were given. No other text.`

// SuggestEdit asks the assistant model for a modification to the document.
func (c *Client) SuggestEdit(ctx context.Context, document, instruction string) (*Suggestion, error) {
	prompt := fmt.Sprintf("Document:\n%s\n\nRequested change: %s", numberLines(document), instruction)
	resp, err := c.doChat(ctx, &ChatRequest{
		Model: c.assistantModel,
		Messages: []Message{
			{Role: "system", Content: suggestSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, err
	}
	return ParseSuggestion([]byte(stripCodeFences(resp)))
}

func (c *Client) doChat(ctx context.Context, req *ChatRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer httpResp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API returned %d: %s", httpResp.StatusCode, truncate(string(body), 256))
	}

	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat response contains no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return content
	}
	lines = lines[1:]
	if strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func numberLines(document string) string {
	lines := strings.Split(document, "\n")
	buf := &strings.Builder{}
	for i, line := range lines {
		fmt.Fprintf(buf, "%d: %s\n", i+1, line)
	}
	return buf.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
