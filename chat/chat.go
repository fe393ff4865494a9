// Package chat calls the hosted generative-AI endpoint that backs the
// MediMate assistant.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"
)

const medicalContext = "You are MediMate, an AI medical assistant. Your responses should be:\n" +
	"1. Professional and accurate\n" +
	"2. Include disclaimers about consulting healthcare providers\n" +
	"3. Focus on general medical information, not specific diagnoses\n" +
	"4. Use clear, non-technical language when possible\n" +
	"5. Cite sources when providing specific medical information\n\n" +
	"User query: "

// Client issues generateContent requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
}

type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithModel overrides the model name.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Ask sends the assistant preamble plus the user's query and returns the
// generated text.  Any error field or malformed response shape is returned
// as an error for the UI to surface.
func (c *Client) Ask(ctx context.Context, prompt string) (string, error) {
	reqBody := &generateRequest{
		Contents: []content{
			{Parts: []part{{Text: medicalContext + prompt}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     0.7,
			MaxOutputTokens: 1024,
		},
	}

	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("while encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("while building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("while calling generative API: %w", err)
	}
	defer resp.Body.Close()

	decoded := &generateResponse{}
	if err := json.NewDecoder(resp.Body).Decode(decoded); err != nil {
		return "", fmt.Errorf("while decoding response: %w", err)
	}

	if decoded.Error != nil {
		return "", fmt.Errorf("generative API error: %s", decoded.Error.Message)
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("unexpected response structure from generative API")
	}

	return FormatResponse(decoded.Candidates[0].Content.Parts[0].Text), nil
}

// FormatResponse rewrites markdown-style "*" bullets as "•" for display.
func FormatResponse(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "*") {
			lines[i] = "• " + strings.TrimSpace(strings.TrimPrefix(trimmed, "*"))
		}
	}
	return strings.Join(lines, "\n")
}
