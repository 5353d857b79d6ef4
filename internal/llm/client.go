package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spherical/pdf-describer/internal/domain"
)

const promptTemplate = "give detailed description of page. Pay attention to the details and elements. No commentary allowed. Only page content in %s language."

// ClientConfig configures the inference transport.
type ClientConfig struct {
	URL            string
	Model          string
	TargetLanguage string
	APIKey         string
}

// Client handles communication with an Ollama-compatible generate endpoint
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
}

// GenerateRequest represents the API request structure
type GenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

// GenerateResponse represents the non-streaming API response
type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewClient creates a new inference client
func NewClient(cfg ClientConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Prompt returns the fixed prompt for the configured language.
func (c *Client) Prompt() string {
	return buildPrompt(c.cfg.TargetLanguage)
}

func buildPrompt(language string) string {
	return fmt.Sprintf(promptTemplate, language)
}

// Generate sends one image to the model and returns its description.
// timeout bounds the whole request, including reading the body.
func (c *Client) Generate(ctx context.Context, image []byte, timeout time.Duration) (string, error) {
	body, err := json.Marshal(c.buildRequest(image))
	if err != nil {
		return "", domain.APIError("Failed to marshal request", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", domain.APIError("Failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.APIError("Failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", domain.APIError(fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(bodyBytes)), nil)
	}

	var parsed GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", domain.APIError("Failed to decode response", err)
	}
	return parsed.Response, nil
}

// buildRequest constructs the API request with the image
func (c *Client) buildRequest(image []byte) *GenerateRequest {
	return &GenerateRequest{
		Model:  c.cfg.Model,
		Prompt: c.Prompt(),
		Images: []string{base64.StdEncoding.EncodeToString(image)},
		Stream: false,
	}
}
