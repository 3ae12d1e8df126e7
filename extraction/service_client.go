package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultServiceTimeout = 60 * time.Second

// ServiceClient talks to the external text-extraction service that hosts
// the PDF parser and the OCR engine. It implements both PDFTextExtractor
// and OCRClient.
type ServiceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewServiceClient creates a client for the text-extraction service.
func NewServiceClient(baseURL string) *ServiceClient {
	return &ServiceClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultServiceTimeout},
	}
}

// NewServiceClientFromEnv builds a client from EXTRACTION_SERVICE_URL.
func NewServiceClientFromEnv() *ServiceClient {
	baseURL := os.Getenv("EXTRACTION_SERVICE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:9090"
	}
	return NewServiceClient(baseURL)
}

// ExtractText sends PDF bytes for direct (non-OCR) text extraction.
func (c *ServiceClient) ExtractText(ctx context.Context, data []byte) (string, error) {
	return c.post(ctx, "/v1/pdf-text", "application/pdf", data)
}

// Recognize sends file bytes for optical character recognition.
func (c *ServiceClient) Recognize(ctx context.Context, data []byte) (string, error) {
	return c.post(ctx, "/v1/ocr", "application/octet-stream", data)
}

func (c *ServiceClient) post(ctx context.Context, path, contentType string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("extraction service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("extraction service error: %d - %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode extraction response: %w", err)
	}
	return payload.Text, nil
}
