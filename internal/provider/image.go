package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/unalkalkan/narrated-video-pipeline/internal/errs"
	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

// HTTPImageProvider wraps the external image-generation service:
// POST {endpoint}/v1/images/generations, per spec section 6.
type HTTPImageProvider struct {
	name       string
	cfg        types.ImageProviderConfig
	httpClient *http.Client
}

// NewHTTPImageProvider constructs an image-generation wrapper from config.
func NewHTTPImageProvider(cfg types.ImageProviderConfig) (*HTTPImageProvider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required for image provider %s", cfg.Name)
	}
	return &HTTPImageProvider{
		name:       cfg.Name,
		cfg:        cfg,
		httpClient: newHTTPClient(cfg.Options),
	}, nil
}

func (p *HTTPImageProvider) Name() string { return p.name }

func (p *HTTPImageProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

type imageGenerationRequest struct {
	Model string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
	Image  string `json:"image,omitempty"`
}

type imageGenerationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Generate calls the image provider and decodes the base64 image payload
// embedded in the JSON envelope.
func (p *HTTPImageProvider) Generate(ctx context.Context, req ImageRequest) ([]byte, error) {
	size := req.Size
	if size == "" {
		size = p.cfg.Size
	}

	body := imageGenerationRequest{
		Model:  p.cfg.Model,
		Prompt: req.Prompt,
		Size:   size,
	}
	if len(req.Reference) > 0 {
		body.Image = base64.StdEncoding.EncodeToString(req.Reference)
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal image request: %w", err)
	}

	endpoint := endpointJoin(p.cfg.Endpoint, "v1/images/generations")
	log.Printf("[IMG-%s] Request: POST %s prompt=%q", p.name, endpoint, truncateForLog(req.Prompt, 160))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create image request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, errs.NewAPIError(0, "image request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.NewAPIError(resp.StatusCode, "reading image response: %v", err)
	}

	log.Printf("[IMG-%s] Response: %d", p.name, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewAPIError(resp.StatusCode, "image API error (status %d): %s", resp.StatusCode, truncateForLog(string(respBody), 300))
	}

	var parsed imageGenerationResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errs.NewParseError("parsing image response envelope: %v", err)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].B64JSON == "" {
		return nil, errs.NewGenerationError("image provider returned no image data")
	}

	imgBytes, err := base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
	if err != nil {
		return nil, errs.NewParseError("decoding base64 image: %v", err)
	}
	return imgBytes, nil
}
