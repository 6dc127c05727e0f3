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

// HTTPTTSProvider wraps the external TTS backend:
// POST {endpoint}/v1/voice/tts, per spec section 6.
type HTTPTTSProvider struct {
	name       string
	cfg        types.TTSProviderConfig
	httpClient *http.Client
}

// NewHTTPTTSProvider constructs a TTS wrapper from configuration.
func NewHTTPTTSProvider(cfg types.TTSProviderConfig) (*HTTPTTSProvider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required for TTS provider %s", cfg.Name)
	}
	return &HTTPTTSProvider{
		name:       cfg.Name,
		cfg:        cfg,
		httpClient: newHTTPClient(cfg.Options),
	}, nil
}

func (p *HTTPTTSProvider) Name() string { return p.name }

func (p *HTTPTTSProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

type ttsAudioOpts struct {
	VoiceType  string  `json:"voice_type"`
	Encoding   string  `json:"encoding"`
	SpeedRatio float64 `json:"speed_ratio"`
}

type ttsRequestBody struct {
	Text string `json:"text"`
}

type ttsAPIRequest struct {
	Audio   ttsAudioOpts   `json:"audio"`
	Request ttsRequestBody `json:"request"`
}

type ttsAPIResponse struct {
	Data string `json:"data"`
}

// Speak calls the TTS provider and decodes the base64 audio payload.
func (p *HTTPTTSProvider) Speak(ctx context.Context, req TTSRequest) ([]byte, error) {
	encoding := req.Encoding
	if encoding == "" {
		encoding = p.cfg.Encoding
	}

	body := ttsAPIRequest{
		Audio: ttsAudioOpts{
			VoiceType:  req.VoiceType,
			Encoding:   encoding,
			SpeedRatio: req.SpeedRatio,
		},
		Request: ttsRequestBody{Text: req.Text},
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	endpoint := endpointJoin(p.cfg.Endpoint, "v1/voice/tts")
	log.Printf("[TTS-%s] Request: POST %s voice=%s text_len=%d", p.name, endpoint, req.VoiceType, len(req.Text))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, errs.NewAPIError(0, "tts request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.NewAPIError(resp.StatusCode, "reading tts response: %v", err)
	}

	log.Printf("[TTS-%s] Response: %d", p.name, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewAPIError(resp.StatusCode, "tts API error (status %d): %s", resp.StatusCode, truncateForLog(string(respBody), 300))
	}

	var parsed ttsAPIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errs.NewParseError("parsing tts response envelope: %v", err)
	}
	if parsed.Data == "" {
		return nil, errs.NewSynthesisError("tts provider returned no audio data")
	}

	audioBytes, err := base64.StdEncoding.DecodeString(parsed.Data)
	if err != nil {
		return nil, errs.NewParseError("decoding base64 audio: %v", err)
	}
	return audioBytes, nil
}
