package provider

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/unalkalkan/narrated-video-pipeline/internal/errs"
	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

func TestHTTPImageProviderGenerateDecodesBase64(t *testing.T) {
	want := []byte("fake-png-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req imageGenerationRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Prompt == "" {
			t.Error("expected non-empty prompt")
		}
		resp := imageGenerationResponse{Data: []struct {
			B64JSON string `json:"b64_json"`
		}{{B64JSON: base64.StdEncoding.EncodeToString(want)}}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p, err := NewHTTPImageProvider(types.ImageProviderConfig{Name: "img", Endpoint: srv.URL, Model: "m"})
	if err != nil {
		t.Fatalf("NewHTTPImageProvider: %v", err)
	}

	got, err := p.Generate(t.Context(), ImageRequest{Prompt: "a scene", Size: "512x512"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestHTTPImageProviderGenerateEmptyDataIsGenerationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(imageGenerationResponse{})
	}))
	defer srv.Close()

	p, _ := NewHTTPImageProvider(types.ImageProviderConfig{Name: "img", Endpoint: srv.URL})
	_, err := p.Generate(t.Context(), ImageRequest{Prompt: "x"})
	var genErr *errs.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError for empty image data, got %v", err)
	}
}

func TestHTTPImageProviderNon200IsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	p, _ := NewHTTPImageProvider(types.ImageProviderConfig{Name: "img", Endpoint: srv.URL})
	_, err := p.Generate(t.Context(), ImageRequest{Prompt: "x"})
	var apiErr *errs.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError on 500, got %v", err)
	}
}
