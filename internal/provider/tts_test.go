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

func TestHTTPTTSProviderSpeakDecodesBase64(t *testing.T) {
	want := []byte("fake-mp3-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voice/tts" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req ttsAPIRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Request.Text == "" {
			t.Error("expected non-empty text")
		}
		if req.Audio.VoiceType == "" {
			t.Error("expected voice_type to be set")
		}
		resp := ttsAPIResponse{Data: base64.StdEncoding.EncodeToString(want)}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p, err := NewHTTPTTSProvider(types.TTSProviderConfig{Name: "tts", Endpoint: srv.URL, Encoding: "mp3"})
	if err != nil {
		t.Fatalf("NewHTTPTTSProvider: %v", err)
	}

	got, err := p.Speak(t.Context(), TTSRequest{Text: "hello world", VoiceType: "male_adult", SpeedRatio: 1.0})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestHTTPTTSProviderSpeakEmptyDataIsSynthesisError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ttsAPIResponse{})
	}))
	defer srv.Close()

	p, _ := NewHTTPTTSProvider(types.TTSProviderConfig{Name: "tts", Endpoint: srv.URL})
	_, err := p.Speak(t.Context(), TTSRequest{Text: "hi", VoiceType: "v"})
	var synthErr *errs.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected SynthesisError for empty audio data, got %v", err)
	}
}

func TestHTTPTTSProviderSpeakUsesDefaultEncodingWhenRequestOmitsIt(t *testing.T) {
	var captured ttsAPIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(ttsAPIResponse{Data: base64.StdEncoding.EncodeToString([]byte("x"))})
	}))
	defer srv.Close()

	p, _ := NewHTTPTTSProvider(types.TTSProviderConfig{Name: "tts", Endpoint: srv.URL, Encoding: "wav"})
	if _, err := p.Speak(t.Context(), TTSRequest{Text: "hi", VoiceType: "v"}); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if captured.Audio.Encoding != "wav" {
		t.Errorf("expected default encoding wav, got %q", captured.Audio.Encoding)
	}
}

func TestHTTPTTSProviderNon200IsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	p, _ := NewHTTPTTSProvider(types.TTSProviderConfig{Name: "tts", Endpoint: srv.URL})
	_, err := p.Speak(t.Context(), TTSRequest{Text: "hi", VoiceType: "v"})
	var apiErr *errs.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError on 502, got %v", err)
	}
}
