package provider

import (
	"context"
	"testing"

	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

type fakeLLM struct{ name string }

func (f *fakeLLM) Name() string { return f.name }
func (f *fakeLLM) Extract(ctx context.Context, chunk string, limits ExtractLimits) (*ParsedChunk, error) {
	return &ParsedChunk{}, nil
}
func (f *fakeLLM) Close() error { return nil }

func TestRegistryRegisterAndGetLLM(t *testing.T) {
	r := NewRegistry()
	p := &fakeLLM{name: "primary"}
	if err := r.RegisterLLM(p); err != nil {
		t.Fatalf("RegisterLLM: %v", err)
	}
	got, err := r.GetLLM("primary")
	if err != nil {
		t.Fatalf("GetLLM: %v", err)
	}
	if got.Name() != "primary" {
		t.Errorf("got %q want primary", got.Name())
	}
}

func TestRegistryDuplicateRegistrationFails(t *testing.T) {
	r := NewRegistry()
	r.RegisterLLM(&fakeLLM{name: "dup"})
	if err := r.RegisterLLM(&fakeLLM{name: "dup"}); err == nil {
		t.Fatal("expected error on duplicate registration")
	}
}

func TestRegistryGetUnknownReturnsError(t *testing.T) {
	r := NewRegistry()
	if _, err := r.GetLLM("nope"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if _, err := r.GetImage("nope"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if _, err := r.GetTTS("nope"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestRegistryFirstReturnsFalseWhenEmpty(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.FirstLLM(); ok {
		t.Error("expected FirstLLM to report false on empty registry")
	}
	if _, ok := r.FirstImage(); ok {
		t.Error("expected FirstImage to report false on empty registry")
	}
	if _, ok := r.FirstTTS(); ok {
		t.Error("expected FirstTTS to report false on empty registry")
	}
}

func TestRegistryFirstReturnsRegistered(t *testing.T) {
	r := NewRegistry()
	r.RegisterLLM(&fakeLLM{name: "only"})
	got, ok := r.FirstLLM()
	if !ok || got.Name() != "only" {
		t.Errorf("FirstLLM = %v, %v; want only, true", got, ok)
	}
}

func TestInitializeProvidersSkipsDisabled(t *testing.T) {
	r := NewRegistry()
	cfg := types.ProvidersConfig{
		LLM: []types.LLMProviderConfig{
			{Name: "disabled", Endpoint: "http://x", Model: "m", Enabled: false},
			{Name: "enabled", Endpoint: "http://x", Model: "m", Enabled: true},
		},
	}
	if err := r.InitializeProviders(cfg); err != nil {
		t.Fatalf("InitializeProviders: %v", err)
	}
	if _, err := r.GetLLM("disabled"); err == nil {
		t.Error("expected disabled provider to not be registered")
	}
	if _, err := r.GetLLM("enabled"); err != nil {
		t.Error("expected enabled provider to be registered")
	}
}

func TestInitializeProvidersRejectsInvalidConfig(t *testing.T) {
	r := NewRegistry()
	cfg := types.ProvidersConfig{
		Image: []types.ImageProviderConfig{
			{Name: "broken", Endpoint: "", Enabled: true},
		},
	}
	if err := r.InitializeProviders(cfg); err == nil {
		t.Fatal("expected error for provider missing endpoint")
	}
}

func TestRegistryCloseReturnsNilWhenProvidersCloseCleanly(t *testing.T) {
	r := NewRegistry()
	r.RegisterLLM(&fakeLLM{name: "a"})
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
