package provider

import (
	"fmt"
	"sync"

	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

// Registry manages provider instances by kind and name.
type Registry struct {
	llmProviders   map[string]LLMProvider
	imageProviders map[string]ImageProvider
	ttsProviders   map[string]TTSProvider
	mu             sync.RWMutex
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		llmProviders:   make(map[string]LLMProvider),
		imageProviders: make(map[string]ImageProvider),
		ttsProviders:   make(map[string]TTSProvider),
	}
}

// RegisterLLM registers an LLM provider.
func (r *Registry) RegisterLLM(p LLMProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, exists := r.llmProviders[name]; exists {
		return fmt.Errorf("LLM provider already registered: %s", name)
	}
	r.llmProviders[name] = p
	return nil
}

// RegisterImage registers an image provider.
func (r *Registry) RegisterImage(p ImageProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, exists := r.imageProviders[name]; exists {
		return fmt.Errorf("image provider already registered: %s", name)
	}
	r.imageProviders[name] = p
	return nil
}

// RegisterTTS registers a TTS provider.
func (r *Registry) RegisterTTS(p TTSProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, exists := r.ttsProviders[name]; exists {
		return fmt.Errorf("TTS provider already registered: %s", name)
	}
	r.ttsProviders[name] = p
	return nil
}

// GetLLM retrieves an LLM provider by name.
func (r *Registry) GetLLM(name string) (LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, exists := r.llmProviders[name]
	if !exists {
		return nil, fmt.Errorf("LLM provider not found: %s", name)
	}
	return p, nil
}

// GetImage retrieves an image provider by name.
func (r *Registry) GetImage(name string) (ImageProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, exists := r.imageProviders[name]
	if !exists {
		return nil, fmt.Errorf("image provider not found: %s", name)
	}
	return p, nil
}

// GetTTS retrieves a TTS provider by name.
func (r *Registry) GetTTS(name string) (TTSProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, exists := r.ttsProviders[name]
	if !exists {
		return nil, fmt.Errorf("TTS provider not found: %s", name)
	}
	return p, nil
}

// FirstLLM returns an arbitrary-but-stable registered LLM provider, for
// callers (like the orchestrator) that only need a single default.
func (r *Registry) FirstLLM() (LLMProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var first LLMProvider
	var firstName string
	for name, p := range r.llmProviders {
		if first == nil || name < firstName {
			first, firstName = p, name
		}
	}
	return first, first != nil
}

// FirstImage returns an arbitrary-but-stable registered image provider.
func (r *Registry) FirstImage() (ImageProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var first ImageProvider
	var firstName string
	for name, p := range r.imageProviders {
		if first == nil || name < firstName {
			first, firstName = p, name
		}
	}
	return first, first != nil
}

// FirstTTS returns an arbitrary-but-stable registered TTS provider.
func (r *Registry) FirstTTS() (TTSProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var first TTSProvider
	var firstName string
	for name, p := range r.ttsProviders {
		if first == nil || name < firstName {
			first, firstName = p, name
		}
	}
	return first, first != nil
}

// Close closes every registered provider, aggregating any errors.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errors []error
	for name, p := range r.llmProviders {
		if err := p.Close(); err != nil {
			errors = append(errors, fmt.Errorf("close LLM provider %s: %w", name, err))
		}
	}
	for name, p := range r.imageProviders {
		if err := p.Close(); err != nil {
			errors = append(errors, fmt.Errorf("close image provider %s: %w", name, err))
		}
	}
	for name, p := range r.ttsProviders {
		if err := p.Close(); err != nil {
			errors = append(errors, fmt.Errorf("close TTS provider %s: %w", name, err))
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("errors closing providers: %v", errors)
	}
	return nil
}

// InitializeProviders creates and registers provider instances from
// configuration.
func (r *Registry) InitializeProviders(cfg types.ProvidersConfig) error {
	for _, c := range cfg.LLM {
		if !c.Enabled {
			continue
		}
		p, err := NewHTTPLLMProvider(c)
		if err != nil {
			return fmt.Errorf("create LLM provider %s: %w", c.Name, err)
		}
		if err := r.RegisterLLM(p); err != nil {
			return err
		}
	}
	for _, c := range cfg.Image {
		if !c.Enabled {
			continue
		}
		p, err := NewHTTPImageProvider(c)
		if err != nil {
			return fmt.Errorf("create image provider %s: %w", c.Name, err)
		}
		if err := r.RegisterImage(p); err != nil {
			return err
		}
	}
	for _, c := range cfg.TTS {
		if !c.Enabled {
			continue
		}
		p, err := NewHTTPTTSProvider(c)
		if err != nil {
			return fmt.Errorf("create TTS provider %s: %w", c.Name, err)
		}
		if err := r.RegisterTTS(p); err != nil {
			return err
		}
	}
	return nil
}
