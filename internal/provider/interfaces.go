// Package provider wraps the three external generative services the
// pipeline consumes: the structured-extraction LLM, the image generator,
// and the TTS backend (C4). Each wrapper is stateless, thread-safe, and
// enforces a per-call timeout (default 60s).
package provider

import "context"

// ExtractLimits bounds what the caller expects back from one extraction
// call, passed through to the prompt template.
type ExtractLimits struct {
	MaxCharacters int
	MaxScenes     int
}

// ParsedChunk is the raw JSON-shaped result of one extraction call, before
// merge. Field names mirror the parsed-scene schema (spec 4.5); callers
// translate into pkg/types after validation.
type ParsedChunk struct {
	Characters []RawCharacter `json:"characters"`
	Chapters   []RawChapter   `json:"chapters"`
	PlotPoints []RawPlotPoint `json:"plot_points"`
}

// RawCharacter mirrors one extracted character before merge/normalization.
type RawCharacter struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Appearance  map[string]any `json:"appearance"`
	Personality string         `json:"personality"`
	Role        string         `json:"role"`
}

// RawChapter mirrors one extracted chapter before offset rewriting.
type RawChapter struct {
	ChapterID int        `json:"chapter_id"`
	Title     string     `json:"title"`
	Summary   string     `json:"summary"`
	Scenes    []RawScene `json:"scenes"`
}

// RawScene mirrors one extracted scene before offset rewriting.
type RawScene struct {
	SceneID              int                       `json:"scene_id"`
	Location             string                    `json:"location"`
	Time                 string                    `json:"time"`
	Characters           []string                  `json:"characters"`
	Description          string                    `json:"description"`
	Atmosphere           string                    `json:"atmosphere"`
	Lighting             string                    `json:"lighting"`
	ContentType          string                    `json:"content_type"`
	Narration            string                    `json:"narration"`
	Speaker              string                    `json:"speaker"`
	DialogueText         string                    `json:"dialogue_text"`
	Action               []string                  `json:"action"`
	CharacterAppearances map[string]map[string]any `json:"character_appearances"`
}

// RawPlotPoint mirrors one extracted plot point before offset rewriting.
type RawPlotPoint struct {
	SceneID     int    `json:"scene_id"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// LLMProvider is the typed wrapper over the structured-text extraction
// LLM: extract(chunk, limits) -> ParsedChunk. On schema failure the
// wrapper returns a *errs.ParseError.
type LLMProvider interface {
	Name() string
	Extract(ctx context.Context, chunk string, limits ExtractLimits) (*ParsedChunk, error)
	Close() error
}

// ImageRequest describes one image-generation call.
type ImageRequest struct {
	Prompt    string
	Size      string
	Reference []byte // optional reference image bytes
}

// ImageProvider is the typed wrapper over the external image generator:
// generate(prompt, size, reference?) -> image_bytes.
type ImageProvider interface {
	Name() string
	Generate(ctx context.Context, req ImageRequest) ([]byte, error)
	Close() error
}

// TTSRequest describes one speech-synthesis call.
type TTSRequest struct {
	Text       string
	VoiceType  string
	Encoding   string
	SpeedRatio float64
}

// TTSProvider is the typed wrapper over the external TTS backend:
// speak(text, voice_type, encoding, speed) -> audio_bytes.
type TTSProvider interface {
	Name() string
	Speak(ctx context.Context, req TTSRequest) ([]byte, error)
	Close() error
}
