// Package storyboard implements the Storyboard Stage (C6): a pure
// function that annotates parsed scenes with audio/image rendering
// parameters. It makes no provider calls and is fully deterministic.
package storyboard

import (
	"fmt"
	"math"
	"strings"

	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

// defaultStyleTags is applied when a scene's style is not overridden.
var defaultStyleTags = []string{"anime"}

// Options overrides the stage's configured duration parameters for a
// single call.
type Options struct {
	DialogueCharsPerSec float64
	ActionDuration      float64
	MinSceneDuration    float64
	MaxSceneDuration    float64
	StyleTags           []string
}

// Builder turns a parsed novel into a storyboard using the configured
// duration/image defaults.
type Builder struct {
	config types.RendererConfig
}

// New constructs a storyboard Builder from the renderer's duration config
// (shared with C7, since both are governed by the same pacing constants).
func New(config types.RendererConfig) *Builder {
	return &Builder{config: config}
}

// Create annotates every parsed scene with exactly one audio track and one
// image plan, and denormalizes character appearance for the render cast.
func (b *Builder) Create(parsed *types.NovelParseResult, opts Options) *types.StoryboardResult {
	resolved := b.resolveOptions(opts)
	characterIndex := indexCharacters(parsed.Characters)

	chapters := make([]types.StoryboardChapter, 0, len(parsed.Chapters))
	for _, chapter := range parsed.Chapters {
		scenes := make([]types.StoryboardScene, 0, len(chapter.Scenes))
		for _, scene := range chapter.Scenes {
			scenes = append(scenes, b.buildScene(scene, characterIndex, resolved))
		}
		chapters = append(chapters, types.StoryboardChapter{
			ChapterID: chapter.ChapterID,
			Title:     chapter.Title,
			Summary:   chapter.Summary,
			Scenes:    scenes,
		})
	}
	return &types.StoryboardResult{Chapters: chapters}
}

type resolvedOptions struct {
	dialogueCharsPerSec float64
	actionDuration      float64
	minSceneDuration    float64
	maxSceneDuration    float64
	styleTags           []string
}

func (b *Builder) resolveOptions(opts Options) resolvedOptions {
	r := resolvedOptions{
		dialogueCharsPerSec: firstPositiveFloat(opts.DialogueCharsPerSec, b.config.DialogueCharsPerSec, 3.0),
		actionDuration:      firstPositiveFloat(opts.ActionDuration, b.config.ActionDuration, 1.5),
		minSceneDuration:    firstPositiveFloat(opts.MinSceneDuration, b.config.MinSceneDuration, 3.0),
		maxSceneDuration:    firstPositiveFloat(opts.MaxSceneDuration, b.config.MaxSceneDuration, 10.0),
		styleTags:           defaultStyleTags,
	}
	if len(opts.StyleTags) > 0 {
		r.styleTags = opts.StyleTags
	}
	return r
}

func firstPositiveFloat(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func (b *Builder) buildScene(scene types.Scene, characterIndex map[string]types.CharacterInfo, opts resolvedOptions) types.StoryboardScene {
	audio := buildAudioPlan(scene)
	image := buildImagePlan(scene, opts.styleTags)
	duration := calculateDuration(audio.Text, len(scene.Action), opts)
	renderCast := buildRenderCast(scene, characterIndex)

	return types.StoryboardScene{
		Scene:      scene,
		Audio:      audio,
		Image:      image,
		Duration:   duration,
		RenderCast: renderCast,
	}
}

func buildAudioPlan(scene types.Scene) types.AudioPlan {
	if scene.ContentType == types.ContentDialogue {
		return types.AudioPlan{
			Type:    types.ContentDialogue,
			Speaker: scene.Speaker,
			Text:    scene.DialogueText,
		}
	}
	return types.AudioPlan{
		Type:    types.ContentNarration,
		Speaker: "narrator",
		Text:    scene.Narration,
	}
}

func buildImagePlan(scene types.Scene, styleTags []string) types.ImagePlan {
	parts := []string{scene.Description}
	if scene.Location != "" {
		parts = append(parts, fmt.Sprintf("location: %s", scene.Location))
	}
	if scene.Time != "" {
		parts = append(parts, fmt.Sprintf("time: %s", scene.Time))
	}
	if scene.Atmosphere != "" {
		parts = append(parts, fmt.Sprintf("atmosphere: %s", scene.Atmosphere))
	}
	parts = append(parts, styleTags...)

	lighting := scene.Lighting
	if lighting == "" {
		lighting = "natural"
	}

	return types.ImagePlan{
		Prompt:      strings.Join(nonEmpty(parts), ", "),
		StyleTags:   styleTags,
		ShotType:    "medium_shot",
		CameraAngle: "eye_level",
		Composition: "centered",
		Lighting:    lighting,
	}
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// calculateDuration implements spec 4.6: d = len(text)/dialogue_chars_per_second
// + action_count*action_duration, clamped and rounded to 0.1s.
func calculateDuration(text string, actionCount int, opts resolvedOptions) float64 {
	dialogueDuration := float64(len([]rune(text))) / opts.dialogueCharsPerSec
	actionTotal := float64(actionCount) * opts.actionDuration
	total := dialogueDuration + actionTotal

	if total < opts.minSceneDuration {
		total = opts.minSceneDuration
	}
	if total > opts.maxSceneDuration {
		total = opts.maxSceneDuration
	}
	return math.Round(total*10) / 10
}

func indexCharacters(characters []types.CharacterInfo) map[string]types.CharacterInfo {
	idx := make(map[string]types.CharacterInfo, len(characters))
	for _, c := range characters {
		idx[c.Name] = c
	}
	return idx
}

// buildRenderCast denormalizes, for every character referenced by the
// scene, the most specific known appearance: scene-local
// character_appearances override project-level character info
// field-by-field, non-empty wins.
func buildRenderCast(scene types.Scene, characterIndex map[string]types.CharacterInfo) []types.CharacterRenderInfo {
	cast := make([]types.CharacterRenderInfo, 0, len(scene.Characters))
	for _, name := range scene.Characters {
		base := characterIndex[name].Appearance
		if override, ok := scene.CharacterAppearances[name]; ok {
			base = mergeAppearance(base, override)
		}
		cast = append(cast, types.CharacterRenderInfo{Name: name, Appearance: base})
	}
	return cast
}

// mergeAppearance overlays override onto base, field by field, keeping
// override's value whenever it is non-empty.
func mergeAppearance(base, override types.CharacterAppearance) types.CharacterAppearance {
	merged := base
	if override.Gender != "" {
		merged.Gender = override.Gender
	}
	if override.Age != 0 {
		merged.Age = override.Age
	}
	if override.AgeStage != "" {
		merged.AgeStage = override.AgeStage
	}
	if override.Hair != "" {
		merged.Hair = override.Hair
	}
	if override.Eyes != "" {
		merged.Eyes = override.Eyes
	}
	if override.Clothing != "" {
		merged.Clothing = override.Clothing
	}
	if override.Features != "" {
		merged.Features = override.Features
	}
	if override.BodyType != "" {
		merged.BodyType = override.BodyType
	}
	if override.Height != "" {
		merged.Height = override.Height
	}
	if override.Skin != "" {
		merged.Skin = override.Skin
	}
	return merged
}
