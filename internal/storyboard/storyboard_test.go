package storyboard

import (
	"testing"

	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

func testConfig() types.RendererConfig {
	return types.RendererConfig{
		DialogueCharsPerSec: 3.0,
		ActionDuration:      1.5,
		MinSceneDuration:    3.0,
		MaxSceneDuration:    10.0,
	}
}

func TestCreateNarrationScene(t *testing.T) {
	b := New(testConfig())
	parsed := &types.NovelParseResult{
		Characters: []types.CharacterInfo{{Name: "Alice", Appearance: types.CharacterAppearance{Hair: "red"}}},
		Chapters: []types.Chapter{{
			ChapterID: 1,
			Scenes: []types.Scene{
				{
					SceneID:     1,
					ChapterID:   1,
					Location:    "forest",
					Time:        "night",
					Atmosphere:  "tense",
					Characters:  []string{"Alice"},
					Description: "Alice walks alone",
					ContentType: types.ContentNarration,
					Narration:   "It was a dark and stormy night.",
				},
			},
		}},
	}

	result := b.Create(parsed, Options{})
	scene := result.Chapters[0].Scenes[0]

	if scene.Audio.Type != types.ContentNarration || scene.Audio.Speaker != "narrator" {
		t.Errorf("unexpected audio plan: %+v", scene.Audio)
	}
	if scene.Audio.Text != "It was a dark and stormy night." {
		t.Errorf("unexpected audio text: %q", scene.Audio.Text)
	}
	if scene.Image.ShotType != "medium_shot" || scene.Image.CameraAngle != "eye_level" || scene.Image.Composition != "centered" {
		t.Errorf("unexpected image defaults: %+v", scene.Image)
	}
	if scene.Image.Lighting != "natural" {
		t.Errorf("expected default lighting natural, got %q", scene.Image.Lighting)
	}
	if len(scene.RenderCast) != 1 || scene.RenderCast[0].Appearance.Hair != "red" {
		t.Errorf("expected denormalized cast with hair=red, got %+v", scene.RenderCast)
	}
}

func TestCreateDialogueScene(t *testing.T) {
	b := New(testConfig())
	parsed := &types.NovelParseResult{
		Characters: []types.CharacterInfo{{Name: "Bob"}},
		Chapters: []types.Chapter{{
			ChapterID: 1,
			Scenes: []types.Scene{
				{
					SceneID:      1,
					Characters:   []string{"Bob"},
					ContentType:  types.ContentDialogue,
					Speaker:      "Bob",
					DialogueText: "Hello there.",
				},
			},
		}},
	}
	result := b.Create(parsed, Options{})
	scene := result.Chapters[0].Scenes[0]
	if scene.Audio.Type != types.ContentDialogue || scene.Audio.Speaker != "Bob" || scene.Audio.Text != "Hello there." {
		t.Errorf("unexpected dialogue audio plan: %+v", scene.Audio)
	}
}

func TestDurationClampsToMinimum(t *testing.T) {
	b := New(testConfig())
	parsed := &types.NovelParseResult{
		Chapters: []types.Chapter{{Scenes: []types.Scene{
			{ContentType: types.ContentNarration, Narration: ""},
		}}},
	}
	result := b.Create(parsed, Options{})
	if result.Chapters[0].Scenes[0].Duration != 3.0 {
		t.Errorf("expected min_scene_duration floor of 3.0, got %v", result.Chapters[0].Scenes[0].Duration)
	}
}

func TestDurationClampsToMaximum(t *testing.T) {
	b := New(testConfig())
	longText := make([]byte, 1000)
	for i := range longText {
		longText[i] = 'x'
	}
	parsed := &types.NovelParseResult{
		Chapters: []types.Chapter{{Scenes: []types.Scene{
			{ContentType: types.ContentNarration, Narration: string(longText), Action: []string{"a", "b", "c", "d", "e"}},
		}}},
	}
	result := b.Create(parsed, Options{})
	if result.Chapters[0].Scenes[0].Duration != 10.0 {
		t.Errorf("expected max_scene_duration ceiling of 10.0, got %v", result.Chapters[0].Scenes[0].Duration)
	}
}

func TestImagePromptOmitsEmptyFields(t *testing.T) {
	b := New(testConfig())
	parsed := &types.NovelParseResult{
		Chapters: []types.Chapter{{Scenes: []types.Scene{
			{Description: "a quiet room"},
		}}},
	}
	result := b.Create(parsed, Options{})
	prompt := result.Chapters[0].Scenes[0].Image.Prompt
	if prompt != "a quiet room, anime" {
		t.Errorf("unexpected prompt with empty location/time/atmosphere: %q", prompt)
	}
}

func TestCharacterAppearanceOverrideIsFieldByField(t *testing.T) {
	b := New(testConfig())
	parsed := &types.NovelParseResult{
		Characters: []types.CharacterInfo{{
			Name:       "Carl",
			Appearance: types.CharacterAppearance{Hair: "black", Eyes: "brown"},
		}},
		Chapters: []types.Chapter{{Scenes: []types.Scene{
			{
				Characters: []string{"Carl"},
				CharacterAppearances: map[string]types.CharacterAppearance{
					"Carl": {Hair: "gray"},
				},
			},
		}}},
	}
	result := b.Create(parsed, Options{})
	cast := result.Chapters[0].Scenes[0].RenderCast[0]
	if cast.Appearance.Hair != "gray" {
		t.Errorf("expected scene-local override to win for hair, got %q", cast.Appearance.Hair)
	}
	if cast.Appearance.Eyes != "brown" {
		t.Errorf("expected project-level field to survive when override leaves it empty, got %q", cast.Appearance.Eyes)
	}
}
