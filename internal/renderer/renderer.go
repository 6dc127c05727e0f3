// Package renderer implements the Scene Renderer (C7): concurrently
// generates one image and one audio track per storyboard scene via the
// configured providers, with retry-with-backoff and duration
// reconciliation against the actual audio file.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unalkalkan/narrated-video-pipeline/internal/errs"
	"github.com/unalkalkan/narrated-video-pipeline/internal/provider"
	"github.com/unalkalkan/narrated-video-pipeline/internal/workspace"
	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

// Renderer renders one task's storyboard into image+audio pairs on disk.
type Renderer struct {
	ws       *workspace.Workspace
	image    provider.ImageProvider
	tts      provider.TTSProvider
	config   types.RendererConfig
	voiceMu  sync.Mutex
	voiceTab map[string]string // character name -> voice type, stable per task
}

// New constructs a Renderer bound to one task's workspace and providers.
func New(ws *workspace.Workspace, image provider.ImageProvider, tts provider.TTSProvider, config types.RendererConfig) *Renderer {
	return &Renderer{
		ws:       ws,
		image:    image,
		tts:      tts,
		config:   config,
		voiceTab: make(map[string]string),
	}
}

// Render renders every chapter's scenes in order; scenes within a chapter
// and chapters themselves render sequentially, but a scene's image and
// audio generate concurrently.
func (r *Renderer) Render(ctx context.Context, storyboard *types.StoryboardResult) (*types.RenderResult, error) {
	if len(storyboard.Chapters) == 0 {
		return nil, errs.NewValidationError("storyboard must contain at least one chapter")
	}
	for _, chapter := range storyboard.Chapters {
		if len(chapter.Scenes) == 0 {
			return nil, errs.NewValidationError("chapter %d must contain at least one scene", chapter.ChapterID)
		}
	}

	r.prepareCharacterVoices(storyboard)

	chapters := make([]types.RenderedChapter, 0, len(storyboard.Chapters))
	totalScenes := 0
	totalDuration := 0.0

	for _, chapter := range storyboard.Chapters {
		scenes := make([]types.RenderedScene, 0, len(chapter.Scenes))
		for _, scene := range chapter.Scenes {
			rendered, err := r.renderScene(ctx, scene)
			if err != nil {
				return nil, err
			}
			scenes = append(scenes, *rendered)
			totalDuration += rendered.Duration
		}
		chapters = append(chapters, types.RenderedChapter{ChapterID: chapter.ChapterID, Scenes: scenes})
		totalScenes += len(scenes)
	}

	return &types.RenderResult{
		Chapters:      chapters,
		TotalScenes:   totalScenes,
		TotalDuration: totalDuration,
	}, nil
}

// renderScene fans out image and audio generation concurrently; both must
// succeed for the scene to be considered rendered.
func (r *Renderer) renderScene(ctx context.Context, scene types.StoryboardScene) (*types.RenderedScene, error) {
	var imagePath, audioPath string
	var imageErr, audioErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		imagePath, imageErr = r.generateImage(ctx, scene)
	}()
	go func() {
		defer wg.Done()
		audioPath, audioErr = r.generateAudio(ctx, scene)
	}()
	wg.Wait()

	if imageErr != nil {
		return nil, fmt.Errorf("scene %d rendering failed: %w", scene.SceneID, imageErr)
	}
	if audioErr != nil {
		return nil, fmt.Errorf("scene %d rendering failed: %w", scene.SceneID, audioErr)
	}

	audioDuration := r.probeAudioDuration(ctx, audioPath)
	duration := scene.Duration
	if audioDuration > duration {
		duration = audioDuration
	}

	return &types.RenderedScene{
		SceneID:       scene.SceneID,
		ChapterID:     scene.ChapterID,
		ImagePath:     imagePath,
		AudioPath:     audioPath,
		Duration:      duration,
		AudioDuration: audioDuration,
		Metadata: map[string]string{
			"location":   scene.Location,
			"time":       scene.Time,
			"atmosphere": scene.Atmosphere,
			"audio_type": string(scene.Audio.Type),
			"speaker":    scene.Audio.Speaker,
		},
	}, nil
}

func (r *Renderer) generateImage(ctx context.Context, scene types.StoryboardScene) (string, error) {
	prompt := buildImagePrompt(scene)

	attempts := r.retryAttempts()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt-1); err != nil {
				return "", err
			}
		}
		data, err := r.image.Generate(ctx, provider.ImageRequest{Prompt: prompt})
		if err == nil {
			filename := fmt.Sprintf("scene_%d_%d_%s.png", scene.ChapterID, scene.SceneID, uuid.NewString())
			path, writeErr := r.ws.Write(workspace.KindImages, filename, data)
			if writeErr != nil {
				return "", writeErr
			}
			return path, nil
		}
		lastErr = err
	}
	return "", errs.NewGenerationError("failed to generate image for scene %d: %v", scene.SceneID, lastErr)
}

func (r *Renderer) generateAudio(ctx context.Context, scene types.StoryboardScene) (string, error) {
	text := scene.Audio.Text
	if strings.TrimSpace(text) == "" {
		return r.generateSilentAudio(ctx, scene)
	}

	voiceType := r.selectVoiceTypeForScene(scene)

	attempts := r.retryAttempts()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt-1); err != nil {
				return "", err
			}
		}
		data, err := r.tts.Speak(ctx, provider.TTSRequest{
			Text:       text,
			VoiceType:  voiceType,
			SpeedRatio: r.ttsSpeedRatio(),
		})
		if err == nil {
			filename := fmt.Sprintf("audio_%d_%d_%s.mp3", scene.ChapterID, scene.SceneID, uuid.NewString())
			path, writeErr := r.ws.Write(workspace.KindAudio, filename, data)
			if writeErr != nil {
				return "", writeErr
			}
			return path, nil
		}
		lastErr = err
	}
	return "", errs.NewSynthesisError("failed to generate audio for scene %d: %v", scene.SceneID, lastErr)
}

func (r *Renderer) retryAttempts() int {
	if r.config.RetryAttempts > 0 {
		return r.config.RetryAttempts
	}
	return 3
}

func (r *Renderer) ttsSpeedRatio() float64 {
	if r.config.TTSSpeedRatio > 0 {
		return r.config.TTSSpeedRatio
	}
	return 1.0
}

func sleepBackoff(ctx context.Context, attempt int) error {
	d := time.Duration(1<<uint(attempt)) * time.Second
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func buildImagePrompt(scene types.StoryboardScene) string {
	base := scene.Image.Prompt
	if base == "" {
		base = scene.Description
	}
	styleTags := "anime style"
	if len(scene.Image.StyleTags) > 0 {
		styleTags = strings.Join(scene.Image.StyleTags, ", ")
	}
	return fmt.Sprintf("%s, %s, %s, %s, %s, %s, high quality", base, styleTags, scene.Image.ShotType, scene.Image.CameraAngle, scene.Image.Composition, scene.Image.Lighting)
}

// prepareCharacterVoices assigns and caches a voice for every dialogue
// speaker before rendering begins, so concurrent scene rendering never
// races on cache population.
func (r *Renderer) prepareCharacterVoices(storyboard *types.StoryboardResult) {
	r.voiceMu.Lock()
	defer r.voiceMu.Unlock()
	for _, chapter := range storyboard.Chapters {
		for _, scene := range chapter.Scenes {
			if scene.Audio.Type != types.ContentDialogue || scene.Audio.Speaker == "" {
				continue
			}
			speaker := scene.Audio.Speaker
			if _, ok := r.voiceTab[speaker]; ok {
				continue
			}
			for _, cast := range scene.RenderCast {
				if cast.Name == speaker {
					r.voiceTab[speaker] = r.matchVoiceByAppearance(cast.Appearance)
					break
				}
			}
		}
	}
}

func (r *Renderer) selectVoiceTypeForScene(scene types.StoryboardScene) string {
	if scene.Audio.Type == types.ContentNarration {
		return r.narratorVoiceType()
	}

	speaker := scene.Audio.Speaker
	r.voiceMu.Lock()
	if v, ok := r.voiceTab[speaker]; ok {
		r.voiceMu.Unlock()
		return v
	}
	r.voiceMu.Unlock()

	for _, cast := range scene.RenderCast {
		if cast.Name == speaker {
			voiceType := r.matchVoiceByAppearance(cast.Appearance)
			if speaker != "" {
				r.voiceMu.Lock()
				r.voiceTab[speaker] = voiceType
				r.voiceMu.Unlock()
			}
			return voiceType
		}
	}
	return r.defaultVoiceType()
}

func (r *Renderer) matchVoiceByAppearance(appearance types.CharacterAppearance) string {
	category := ageCategory(appearance.Age, appearance.AgeStage)
	return selectVoiceType(appearance.Gender, category, r.defaultVoiceType())
}

func (r *Renderer) narratorVoiceType() string {
	if r.config.NarratorVoiceType != "" {
		return r.config.NarratorVoiceType
	}
	return r.defaultVoiceType()
}

func (r *Renderer) defaultVoiceType() string {
	if r.config.DefaultVoiceType != "" {
		return r.config.DefaultVoiceType
	}
	return "voice-01"
}

// generateSilentAudio produces a short null-source clip via ffmpeg for
// scenes with no speech text.
func (r *Renderer) generateSilentAudio(ctx context.Context, scene types.StoryboardScene) (string, error) {
	duration := r.config.SilentAudioDuration
	if duration <= 0 {
		duration = 3.0
	}
	filename := fmt.Sprintf("silent_%d_%d_%s.mp3", scene.ChapterID, scene.SceneID, uuid.NewString())
	tempPath := r.ws.Path(workspace.KindTemp, filename)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
		"-t", strconv.FormatFloat(duration, 'f', 2, 64),
		"-q:a", "9",
		tempPath,
	)
	if err := cmd.Run(); err != nil {
		return "", errs.NewSynthesisError("generate silent audio for scene %d: %v", scene.SceneID, err)
	}

	data, err := readAndRemove(tempPath)
	if err != nil {
		return "", errs.NewSynthesisError("read silent audio for scene %d: %v", scene.SceneID, err)
	}
	return r.ws.Write(workspace.KindAudio, filename, data)
}

// probeAudioDuration runs ffprobe to recover the actual clip duration;
// failures assume a conservative 3s rather than fail the scene.
func (r *Renderer) probeAudioDuration(ctx context.Context, audioPath string) float64 {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 3.0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	if err != nil {
		return 3.0
	}
	return d
}

func readAndRemove(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	os.Remove(path)
	return data, nil
}
