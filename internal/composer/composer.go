// Package composer implements the Composer (C8): assembles rendered
// scenes into per-scene ffmpeg clips, concatenates them per chapter and
// finally across chapters, via external ffmpeg/ffprobe subprocesses.
package composer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/unalkalkan/narrated-video-pipeline/internal/errs"
	"github.com/unalkalkan/narrated-video-pipeline/internal/storage"
	"github.com/unalkalkan/narrated-video-pipeline/internal/workspace"
	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

// Composer turns a RenderResult into one final video file inside a task's
// workspace.
type Composer struct {
	ws      *workspace.Workspace
	config  types.ComposerConfig
	adapter storage.Adapter
}

// New constructs a Composer bound to one task's workspace. adapter is
// optional (nil is valid): when present, the finished video is pushed
// through it after local assembly completes, per spec.md section 1's
// byte-sink collaborator; local assembly under the workspace always
// happens regardless.
func New(ws *workspace.Workspace, config types.ComposerConfig, adapter storage.Adapter) *Composer {
	return &Composer{ws: ws, config: config, adapter: adapter}
}

// Compose validates the render result, composes every scene into a clip,
// concatenates clips per chapter and then across chapters, and returns the
// final video's path, duration, and size.
func (c *Composer) Compose(ctx context.Context, render *types.RenderResult) (*types.ComposeResult, error) {
	if err := c.validateInput(render); err != nil {
		return nil, err
	}

	chapterVideos := make([]string, 0, len(render.Chapters))
	for _, chapter := range render.Chapters {
		path, err := c.composeChapter(ctx, chapter)
		if err != nil {
			return nil, err
		}
		chapterVideos = append(chapterVideos, path)
	}

	var finalPath string
	if len(chapterVideos) == 1 {
		finalPath = chapterVideos[0]
	} else {
		path, err := c.concatenateVideos(ctx, chapterVideos, "final_video")
		if err != nil {
			return nil, err
		}
		finalPath = path
		removeAll(chapterVideos)
	}

	finalVideoPath, err := c.finalizeVideo(finalPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(finalVideoPath)
	if err != nil {
		return nil, errs.NewCompositionError("finalize", "final video missing after compose: %v", err)
	}
	duration := c.probeVideoDuration(ctx, finalVideoPath)

	c.pushToAdapter(ctx, finalVideoPath)

	return &types.ComposeResult{
		VideoPath:     finalVideoPath,
		Duration:      duration,
		FileSize:      info.Size(),
		TotalScenes:   render.TotalScenes,
		TotalChapters: len(render.Chapters),
	}, nil
}

// finalizeVideo moves the finished video into the workspace's videos/
// folder under its canonical name, unless it already lives there (the
// single-chapter, single-scene case can already point at a temp clip).
func (c *Composer) finalizeVideo(path string) (string, error) {
	final := c.ws.Path(workspace.KindVideos, "final.mp4")
	if path == final {
		return final, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errs.NewCompositionError("finalize", "read composed video: %v", err)
	}
	written, err := c.ws.Write(workspace.KindVideos, "final.mp4", data)
	if err != nil {
		return "", err
	}
	os.Remove(path)
	return written, nil
}

// pushToAdapter optionally copies the finished video into the configured
// byte-sink adapter, keyed by task ID. Adapter absence or failure is not
// fatal to composition: local assembly under the workspace is the
// authoritative result, the adapter push is a best-effort mirror.
func (c *Composer) pushToAdapter(ctx context.Context, finalVideoPath string) {
	if c.adapter == nil {
		return
	}
	data, err := os.ReadFile(finalVideoPath)
	if err != nil {
		log.Printf("composer: read final video for adapter push: %v", err)
		return
	}
	taskID := filepath.Base(c.ws.Root())
	key := fmt.Sprintf("%s/final.mp4", taskID)
	if err := c.adapter.Put(ctx, key, bytes.NewReader(data)); err != nil {
		log.Printf("composer: push final video to storage adapter: %v", err)
	}
}

func (c *Composer) composeChapter(ctx context.Context, chapter types.RenderedChapter) (string, error) {
	sceneVideos := make([]string, 0, len(chapter.Scenes))
	for _, scene := range chapter.Scenes {
		path, err := c.composeScene(ctx, scene)
		if err != nil {
			return "", err
		}
		sceneVideos = append(sceneVideos, path)
	}

	if len(sceneVideos) == 1 {
		return sceneVideos[0], nil
	}

	chapterPath, err := c.concatenateVideos(ctx, sceneVideos, fmt.Sprintf("chapter_%d", chapter.ChapterID))
	if err != nil {
		return "", err
	}
	// Cleanup per-scene clips only after success: an unsuccessful
	// concatenation leaves them in place for inspection.
	removeAll(sceneVideos)
	return chapterPath, nil
}

func (c *Composer) composeScene(ctx context.Context, scene types.RenderedScene) (string, error) {
	if scene.ImagePath == "" {
		return "", errs.NewValidationError("scene %d must have an image_path", scene.SceneID)
	}
	if _, err := os.Stat(scene.ImagePath); err != nil {
		return "", errs.NewValidationError("image file not found for scene %d: %s", scene.SceneID, scene.ImagePath)
	}

	hasAudio := scene.AudioPath != ""
	if hasAudio {
		if _, err := os.Stat(scene.AudioPath); err != nil {
			hasAudio = false
		}
	}
	duration := scene.Duration
	if scene.AudioDuration > duration {
		duration = scene.AudioDuration
	}

	outputPath := c.ws.Path(workspace.KindTemp, fmt.Sprintf("scene_%d_%s.mp4", scene.SceneID, shortUUID(c.suffixLen())))

	var audioArg string
	if hasAudio {
		audioArg = scene.AudioPath
	}
	args := c.buildSceneFFmpegArgs(scene.ImagePath, audioArg, outputPath, duration)

	if err := c.runWithTimeout(ctx, args, "scene", fmt.Sprintf("scene %d", scene.SceneID)); err != nil {
		return "", err
	}
	return outputPath, nil
}

func (c *Composer) buildSceneFFmpegArgs(imagePath, audioPath, outputPath string, duration float64) []string {
	args := []string{"-y", "-loop", "1", "-i", imagePath}
	if audioPath != "" {
		args = append(args, "-i", audioPath)
	} else {
		args = append(args, "-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=44100")
	}
	args = append(args,
		"-c:v", c.codec(),
		"-preset", c.preset(),
		"-tune", "stillimage",
		"-c:a", c.audioCodec(),
		"-b:a", c.audioBitrate(),
		"-pix_fmt", "yuv420p",
		"-shortest",
		"-t", strconv.FormatFloat(duration, 'f', 2, 64),
		outputPath,
	)
	return args
}

func (c *Composer) concatenateVideos(ctx context.Context, videoPaths []string, outputName string) (string, error) {
	concatFile := c.ws.Path(workspace.KindTemp, fmt.Sprintf("%s_concat_%s.txt", outputName, shortUUID(c.suffixLen())))

	var buf bytes.Buffer
	for _, p := range videoPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", errs.NewCompositionError("concat", "resolve absolute path for %s: %v", p, err)
		}
		fmt.Fprintf(&buf, "file '%s'\n", abs)
	}
	if err := os.WriteFile(concatFile, buf.Bytes(), 0o644); err != nil {
		return "", errs.NewCompositionError("concat", "write concat list: %v", err)
	}
	defer os.Remove(concatFile)

	outputPath := c.ws.Path(workspace.KindTemp, fmt.Sprintf("%s_%s.mp4", outputName, shortUUID(c.suffixLen())))
	args := []string{"-y", "-f", "concat", "-safe", "0", "-i", concatFile, "-c", "copy", outputPath}

	if err := c.runWithTimeout(ctx, args, "concat", outputName); err != nil {
		return "", err
	}
	return outputPath, nil
}

func (c *Composer) runWithTimeout(ctx context.Context, args []string, stage, label string) error {
	timeout := c.timeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return errs.NewCompositionError(stage, "composition timed out for %s", label)
	}
	if err != nil {
		return errs.NewCompositionError(stage, "ffmpeg failed for %s: %s", label, stderr.String())
	}
	return nil
}

func (c *Composer) probeVideoDuration(ctx context.Context, videoPath string) float64 {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "quiet", "-print_format", "json", "-show_format", videoPath)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0.0
	}

	var parsed struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out.Bytes(), &parsed); err != nil {
		return 0.0
	}
	d, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0.0
	}
	return d
}

func (c *Composer) validateInput(render *types.RenderResult) error {
	if len(render.Chapters) == 0 {
		return errs.NewValidationError("render result must have at least one chapter")
	}
	for _, chapter := range render.Chapters {
		if len(chapter.Scenes) == 0 {
			return errs.NewValidationError("chapter %d must have at least one scene", chapter.ChapterID)
		}
		for _, scene := range chapter.Scenes {
			if scene.ImagePath == "" {
				return errs.NewValidationError("scene %d must have an image_path", scene.SceneID)
			}
		}
	}
	return nil
}

func (c *Composer) codec() string {
	if c.config.Codec != "" {
		return c.config.Codec
	}
	return "libx264"
}

func (c *Composer) preset() string {
	if c.config.Preset != "" {
		return c.config.Preset
	}
	return "medium"
}

func (c *Composer) audioCodec() string {
	if c.config.AudioCodec != "" {
		return c.config.AudioCodec
	}
	return "aac"
}

func (c *Composer) audioBitrate() string {
	if c.config.AudioBitrate != "" {
		return c.config.AudioBitrate
	}
	return "192k"
}

func (c *Composer) timeout() time.Duration {
	if c.config.TimeoutSec > 0 {
		return time.Duration(c.config.TimeoutSec) * time.Second
	}
	return 600 * time.Second
}

func (c *Composer) suffixLen() int {
	if c.config.UUIDSuffixLen > 0 {
		return c.config.UUIDSuffixLen
	}
	return 8
}

func shortUUID(n int) string {
	id := uuid.NewString()
	id = removeHyphens(id)
	if n > 0 && n < len(id) {
		return id[:n]
	}
	return id
}

func removeHyphens(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '-' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

func removeAll(paths []string) {
	for _, p := range paths {
		os.Remove(p)
	}
}
