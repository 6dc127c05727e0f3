// Package pipeline implements the Pipeline Orchestrator (C9): it sequences
// the Parser, Storyboard, Renderer and Composer stages for one task,
// publishing progress at each stage boundary and writing the terminal
// result to the Task Registry.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/unalkalkan/narrated-video-pipeline/internal/composer"
	"github.com/unalkalkan/narrated-video-pipeline/internal/errs"
	"github.com/unalkalkan/narrated-video-pipeline/internal/parser"
	"github.com/unalkalkan/narrated-video-pipeline/internal/progressbus"
	"github.com/unalkalkan/narrated-video-pipeline/internal/provider"
	"github.com/unalkalkan/narrated-video-pipeline/internal/renderer"
	"github.com/unalkalkan/narrated-video-pipeline/internal/storage"
	"github.com/unalkalkan/narrated-video-pipeline/internal/storyboard"
	"github.com/unalkalkan/narrated-video-pipeline/internal/task"
	"github.com/unalkalkan/narrated-video-pipeline/internal/workspace"
	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

// Progress values published at each stage's entry, per spec 4.9.
const (
	progressInit             = 1
	progressParsingIn        = 10
	progressParsingOut       = 20
	progressStoryboardingIn  = 25
	progressStoryboardingOut = 30
	progressRenderingIn      = 40
	progressRenderingOut     = 70
	progressComposingIn      = 80
	progressComposingOut     = 100
)

// Orchestrator sequences the four generation stages for every submitted
// task. One Orchestrator serves every concurrently running task; per-task
// state is cancellation-scoped only, with no other shared mutable state
// between runs.
type Orchestrator struct {
	providers *provider.Registry
	tasks     *task.Registry
	bus       *progressbus.Bus
	baseDir   string
	adapter   storage.Adapter

	parserCfg   types.ParserConfig
	rendererCfg types.RendererConfig
	composerCfg types.ComposerConfig

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New constructs an Orchestrator bound to the task registry, progress bus,
// provider registry, and the workspace base directory every task's
// filesystem tree is rooted under. adapter is the optional finished-artifact
// byte-sink (nil disables the mirror push entirely).
func New(
	providers *provider.Registry,
	tasks *task.Registry,
	bus *progressbus.Bus,
	baseDir string,
	adapter storage.Adapter,
	parserCfg types.ParserConfig,
	rendererCfg types.RendererConfig,
	composerCfg types.ComposerConfig,
) *Orchestrator {
	return &Orchestrator{
		providers:   providers,
		tasks:       tasks,
		bus:         bus,
		baseDir:     baseDir,
		adapter:     adapter,
		parserCfg:   parserCfg,
		rendererCfg: rendererCfg,
		composerCfg: composerCfg,
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Submit runs the full pipeline for taskID against novelText in the
// background and returns immediately; the caller observes progress via the
// Progress Bus and the terminal outcome via the Task Registry.
func (o *Orchestrator) Submit(taskID, novelText, mode string) {
	ctx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancels[taskID] = cancel
	o.mu.Unlock()

	go func() {
		defer o.clearCancel(taskID)
		o.run(ctx, taskID, novelText, mode)
	}()
}

// Cancel signals the cancellation token for taskID, observed at the next
// stage boundary (or sooner, inside C7's per-call waits). A no-op if the
// task is unknown or already terminal.
func (o *Orchestrator) Cancel(taskID string) {
	o.mu.Lock()
	cancel, ok := o.cancels[taskID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
}

func (o *Orchestrator) clearCancel(taskID string) {
	o.mu.Lock()
	delete(o.cancels, taskID)
	o.mu.Unlock()
}

func (o *Orchestrator) run(ctx context.Context, taskID, novelText, mode string) {
	o.tasks.MarkRunning(taskID, "init")
	o.publish(taskID, "init", progressInit, types.TaskRunning, "starting pipeline")

	ws, err := workspace.New(o.baseDir, taskID)
	if err != nil {
		o.fail(taskID, "init", err)
		return
	}

	if ctx.Err() != nil {
		o.cancelled(taskID, "init")
		return
	}

	parsed, err := o.runParsing(ctx, taskID, novelText, mode)
	if err != nil {
		o.fail(taskID, "parsing", err)
		return
	}
	if ctx.Err() != nil {
		o.cancelled(taskID, "parsing")
		return
	}

	board, err := o.runStoryboarding(taskID, parsed)
	if err != nil {
		o.fail(taskID, "storyboarding", err)
		return
	}
	if ctx.Err() != nil {
		o.cancelled(taskID, "storyboarding")
		return
	}

	rendered, err := o.runRendering(ctx, taskID, ws, board)
	if err != nil {
		o.fail(taskID, "rendering", err)
		return
	}
	if ctx.Err() != nil {
		o.cancelled(taskID, "rendering")
		return
	}

	composed, err := o.runComposing(ctx, taskID, ws, rendered)
	if err != nil {
		o.fail(taskID, "composing", err)
		return
	}

	result := &types.RenderOut{
		VideoPath:     composed.VideoPath,
		Duration:      composed.Duration,
		FileSize:      composed.FileSize,
		TotalScenes:   composed.TotalScenes,
		TotalChapters: composed.TotalChapters,
	}
	o.tasks.MarkCompleted(taskID, result)
	o.publishResult(taskID, progressComposingOut, result)
}

func (o *Orchestrator) runParsing(ctx context.Context, taskID, novelText, mode string) (*types.NovelParseResult, error) {
	o.publish(taskID, "parsing", progressParsingIn, types.TaskRunning, "extracting characters and scenes")

	llm, ok := o.providers.FirstLLM()
	if !ok {
		return nil, errs.NewValidationError("no LLM provider registered")
	}
	p := parser.New(llm, o.parserCfg)
	opts := parser.Options{MaxCharacters: o.parserCfg.MaxCharacters, MaxScenes: o.parserCfg.MaxScenes}

	result, err := p.Parse(ctx, novelText, mode, opts)
	if err != nil {
		return nil, err
	}

	o.publish(taskID, "parsing", progressParsingOut, types.TaskRunning, "parsing complete")
	return result, nil
}

func (o *Orchestrator) runStoryboarding(taskID string, parsed *types.NovelParseResult) (*types.StoryboardResult, error) {
	o.publish(taskID, "storyboarding", progressStoryboardingIn, types.TaskRunning, "building storyboard")

	b := storyboard.New(o.rendererCfg)
	board := b.Create(parsed, storyboard.Options{})

	o.publish(taskID, "storyboarding", progressStoryboardingOut, types.TaskRunning, "storyboard complete")
	return board, nil
}

func (o *Orchestrator) runRendering(ctx context.Context, taskID string, ws *workspace.Workspace, board *types.StoryboardResult) (*types.RenderResult, error) {
	o.publish(taskID, "rendering", progressRenderingIn, types.TaskRunning, "rendering scenes")

	image, ok := o.providers.FirstImage()
	if !ok {
		return nil, errs.NewValidationError("no image provider registered")
	}
	tts, ok := o.providers.FirstTTS()
	if !ok {
		return nil, errs.NewValidationError("no TTS provider registered")
	}

	r := renderer.New(ws, image, tts, o.rendererCfg)
	result, err := r.Render(ctx, board)
	if err != nil {
		return nil, err
	}

	o.publish(taskID, "rendering", progressRenderingOut, types.TaskRunning, "rendering complete")
	return result, nil
}

func (o *Orchestrator) runComposing(ctx context.Context, taskID string, ws *workspace.Workspace, rendered *types.RenderResult) (*types.ComposeResult, error) {
	o.publish(taskID, "composing", progressComposingIn, types.TaskRunning, "composing final video")

	c := composer.New(ws, o.composerCfg, o.adapter)
	result, err := c.Compose(ctx, rendered)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) fail(taskID, stage string, err error) {
	o.tasks.MarkFailed(taskID, stage, err)
	o.bus.Publish(taskID, types.ProgressRecord{
		Type:    types.ProgressTypeError,
		Status:  types.TaskFailed,
		Stage:   stage,
		Message: fmt.Sprintf("%s failed", stage),
		Error:   err.Error(),
	})
}

func (o *Orchestrator) cancelled(taskID, stage string) {
	o.tasks.MarkCancelled(taskID)
	o.bus.Publish(taskID, types.ProgressRecord{
		Type:    types.ProgressTypeError,
		Status:  types.TaskCancelled,
		Stage:   stage,
		Message: "task cancelled",
	})
}

func (o *Orchestrator) publish(taskID, stage string, progress int, status types.TaskStatus, message string) {
	o.bus.Publish(taskID, types.ProgressRecord{
		Type:     types.ProgressTypeProgress,
		Status:   status,
		Stage:    stage,
		Progress: progress,
		Message:  message,
	})
}

func (o *Orchestrator) publishResult(taskID string, progress int, result *types.RenderOut) {
	o.bus.Publish(taskID, types.ProgressRecord{
		Type:     types.ProgressTypeCompleted,
		Status:   types.TaskCompleted,
		Stage:    "composing",
		Progress: progress,
		Message:  "pipeline complete",
		Result:   result,
	})
}
