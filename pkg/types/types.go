package types

import "time"

// TaskStatus is the closed set of lifecycle states a Task can occupy.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Task is the unit of work created by a submission. Mutated only by the
// orchestrator; read by the API.
type Task struct {
	ID          string      `json:"id"`
	Status      TaskStatus  `json:"status"`
	Stage       string      `json:"stage,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Result      *RenderOut  `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// RenderOut is the terminal result surfaced by a completed task.
type RenderOut struct {
	VideoPath     string  `json:"video_path"`
	Duration      float64 `json:"duration"`
	FileSize      int64   `json:"file_size"`
	TotalScenes   int     `json:"total_scenes"`
	TotalChapters int     `json:"total_chapters"`
}

// ProgressRecordType is the closed tag for a ProgressRecord.
type ProgressRecordType string

const (
	ProgressTypeProgress  ProgressRecordType = "progress"
	ProgressTypeCompleted ProgressRecordType = "completed"
	ProgressTypeError     ProgressRecordType = "error"
)

// ProgressRecord is the latest-state unit published to C2. Only the latest
// record per task is retained by the bus; progress is monotonically
// non-decreasing per task.
type ProgressRecord struct {
	Type     ProgressRecordType `json:"type"`
	TaskID   string             `json:"task_id"`
	Status   TaskStatus         `json:"status"`
	Stage    string             `json:"stage,omitempty"`
	Progress int                `json:"progress"`
	Message  string             `json:"message"`
	Result   *RenderOut         `json:"result,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// CharacterAppearance is the free-form appearance delta attached to a
// character or a scene-local override.
type CharacterAppearance struct {
	Gender    string `json:"gender,omitempty"`
	Age       int    `json:"age,omitempty"`
	AgeStage  string `json:"age_stage,omitempty"`
	Hair      string `json:"hair,omitempty"`
	Eyes      string `json:"eyes,omitempty"`
	Clothing  string `json:"clothing,omitempty"`
	Features  string `json:"features,omitempty"`
	BodyType  string `json:"body_type,omitempty"`
	Height    string `json:"height,omitempty"`
	Skin      string `json:"skin,omitempty"`
}

// CharacterInfo is a project-level character record. Name is the merge key
// across parser chunks and must be unique per task.
type CharacterInfo struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Appearance  CharacterAppearance  `json:"appearance"`
	Personality string               `json:"personality"`
	Role        string               `json:"role,omitempty"`
	AgeVariants []string             `json:"age_variants,omitempty"`
}

// CharacterRenderInfo is the denormalized per-scene character view used by
// the Storyboard Stage output.
type CharacterRenderInfo struct {
	Name       string              `json:"name"`
	Appearance CharacterAppearance `json:"appearance"`
}

// ContentType is the closed tag for a parsed Scene's speech source.
type ContentType string

const (
	ContentNarration ContentType = "narration"
	ContentDialogue  ContentType = "dialogue"
)

// Scene is the parsed, pre-storyboard unit produced by C5.
type Scene struct {
	SceneID              int                             `json:"scene_id"`
	ChapterID             int                             `json:"chapter_id"`
	Location              string                          `json:"location"`
	Time                  string                          `json:"time"`
	Characters            []string                        `json:"characters"`
	Description           string                          `json:"description"`
	Atmosphere            string                          `json:"atmosphere"`
	Lighting              string                          `json:"lighting,omitempty"`
	ContentType           ContentType                     `json:"content_type"`
	Narration             string                          `json:"narration,omitempty"`
	Speaker               string                          `json:"speaker,omitempty"`
	DialogueText          string                          `json:"dialogue_text,omitempty"`
	Action                []string                        `json:"action,omitempty"`
	CharacterAppearances  map[string]CharacterAppearance  `json:"character_appearances,omitempty"`
}

// PlotPoint marks a narrative beat at a given scene.
type PlotPoint struct {
	SceneID     int    `json:"scene_id"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Chapter is an ordered, non-empty sequence of parsed scenes.
type Chapter struct {
	ChapterID int     `json:"chapter_id"`
	Title     string  `json:"title"`
	Summary   string  `json:"summary"`
	Scenes    []Scene `json:"scenes"`
}

// NovelParseResult is C5's public output: the whole parsed story.
type NovelParseResult struct {
	Characters []CharacterInfo `json:"characters"`
	Chapters   []Chapter       `json:"chapters"`
	PlotPoints []PlotPoint     `json:"plot_points"`
}

// AudioPlan is the single audio track attached to a storyboard scene.
type AudioPlan struct {
	Type               ContentType `json:"type"`
	Speaker            string      `json:"speaker"`
	Text               string      `json:"text"`
	EstimatedDuration  float64     `json:"estimated_duration"`
}

// ImagePlan is the single image prompt attached to a storyboard scene.
type ImagePlan struct {
	Prompt         string   `json:"prompt"`
	NegativePrompt string   `json:"negative_prompt"`
	StyleTags      []string `json:"style_tags"`
	ShotType       string   `json:"shot_type"`
	CameraAngle    string   `json:"camera_angle"`
	Composition    string   `json:"composition"`
	Lighting       string   `json:"lighting"`
}

// StoryboardScene extends a parsed Scene with rendering parameters.
type StoryboardScene struct {
	Scene
	Audio      AudioPlan             `json:"audio"`
	Image      ImagePlan             `json:"image"`
	Duration   float64               `json:"duration"`
	RenderCast []CharacterRenderInfo `json:"characters_render"`
}

// StoryboardChapter groups storyboard scenes under their chapter.
type StoryboardChapter struct {
	ChapterID int               `json:"chapter_id"`
	Title     string            `json:"title"`
	Summary   string            `json:"summary"`
	Scenes    []StoryboardScene `json:"scenes"`
}

// StoryboardResult is C6's public output.
type StoryboardResult struct {
	Chapters []StoryboardChapter `json:"chapters"`
}

// RenderedScene is a scene for which both media files exist on disk.
// Invariant: Duration >= AudioDuration.
type RenderedScene struct {
	SceneID      int               `json:"scene_id"`
	ChapterID    int               `json:"chapter_id"`
	ImagePath    string            `json:"image_path"`
	AudioPath    string            `json:"audio_path"`
	Duration     float64           `json:"duration"`
	AudioDuration float64          `json:"audio_duration"`
	Metadata     map[string]string `json:"metadata"`
}

// RenderedChapter aggregates rendered scenes for one chapter.
type RenderedChapter struct {
	ChapterID int             `json:"chapter_id"`
	Scenes    []RenderedScene `json:"scenes"`
}

// RenderResult is C7's public output, consumed by the Composer.
type RenderResult struct {
	Chapters      []RenderedChapter `json:"chapters"`
	TotalScenes   int               `json:"total_scenes"`
	TotalDuration float64           `json:"total_duration"`
}

// ComposeResult is C8's public output.
type ComposeResult struct {
	VideoPath     string  `json:"video_path"`
	Duration      float64 `json:"duration"`
	FileSize      int64   `json:"file_size"`
	TotalScenes   int     `json:"total_scenes"`
	TotalChapters int     `json:"total_chapters"`
}
