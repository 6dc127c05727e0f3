// Package parser implements the Parser Stage (C5): turns raw novel text
// into a structured types.NovelParseResult by delegating extraction to a
// provider.LLMProvider and merging per-chunk results.
package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/unalkalkan/narrated-video-pipeline/internal/errs"
	"github.com/unalkalkan/narrated-video-pipeline/internal/provider"
	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

const (
	ModeSimple   = "simple"
	ModeEnhanced = "enhanced"
)

// Options overrides the stage's configured limits for a single call.
type Options struct {
	MaxCharacters int
	MaxScenes     int
}

// Parser runs the extraction + merge pipeline over one LLM provider.
type Parser struct {
	llm    provider.LLMProvider
	config types.ParserConfig
}

// New constructs a Parser bound to one LLM provider and its stage config.
func New(llm provider.LLMProvider, config types.ParserConfig) *Parser {
	return &Parser{llm: llm, config: config}
}

// Parse validates novelText, chunks it (enhanced mode only), extracts each
// chunk via the LLM provider, merges the chunk results, and validates the
// merged output is non-empty.
func (p *Parser) Parse(ctx context.Context, novelText string, mode string, opts Options) (*types.NovelParseResult, error) {
	if err := p.validateInput(novelText); err != nil {
		return nil, err
	}
	if mode != ModeSimple && mode != ModeEnhanced {
		return nil, errs.NewValidationError("invalid mode: %s, must be 'simple' or 'enhanced'", mode)
	}

	limits := provider.ExtractLimits{
		MaxCharacters: firstPositive(opts.MaxCharacters, p.config.MaxCharacters),
		MaxScenes:     firstPositive(opts.MaxScenes, p.config.MaxScenes),
	}

	var chunks []string
	if mode == ModeEnhanced {
		chunks = splitIntoChunks(novelText, p.config.ChunkSize)
	} else {
		chunks = []string{novelText}
	}

	chunkResults := make([]*provider.ParsedChunk, 0, len(chunks))
	for i, chunk := range chunks {
		parsed, err := p.llm.Extract(ctx, chunk, limits)
		if err != nil {
			return nil, errs.NewParseError("failed to parse chunk %d: %v", i, err)
		}
		chunkResults = append(chunkResults, parsed)
	}

	merged := mergeChunks(chunkResults)

	result, err := convertToResult(merged)
	if err != nil {
		result = safeConvertToResult(merged)
	}

	if err := validateOutput(result); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Parser) validateInput(text string) error {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < p.config.MinTextLength {
		return errs.NewValidationError("novel text too short, minimum %d characters required", p.config.MinTextLength)
	}
	if len([]rune(text)) > p.config.MaxTextLength {
		return errs.NewValidationError("novel text too long, maximum %d characters allowed", p.config.MaxTextLength)
	}
	return nil
}

func firstPositive(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}

// splitIntoChunks packs blank-line-delimited paragraphs greedily into
// chunks no longer than chunkSize code points; a paragraph is never split,
// even if it alone exceeds the target.
func splitIntoChunks(text string, chunkSize int) []string {
	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	var current []string
	currentLen := 0

	for _, para := range paragraphs {
		paraLen := len([]rune(para))
		if currentLen+paraLen > chunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = []string{para}
			currentLen = paraLen
		} else {
			current = append(current, para)
			currentLen += paraLen
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n\n"))
	}
	return chunks
}

// mergedData is the intermediate representation after offset rewriting and
// character bucketing, before conversion into the public types.
type mergedData struct {
	Characters []provider.RawCharacter
	Chapters   []provider.RawChapter
	PlotPoints []provider.RawPlotPoint
}

// mergeChunks implements the spec's merge algorithm: running scene/chapter
// offsets rewrite IDs into a fresh dense range per chunk, in chunk order;
// characters are bucketed by exact name and unioned across occurrences.
func mergeChunks(chunkResults []*provider.ParsedChunk) mergedData {
	characterOrder := []string{}
	characterOccurrences := map[string][]provider.RawCharacter{}
	var allChapters []provider.RawChapter
	var allPlotPoints []provider.RawPlotPoint

	sceneOffset := 0
	chapterOffset := 0

	for _, chunkResult := range chunkResults {
		if chunkResult == nil {
			continue
		}
		for _, char := range chunkResult.Characters {
			if _, seen := characterOccurrences[char.Name]; !seen {
				characterOrder = append(characterOrder, char.Name)
			}
			characterOccurrences[char.Name] = append(characterOccurrences[char.Name], char)
		}

		chunkSceneStart := sceneOffset
		for _, chapter := range chunkResult.Chapters {
			chapter.ChapterID += chapterOffset
			for i := range chapter.Scenes {
				chapter.Scenes[i].SceneID = sceneOffset + 1
				sceneOffset++
			}
			allChapters = append(allChapters, chapter)
		}

		for _, pp := range chunkResult.PlotPoints {
			pp.SceneID += chunkSceneStart
			allPlotPoints = append(allPlotPoints, pp)
		}

		if len(chunkResult.Chapters) > 0 {
			chapterOffset += len(chunkResult.Chapters)
		}
	}

	mergedCharacters := make([]provider.RawCharacter, 0, len(characterOrder))
	for _, name := range characterOrder {
		occurrences := characterOccurrences[name]
		if len(occurrences) == 1 {
			mergedCharacters = append(mergedCharacters, occurrences[0])
		} else {
			mergedCharacters = append(mergedCharacters, mergeCharacterOccurrences(occurrences))
		}
	}

	return mergedData{
		Characters: mergedCharacters,
		Chapters:   allChapters,
		PlotPoints: allPlotPoints,
	}
}

// mergeCharacterOccurrences unions descriptions/personalities as
// space-joined unique sets, and keeps the longest non-empty appearance
// value per attribute.
func mergeCharacterOccurrences(occurrences []provider.RawCharacter) provider.RawCharacter {
	base := occurrences[0]
	if base.Appearance == nil {
		base.Appearance = map[string]any{}
	} else {
		merged := make(map[string]any, len(base.Appearance))
		for k, v := range base.Appearance {
			merged[k] = v
		}
		base.Appearance = merged
	}

	seenDescriptions := map[string]bool{}
	var descriptions []string
	seenPersonalities := map[string]bool{}
	var personalities []string

	for _, occ := range occurrences {
		if occ.Description != "" && !seenDescriptions[occ.Description] {
			seenDescriptions[occ.Description] = true
			descriptions = append(descriptions, occ.Description)
		}
		if occ.Personality != "" && !seenPersonalities[occ.Personality] {
			seenPersonalities[occ.Personality] = true
			personalities = append(personalities, occ.Personality)
		}
		for key, value := range occ.Appearance {
			strValue := fmt.Sprintf("%v", value)
			if strValue == "" {
				continue
			}
			existing, ok := base.Appearance[key]
			existingStr := fmt.Sprintf("%v", existing)
			if !ok || existingStr == "" || len(strValue) > len(existingStr) {
				base.Appearance[key] = value
			}
		}
	}

	if len(descriptions) > 0 {
		base.Description = strings.Join(descriptions, " ")
	}
	if len(personalities) > 0 {
		base.Personality = strings.Join(personalities, " ")
	}
	return base
}

// convertToResult translates merged raw data into the public result type,
// failing if any entry is structurally malformed.
func convertToResult(data mergedData) (*types.NovelParseResult, error) {
	characters := make([]types.CharacterInfo, 0, len(data.Characters))
	for _, c := range data.Characters {
		characters = append(characters, types.CharacterInfo{
			Name:        nonEmptyOr(c.Name, "Unknown"),
			Description: c.Description,
			Appearance:  appearanceFromMap(c.Appearance),
			Personality: c.Personality,
			Role:        c.Role,
		})
	}

	chapters := make([]types.Chapter, 0, len(data.Chapters))
	for i, ch := range data.Chapters {
		scenes := make([]types.Scene, 0, len(ch.Scenes))
		for _, s := range ch.Scenes {
			if s.Description == "" && s.Narration == "" && s.DialogueText == "" {
				return nil, errs.NewParseError("chapter %d scene %d has no description, narration, or dialogue", ch.ChapterID, s.SceneID)
			}
			scenes = append(scenes, sceneFromRaw(ch.ChapterID, s))
		}
		chapterID := ch.ChapterID
		if chapterID == 0 {
			chapterID = i + 1
		}
		chapters = append(chapters, types.Chapter{
			ChapterID: chapterID,
			Title:     ch.Title,
			Summary:   ch.Summary,
			Scenes:    scenes,
		})
	}

	plotPoints := make([]types.PlotPoint, 0, len(data.PlotPoints))
	for _, pp := range data.PlotPoints {
		plotPoints = append(plotPoints, types.PlotPoint{
			SceneID:     pp.SceneID,
			Type:        pp.Type,
			Description: pp.Description,
		})
	}

	return &types.NovelParseResult{
		Characters: characters,
		Chapters:   chapters,
		PlotPoints: plotPoints,
	}, nil
}

// safeConvertToResult is the lenient fallback: it drops individual
// malformed characters, chapters, scenes, or plot points instead of
// failing the whole stage.
func safeConvertToResult(data mergedData) *types.NovelParseResult {
	var characters []types.CharacterInfo
	for _, c := range data.Characters {
		if c.Name == "" {
			continue
		}
		characters = append(characters, types.CharacterInfo{
			Name:        c.Name,
			Description: c.Description,
			Appearance:  appearanceFromMap(c.Appearance),
			Personality: c.Personality,
			Role:        c.Role,
		})
	}

	var chapters []types.Chapter
	for i, ch := range data.Chapters {
		var scenes []types.Scene
		for _, s := range ch.Scenes {
			if s.Description == "" && s.Narration == "" && s.DialogueText == "" {
				continue
			}
			scenes = append(scenes, sceneFromRaw(ch.ChapterID, s))
		}
		if len(scenes) == 0 {
			continue
		}
		chapterID := ch.ChapterID
		if chapterID == 0 {
			chapterID = i + 1
		}
		chapters = append(chapters, types.Chapter{
			ChapterID: chapterID,
			Title:     ch.Title,
			Summary:   ch.Summary,
			Scenes:    scenes,
		})
	}

	var plotPoints []types.PlotPoint
	for _, pp := range data.PlotPoints {
		plotPoints = append(plotPoints, types.PlotPoint{
			SceneID:     pp.SceneID,
			Type:        pp.Type,
			Description: pp.Description,
		})
	}

	return &types.NovelParseResult{Characters: characters, Chapters: chapters, PlotPoints: plotPoints}
}

func sceneFromRaw(chapterID int, s provider.RawScene) types.Scene {
	appearances := map[string]types.CharacterAppearance{}
	for name, app := range s.CharacterAppearances {
		appearances[name] = appearanceFromMap(app)
	}
	contentType := types.ContentNarration
	if s.ContentType == string(types.ContentDialogue) {
		contentType = types.ContentDialogue
	}
	return types.Scene{
		SceneID:              s.SceneID,
		ChapterID:            chapterID,
		Location:             s.Location,
		Time:                 s.Time,
		Characters:           s.Characters,
		Description:          s.Description,
		Atmosphere:           s.Atmosphere,
		Lighting:             s.Lighting,
		ContentType:          contentType,
		Narration:            s.Narration,
		Speaker:              s.Speaker,
		DialogueText:         s.DialogueText,
		Action:               s.Action,
		CharacterAppearances: appearances,
	}
}

func appearanceFromMap(m map[string]any) types.CharacterAppearance {
	var a types.CharacterAppearance
	if m == nil {
		return a
	}
	if v, ok := m["gender"].(string); ok {
		a.Gender = v
	}
	if v, ok := m["age"].(float64); ok {
		a.Age = int(v)
	}
	if v, ok := m["age_stage"].(string); ok {
		a.AgeStage = v
	}
	if v, ok := m["hair"].(string); ok {
		a.Hair = v
	}
	if v, ok := m["eyes"].(string); ok {
		a.Eyes = v
	}
	if v, ok := m["clothing"].(string); ok {
		a.Clothing = v
	}
	if v, ok := m["features"].(string); ok {
		a.Features = v
	}
	if v, ok := m["body_type"].(string); ok {
		a.BodyType = v
	}
	if v, ok := m["height"].(string); ok {
		a.Height = v
	}
	if v, ok := m["skin"].(string); ok {
		a.Skin = v
	}
	return a
}

func nonEmptyOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func validateOutput(result *types.NovelParseResult) error {
	if len(result.Characters) == 0 {
		return errs.NewValidationError("no characters extracted")
	}
	if len(result.Chapters) == 0 {
		return errs.NewValidationError("no chapters extracted")
	}
	return nil
}
