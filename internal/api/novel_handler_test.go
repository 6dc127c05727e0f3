package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/unalkalkan/narrated-video-pipeline/internal/pipeline"
	"github.com/unalkalkan/narrated-video-pipeline/internal/progressbus"
	"github.com/unalkalkan/narrated-video-pipeline/internal/provider"
	"github.com/unalkalkan/narrated-video-pipeline/internal/task"
	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

type stubLLM struct{}

func (s *stubLLM) Name() string { return "stub-llm" }
func (s *stubLLM) Close() error { return nil }
func (s *stubLLM) Extract(ctx context.Context, chunk string, limits provider.ExtractLimits) (*provider.ParsedChunk, error) {
	return &provider.ParsedChunk{
		Characters: []provider.RawCharacter{{Name: "Alice"}},
		Chapters: []provider.RawChapter{{
			ChapterID: 1,
			Scenes: []provider.RawScene{{
				SceneID: 1, Characters: []string{"Alice"}, Description: "desc",
				ContentType: "narration", Narration: "hi",
			}},
		}},
	}, nil
}

type stubImage struct{}

func (s *stubImage) Name() string { return "stub-image" }
func (s *stubImage) Close() error { return nil }
func (s *stubImage) Generate(ctx context.Context, req provider.ImageRequest) ([]byte, error) {
	return []byte("img"), nil
}

type stubTTS struct{}

func (s *stubTTS) Name() string { return "stub-tts" }
func (s *stubTTS) Close() error { return nil }
func (s *stubTTS) Speak(ctx context.Context, req provider.TTSRequest) ([]byte, error) {
	return []byte("aud"), nil
}

func newTestHandler(t *testing.T) (*NovelHandler, *task.Registry, *progressbus.Bus) {
	t.Helper()
	reg := provider.NewRegistry()
	reg.RegisterLLM(&stubLLM{})
	reg.RegisterImage(&stubImage{})
	reg.RegisterTTS(&stubTTS{})

	tasks := task.New(time.Hour, time.Hour)
	bus := progressbus.New()
	orch := pipeline.New(reg, tasks, bus, t.TempDir(), nil,
		types.ParserConfig{MinTextLength: 1, MaxTextLength: 1000000, ChunkSize: 4000},
		types.RendererConfig{RetryAttempts: 1},
		types.ComposerConfig{},
	)
	return NewNovelHandler(orch, tasks, bus), tasks, bus
}

func longEnoughText() string {
	return strings.Repeat("a story that keeps going and going. ", 5)
}

// uploadBody builds the real wire payload a spec-compliant client sends:
// a bare JSON object with "novel_text"/"mode" keys, not a struct literal,
// so the test exercises the actual HTTP contract rather than Go's own
// field names.
func uploadBody(t *testing.T, novelText, mode string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]string{"novel_text": novelText, "mode": mode})
	if err != nil {
		t.Fatalf("marshal upload body: %v", err)
	}
	return body
}

func TestUploadAcceptsValidRequest(t *testing.T) {
	h, _, _ := newTestHandler(t)
	body := uploadBody(t, longEnoughText(), "simple")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/novels/upload", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.Upload(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TaskID == "" {
		t.Error("expected a non-empty task_id")
	}
	if resp.Status != "pending" && resp.Status != "running" {
		t.Errorf("unexpected initial status %q", resp.Status)
	}
}

func TestUploadRejectsTooShortText(t *testing.T) {
	h, _, _ := newTestHandler(t)
	body := uploadBody(t, "short", "simple")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/novels/upload", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.Upload(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestUploadRejectsUnknownMode(t *testing.T) {
	h, _, _ := newTestHandler(t)
	body := uploadBody(t, longEnoughText(), "bogus")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/novels/upload", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.Upload(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestUploadRejectsMalformedJSON(t *testing.T) {
	h, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/novels/upload", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()

	h.Upload(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestProgressReturns404ForUnknownTask(t *testing.T) {
	h, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/novels/nope/progress", nil)
	rr := httptest.NewRecorder()

	h.Progress(rr, req, "nope")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestProgressReturnsLatestRecordForKnownTask(t *testing.T) {
	h, tasks, bus := newTestHandler(t)
	tasks.Create("t1")
	bus.Publish("t1", types.ProgressRecord{Progress: 42, Message: "halfway", Status: types.TaskRunning, Stage: "rendering"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/novels/t1/progress", nil)
	rr := httptest.NewRecorder()
	h.Progress(rr, req, "t1")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp progressResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Progress != 42 || resp.Message != "halfway" || resp.Stage != "rendering" {
		t.Errorf("unexpected progress response: %+v", resp)
	}
}

func TestCancelReturns404ForUnknownTask(t *testing.T) {
	h, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/novels/nope/cancel", nil)
	rr := httptest.NewRecorder()

	h.Cancel(rr, req, "nope")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCancelAcceptsKnownTask(t *testing.T) {
	h, tasks, _ := newTestHandler(t)
	tasks.Create("t1")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/novels/t1/cancel", nil)
	rr := httptest.NewRecorder()

	h.Cancel(rr, req, "t1")

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
}

func TestSplitTaskPath(t *testing.T) {
	cases := []struct {
		path       string
		taskID     string
		action     string
		shouldFind bool
	}{
		{"/api/v1/novels/abc/progress", "abc", "progress", true},
		{"/api/v1/novels/abc/ws", "abc", "ws", true},
		{"/api/v1/novels/abc", "", "", false},
		{"/api/v1/novels/", "", "", false},
		{"/other/path", "", "", false},
	}
	for _, c := range cases {
		taskID, action, ok := splitTaskPath(c.path)
		if ok != c.shouldFind {
			t.Errorf("splitTaskPath(%q) ok=%v, want %v", c.path, ok, c.shouldFind)
			continue
		}
		if ok && (taskID != c.taskID || action != c.action) {
			t.Errorf("splitTaskPath(%q) = (%q, %q), want (%q, %q)", c.path, taskID, action, c.taskID, c.action)
		}
	}
}
