package task

import (
	"errors"
	"testing"
	"time"

	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

func TestCreateThenGet(t *testing.T) {
	r := New(time.Hour, time.Hour)
	defer r.Stop()

	r.Create("a")
	got, ok := r.Get("a")
	if !ok {
		t.Fatal("expected task to exist")
	}
	if got.Status != types.TaskPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
}

func TestGetUnknownReturnsFalse(t *testing.T) {
	r := New(time.Hour, time.Hour)
	defer r.Stop()

	if _, ok := r.Get("nope"); ok {
		t.Error("expected ok=false for unknown task")
	}
}

func TestLifecycleTransitions(t *testing.T) {
	r := New(time.Hour, time.Hour)
	defer r.Stop()

	r.Create("a")
	r.MarkRunning("a", "parsing")
	got, _ := r.Get("a")
	if got.Status != types.TaskRunning || got.Stage != "parsing" {
		t.Errorf("unexpected state: %+v", got)
	}

	r.MarkCompleted("a", &types.RenderOut{TotalScenes: 3})
	got, _ = r.Get("a")
	if got.Status != types.TaskCompleted || got.CompletedAt == nil || got.Result.TotalScenes != 3 {
		t.Errorf("unexpected completed state: %+v", got)
	}
}

func TestMarkFailedCapturesStageAndError(t *testing.T) {
	r := New(time.Hour, time.Hour)
	defer r.Stop()

	r.Create("a")
	r.MarkFailed("a", "rendering", errors.New("tts exhausted"))
	got, _ := r.Get("a")
	if got.Status != types.TaskFailed || got.Stage != "rendering" || got.Error != "tts exhausted" {
		t.Errorf("unexpected failed state: %+v", got)
	}
}

func TestSweepEvictsExpiredTerminalTasks(t *testing.T) {
	r := New(20*time.Millisecond, 10*time.Millisecond)
	defer r.Stop()

	r.Create("a")
	r.MarkCompleted("a", &types.RenderOut{})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := r.Get("a"); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected task to be evicted after TTL")
}

func TestSweepDoesNotEvictNonTerminalTasks(t *testing.T) {
	r := New(10*time.Millisecond, 5*time.Millisecond)
	defer r.Stop()

	r.Create("a")
	r.MarkRunning("a", "parsing")
	time.Sleep(100 * time.Millisecond)

	if _, ok := r.Get("a"); !ok {
		t.Error("running task should never be evicted by TTL sweep")
	}
}
