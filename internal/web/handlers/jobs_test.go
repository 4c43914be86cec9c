package handlers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/photo-finder/internal/constants"
	"github.com/kozaktomas/photo-finder/internal/scan"
)

func TestEventBroadcaster_SendAndRemove(t *testing.T) {
	var b EventBroadcaster
	first := b.AddListener()
	second := b.AddListener()

	b.SendEvent(JobEvent{Type: "progress"})
	for _, ch := range []chan JobEvent{first, second} {
		if ev := <-ch; ev.Type != "progress" {
			t.Errorf("expected progress event, got %q", ev.Type)
		}
	}

	b.RemoveListener(first)
	if _, ok := <-first; ok {
		t.Error("removed listener should be closed")
	}
	b.SendEvent(JobEvent{Type: "completed"})
	if ev := <-second; ev.Type != "completed" {
		t.Errorf("expected completed event, got %q", ev.Type)
	}
}

func TestEventBroadcaster_FullBufferDoesNotBlock(t *testing.T) {
	var b EventBroadcaster
	ch := b.AddListener()
	for range constants.EventChannelBuffer + 10 {
		b.SendEvent(JobEvent{Type: "progress"})
	}
	if len(ch) != constants.EventChannelBuffer {
		t.Errorf("expected %d buffered events, got %d", constants.EventChannelBuffer, len(ch))
	}
}

func TestEventBroadcaster_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := EventBroadcaster{cancel: cancel}
	ch := b.AddListener()

	b.Cancel()

	if ctx.Err() == nil {
		t.Error("context should be cancelled")
	}
	if ev := <-ch; ev.Type != "cancel_requested" {
		t.Errorf("expected cancel_requested event, got %q", ev.Type)
	}
}

func TestScanJob_FinishQueuesFinalEvent(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(ScanJobInfo{ID: "job-1"}, nil, func() {})
	if job.GetStatus() != JobStatusPending {
		t.Fatalf("expected pending, got %s", job.GetStatus())
	}
	ch := job.AddListener()

	job.setRunning()
	job.setProgress(scan.Progress{Processed: 1, Total: 4})
	if info := job.Info(); info.Progress != 25 || info.Status != JobStatusRunning {
		t.Errorf("unexpected info %+v", info)
	}

	summary := scan.Summary{Total: 4, Scanned: 4, Matched: 1}
	job.finish(JobStatusCompleted, summary, "", JobEvent{Type: "completed", Data: summary})

	if ev := <-ch; ev.Type != "completed" {
		t.Errorf("expected completed event, got %q", ev.Type)
	}
	info := job.Info()
	if info.Progress != 100 || info.Summary.Matched != 1 || info.CompletedAt == nil {
		t.Errorf("unexpected info %+v", info)
	}

	// Info hands out copies
	info.Summary.Matched = 99
	if job.Info().Summary.Matched != 1 {
		t.Error("Info must not expose the job's summary")
	}

	if job.Cancel() {
		t.Error("a finished job cannot be cancelled")
	}
	if job.Results() != nil {
		t.Error("a job without scanner has no results")
	}
}

func TestJobManager(t *testing.T) {
	jm := NewJobManager()
	older := jm.CreateJob(ScanJobInfo{ID: "older"}, nil, nil)
	time.Sleep(time.Millisecond)
	newer := jm.CreateJob(ScanJobInfo{ID: "newer"}, nil, nil)

	if jm.GetJob("older") != older || jm.GetJob("missing") != nil {
		t.Error("GetJob returned the wrong job")
	}

	jobs := jm.ListJobs()
	if len(jobs) != 2 || jobs[0] != newer || jobs[1] != older {
		t.Errorf("expected newest first, got %v", jobs)
	}

	jm.CancelAll()

	jm.DeleteJob("older")
	if jm.GetJob("older") != nil || len(jm.ListJobs()) != 1 {
		t.Error("job not deleted")
	}
}

func TestJobManager_EvictsOldestFinished(t *testing.T) {
	jm := NewJobManager()
	running := jm.CreateJob(ScanJobInfo{ID: "running"}, nil, nil)

	for i := range constants.MaxFinishedJobs + 3 {
		time.Sleep(time.Millisecond)
		job := jm.CreateJob(ScanJobInfo{ID: fmt.Sprintf("job-%d", i)}, nil, nil)
		job.finish(JobStatusCompleted, scan.Summary{}, "", JobEvent{Type: "completed"})
	}
	time.Sleep(time.Millisecond)
	jm.CreateJob(ScanJobInfo{ID: "latest"}, nil, nil)

	if jm.GetJob("running") != running || jm.GetJob("latest") == nil {
		t.Error("unfinished jobs must never be evicted")
	}
	for _, id := range []string{"job-0", "job-1", "job-2"} {
		if jm.GetJob(id) != nil {
			t.Errorf("oldest finished job %s was kept", id)
		}
	}
	if jm.GetJob("job-3") == nil {
		t.Error("job-3 is within the retention limit")
	}
	if got := len(jm.ListJobs()); got != constants.MaxFinishedJobs+2 {
		t.Errorf("kept %d jobs, want %d", got, constants.MaxFinishedJobs+2)
	}
}
