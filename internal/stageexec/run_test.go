package stageexec_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/services"
	"scribe/internal/stage"
	"scribe/internal/stageexec"
)

type recordingNotifier struct {
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.events = append(r.events, event)
	return nil
}

func TestRunReturnsExecutorResult(t *testing.T) {
	exec := stage.ExecutorFunc(func(ctx context.Context, req stage.Request) stage.Result {
		if id, _ := services.ItemFromContext(ctx); id != req.Identity {
			t.Errorf("context item = %q", id)
		}
		return stage.Succeeded("/tmp/out.txt", nil)
	})
	out := stageexec.Run(context.Background(), stageexec.Options{
		Logger:   logging.NewNop(),
		Executor: exec,
		Stage:    stage.Parsed,
		Request:  stage.Request{Identity: "talk"},
	})
	if !out.OK() || out.Artifact != "/tmp/out.txt" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.RequestID == "" {
		t.Fatal("expected request id")
	}
}

func TestRunDetachesFromCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := stage.ExecutorFunc(func(ctx context.Context, _ stage.Request) stage.Result {
		if ctx.Err() != nil {
			return stage.Failed(ctx.Err())
		}
		return stage.Succeeded("", nil)
	})
	out := stageexec.Run(ctx, stageexec.Options{Logger: logging.NewNop(), Executor: exec, Stage: stage.Summarized})
	if !out.OK() {
		t.Fatalf("executor saw parent cancellation: %v", out.Err)
	}
}

func TestRunAppliesTimeout(t *testing.T) {
	exec := stage.ExecutorFunc(func(ctx context.Context, _ stage.Request) stage.Result {
		<-ctx.Done()
		return stage.Failed(ctx.Err())
	})
	out := stageexec.Run(context.Background(), stageexec.Options{
		Logger:   logging.NewNop(),
		Executor: exec,
		Stage:    stage.Transcribed,
		Timeout:  10 * time.Millisecond,
	})
	if out.OK() || !errors.Is(out.Err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", out.Err)
	}
}

func TestRunRecoversPanicAndNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	exec := stage.ExecutorFunc(func(context.Context, stage.Request) stage.Result {
		panic("boom")
	})
	out := stageexec.Run(context.Background(), stageexec.Options{
		Logger:   logging.NewNop(),
		Notifier: notifier,
		Executor: exec,
		Stage:    stage.Summarized,
		Request:  stage.Request{Identity: "talk"},
	})
	if out.OK() || !errors.Is(out.Err, services.ErrExternalTool) {
		t.Fatalf("expected external tool failure, got %v", out.Err)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventError {
		t.Fatalf("events = %v", notifier.events)
	}
}

func TestRunWithoutExecutorFails(t *testing.T) {
	out := stageexec.Run(context.Background(), stageexec.Options{Logger: logging.NewNop(), Stage: stage.PublishedToNotes})
	if out.OK() || !errors.Is(out.Err, services.ErrConfiguration) {
		t.Fatalf("expected configuration failure, got %v", out.Err)
	}
}
