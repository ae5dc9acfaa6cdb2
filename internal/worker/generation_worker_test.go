package worker

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/clipdeck/api/internal/model"
	"github.com/clipdeck/api/internal/retry"
)

type fakeSubmitter struct {
	got *model.GenerateClipRequest
	err error
}

func (s *fakeSubmitter) GenerateClip(ctx context.Context, req *model.GenerateClipRequest) (*model.GenerateResponse, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &model.GenerateResponse{ClipID: req.ClipID, Status: model.JobStatusQueued, JobID: "job-1"}, nil
}

func TestProcessTask_Submits(t *testing.T) {
	sub := &fakeSubmitter{}
	w := NewGenerationWorker(sub, nil)

	task := asynq.NewTask("generation:clip", []byte(`{"projectId":"p1","clipId":"c1","prompt":"sea","provider":"pika"}`))
	if err := w.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if sub.got == nil || sub.got.ClipID != "c1" || sub.got.Provider != model.ProviderPika {
		t.Errorf("submitted %+v", sub.got)
	}
}

func TestProcessTask_SkipsRetryOnBadPayload(t *testing.T) {
	w := NewGenerationWorker(&fakeSubmitter{}, nil)
	err := w.ProcessTask(context.Background(), asynq.NewTask("generation:clip", []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("err = %v", err)
	}
}

func TestProcessTask_RetryClassification(t *testing.T) {
	task := asynq.NewTask("generation:clip", []byte(`{"projectId":"p1","clipId":"c1","prompt":"sea","provider":"pika"}`))

	terminal := NewGenerationWorker(&fakeSubmitter{err: retry.NewFailure(&retry.APIError{StatusCode: http.StatusBadRequest}, 1)}, nil)
	if err := terminal.ProcessTask(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("terminal err = %v", err)
	}

	transient := NewGenerationWorker(&fakeSubmitter{err: retry.NewFailure(&retry.APIError{StatusCode: http.StatusBadGateway}, 3)}, nil)
	err := transient.ProcessTask(context.Background(), task)
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Errorf("transient err = %v", err)
	}
}
