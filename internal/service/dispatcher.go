package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/clipdeck/api/internal/logging"
	"github.com/clipdeck/api/internal/model"
	"github.com/clipdeck/api/internal/retry"
)

const (
	TaskTypeGenerateClip = "generation:clip"
	QueueGeneration      = "generation"
)

// Dispatcher fans a batch of clip submissions out and reports one result
// per request, in request order.
type Dispatcher interface {
	Dispatch(ctx context.Context, reqs []*model.GenerateClipRequest) []model.SceneGenerationResult
}

// SubmitFunc submits a single clip
type SubmitFunc func(ctx context.Context, req *model.GenerateClipRequest) (*model.GenerateResponse, error)

// InlineDispatcher submits in-process with at most limit requests in flight.
type InlineDispatcher struct {
	submit SubmitFunc
	limit  int
}

func NewInlineDispatcher(submit SubmitFunc, limit int) *InlineDispatcher {
	if limit <= 0 {
		limit = 1
	}
	return &InlineDispatcher{submit: submit, limit: limit}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, reqs []*model.GenerateClipRequest) []model.SceneGenerationResult {
	results := make([]model.SceneGenerationResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(d.limit)
	for i, req := range reqs {
		g.Go(func() error {
			resp, err := d.submit(ctx, req)
			results[i] = sceneResult(req, resp, err)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func sceneResult(req *model.GenerateClipRequest, resp *model.GenerateResponse, err error) model.SceneGenerationResult {
	out := model.SceneGenerationResult{SceneID: req.SceneID, ClipID: req.ClipID}
	if err != nil {
		f := retry.AsFailure(err)
		out.Status = model.JobStatusFailed
		out.Error = f.UserMessage
		out.Retryable = f.Retryable
		return out
	}
	out.Status = resp.Status
	out.JobID = resp.JobID
	if resp.ClipID != "" {
		out.ClipID = resp.ClipID
	}
	return out
}

// QueueDispatcher enqueues one asynq task per clip. The submissions are
// performed by GenerationWorker.
type QueueDispatcher struct {
	client *asynq.Client
	logger *slog.Logger
}

func NewQueueDispatcher(client *asynq.Client, logger *slog.Logger) *QueueDispatcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &QueueDispatcher{client: client, logger: logging.WithComponent(logger, "queue_dispatcher")}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, reqs []*model.GenerateClipRequest) []model.SceneGenerationResult {
	results := make([]model.SceneGenerationResult, len(reqs))
	for i, req := range reqs {
		results[i] = model.SceneGenerationResult{SceneID: req.SceneID, ClipID: req.ClipID, Status: model.JobStatusQueued}

		task, err := NewGenerateClipTask(req)
		if err == nil {
			_, err = d.client.EnqueueContext(ctx, task,
				asynq.Queue(QueueGeneration),
				asynq.MaxRetry(2),
				asynq.Retention(24*time.Hour),
			)
		}
		if err != nil {
			d.logger.Error("failed to enqueue clip", "clip_id", req.ClipID, "error", err)
			results[i].Status = model.JobStatusFailed
			results[i].Error = retry.MessageServer
			results[i].Retryable = true
		}
	}
	return results
}

// NewGenerateClipTask wraps a clip submission as an asynq task
func NewGenerateClipTask(req *model.GenerateClipRequest) (*asynq.Task, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal clip task: %w", err)
	}
	return asynq.NewTask(TaskTypeGenerateClip, data), nil
}
