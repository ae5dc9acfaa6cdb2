package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/clipdeck/api/internal/logging"
	"github.com/clipdeck/api/internal/model"
	"github.com/clipdeck/api/internal/retry"
)

// ClipSubmitter submits one clip generation
type ClipSubmitter interface {
	GenerateClip(ctx context.Context, req *model.GenerateClipRequest) (*model.GenerateResponse, error)
}

// GenerationWorker processes queued clip generations
type GenerationWorker struct {
	submitter ClipSubmitter
	logger    *slog.Logger
}

// NewGenerationWorker creates a new generation worker
func NewGenerationWorker(submitter ClipSubmitter, logger *slog.Logger) *GenerationWorker {
	if logger == nil {
		logger = logging.Discard()
	}
	return &GenerationWorker{
		submitter: submitter,
		logger:    logging.WithComponent(logger, "generation_worker"),
	}
}

// ProcessTask submits the clip carried by t. Non-retryable failures skip
// asynq's own retries.
func (w *GenerationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var req model.GenerateClipRequest
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		return fmt.Errorf("failed to unmarshal clip task: %v: %w", err, asynq.SkipRetry)
	}

	log := logging.WithProjectID(w.logger, req.ProjectID).With("clip_id", req.ClipID)
	log.Info("processing clip task")

	resp, err := w.submitter.GenerateClip(ctx, &req)
	if err != nil {
		if f := retry.AsFailure(err); !f.Retryable {
			log.Warn("clip task failed permanently", "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		log.Warn("clip task failed", "error", err)
		return err
	}

	log.Info("clip task submitted", "status", resp.Status, "job_id", resp.JobID)
	return nil
}
