package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"organ/internal/config"
	"organ/internal/logging"
	"organ/internal/media"
	"organ/internal/recognizer"
	"organ/internal/services"
	"organ/internal/stage"
	"organ/internal/store"
	"organ/internal/transfer"
)

// RecognizeStage identifies a job's source file against the catalog.
// Results below the configured confidence floor park the job for review
// instead of flowing on to transfer.
type RecognizeStage struct {
	svc       *recognizer.Service
	threshold int
	logger    *slog.Logger
}

// NewRecognizeStage constructs the recognition stage handler.
func NewRecognizeStage(svc *recognizer.Service, cfg *config.Config, logger *slog.Logger) *RecognizeStage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RecognizeStage{
		svc:       svc,
		threshold: media.Confidence(cfg.Recognizer.MinConfidence).Rank(),
		logger:    logger.With(logging.String(logging.FieldComponent, "recognize-stage")),
	}
}

func (s *RecognizeStage) Prepare(ctx context.Context, job *store.Job) error {
	job.SetProgress("Recognizing", "Looking up metadata", 0)
	return nil
}

func (s *RecognizeStage) Execute(ctx context.Context, job *store.Job) error {
	file := media.FileInfo{
		Name:    job.SourceName,
		Path:    job.SourcePath,
		Size:    job.Size,
		Ext:     path.Ext(job.SourceName),
		FileID:  job.FileID,
		Backend: job.Backend,
	}

	result, err := s.svc.RecognizeSingle(ctx, file, media.TypeUnknown)
	if err != nil {
		return err
	}

	raw, err := stage.EncodeResult(result)
	if err != nil {
		return err
	}
	job.ResultJSON = raw

	switch {
	case result.Info == nil:
		job.Status = store.JobReview
		job.ReviewReason = "no catalog match"
		job.SetProgress("Review", "Could not identify the file", 100)
	case result.Confidence.Rank() < s.threshold:
		job.Status = store.JobReview
		job.ReviewReason = fmt.Sprintf("confidence %s below threshold", result.Confidence)
		job.SetProgress("Review", fmt.Sprintf("Matched %q with %s confidence", result.Info.Title, result.Confidence), 100)
	default:
		job.SetProgress("Recognized", result.Info.Title, 100)
	}
	return nil
}

func (s *RecognizeStage) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("recognizer")
}

// TransferStage routes a recognized job to its destination.
type TransferStage struct {
	svc    *transfer.Service
	logger *slog.Logger
}

// NewTransferStage constructs the transfer stage handler.
func NewTransferStage(svc *transfer.Service, logger *slog.Logger) *TransferStage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TransferStage{
		svc:    svc,
		logger: logger.With(logging.String(logging.FieldComponent, "transfer-stage")),
	}
}

func (s *TransferStage) Prepare(ctx context.Context, job *store.Job) error {
	job.SetProgress("Transferring", "Moving file into place", 0)
	return nil
}

func (s *TransferStage) Execute(ctx context.Context, job *store.Job) error {
	result, err := stage.ParseResult(job.ResultJSON)
	if err != nil {
		return err
	}

	res, err := s.svc.Execute(ctx, []*media.RecognitionResult{result}, job.Backend, transfer.Options{
		JobID:        job.ID,
		RuleOverride: job.RuleID,
	})
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		detail := "transfer failed"
		if len(res.Errors) > 0 {
			detail = res.Errors[0].Error
		}
		return services.Wrap(services.ErrTransient, "transferrer", "move", detail, nil)
	}
	if res.Transferred == 0 {
		job.Status = store.JobReview
		job.ReviewReason = "no matching transfer rule"
		job.SetProgress("Review", "No rule routes this file", 100)
		return nil
	}

	// Execute fills the routing fields on the result in place.
	job.TargetPath = result.TargetPath
	job.RuleID = result.MatchedRuleID
	if raw, encErr := stage.EncodeResult(result); encErr == nil {
		job.ResultJSON = raw
	}
	job.SetProgress("Completed", result.TargetPath, 100)
	return nil
}

func (s *TransferStage) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("transferrer")
}
