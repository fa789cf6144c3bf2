package image

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/Ashutoshgit47/ImageWrangler/internal/model"
	"github.com/Ashutoshgit47/ImageWrangler/internal/scheduler"
	"github.com/Ashutoshgit47/ImageWrangler/internal/validator"
)

// Object-storage subdirectories for original uploads and processed results.
const (
	subdirOriginal  = "original"
	subdirProcessed = "processed"
)

// fileStorage defines the interface for storing blobs (e.g., MinIO).
type fileStorage interface {
	Save(ctx context.Context, subdir, id, filename, contentType string, data []byte) (string, error)
	Load(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// producer defines the interface for enqueueing jobs into a message broker.
type producer interface {
	Produce(ctx context.Context, img model.Image) error
}

// repository defines the interface for persisting image job records.
type repository interface {
	SaveImage(ctx context.Context, img model.Image) (uuid.UUID, error)
	SetPath(ctx context.Context, id uuid.UUID, path string) error
	GetImage(ctx context.Context, id uuid.UUID) (model.Image, error)
	UpdateImage(ctx context.Context, id uuid.UUID, resultPath, status, errMsg string) error
	DeleteImage(ctx context.Context, id uuid.UUID) error
}

// jobScheduler defines the interface for the bounded-concurrency scheduler.
type jobScheduler interface {
	Submit(env scheduler.Envelope) <-chan scheduler.Result
}

// Service orchestrates validation, scheduling, transformation, and storage
// of images.
type Service struct {
	fileStorage fileStorage
	producer    producer
	repo        repository
	scheduler   jobScheduler
	validator   *validator.Validator
}

// NewService creates a Service wired to its collaborators.
func NewService(fs fileStorage, p producer, sched jobScheduler, repo repository, v *validator.Validator) *Service {
	return &Service{
		fileStorage: fs,
		producer:    p,
		repo:        repo,
		scheduler:   sched,
		validator:   v,
	}
}

// SaveImage accepts an upload for asynchronous processing: it quick-checks
// the bytes, stores the original, records the job as pending, and enqueues
// a processing event. Returns the new image id and the stored path.
func (s *Service) SaveImage(ctx context.Context, filename, mimeType string, data []byte, opts model.ProcessOptions) (uuid.UUID, string, error) {
	// Options are validated exactly as submitted. The HTTP layer fills
	// defaults for absent fields, so an explicit zero quality is a caller
	// error, not a request for the default.
	if err := opts.Validate(); err != nil {
		return uuid.Nil, "", fmt.Errorf("upload: %w", err)
	}
	if _, err := s.validator.QuickValidate(data, mimeType); err != nil {
		return uuid.Nil, "", fmt.Errorf("upload: %w", err)
	}

	img := model.Image{
		Filename:  filename,
		MIMEType:  mimeType,
		Options:   opts,
		Status:    model.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	// Record first so the storage path can embed the stable id.
	id, err := s.repo.SaveImage(ctx, img)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("upload: failed to save record: %w", err)
	}
	img.ID = id

	dst, err := s.fileStorage.Save(ctx, subdirOriginal, id.String(), filename, mimeType, data)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("upload: failed to save file: %w", err)
	}
	img.Path = dst

	if err := s.repo.SetPath(ctx, id, dst); err != nil {
		return uuid.Nil, "", fmt.Errorf("upload: failed to record path: %w", err)
	}

	if err := s.producer.Produce(ctx, img); err != nil {
		return uuid.Nil, "", fmt.Errorf("upload: failed to enqueue job: %w", err)
	}

	return id, dst, nil
}

// ProcessImage runs one queued job end to end: load the original, run the
// transform on a worker slot, store the result, and record the outcome.
// Per-job failures mark the record failed with a human-readable message
// and are not returned as errors, so one bad file never stalls the queue.
func (s *Service) ProcessImage(ctx context.Context, img model.Image) (uuid.UUID, error) {
	reader, err := s.fileStorage.Load(ctx, img.Path)
	if err != nil {
		return uuid.Nil, fmt.Errorf("process: failed to load original: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return uuid.Nil, fmt.Errorf("process: failed to read original: %w", err)
	}

	env := scheduler.Envelope{
		ID:   img.ID.String(),
		Kind: scheduler.KindProcess,
		Payload: scheduler.Payload{
			Source:   data,
			MIMEType: img.MIMEType,
			Options:  img.Options,
		},
	}

	res, err := s.await(ctx, s.scheduler.Submit(env))
	if err != nil {
		return uuid.Nil, fmt.Errorf("process: %w", err)
	}
	if res.Err != nil {
		zlog.Logger.Warn().Str("id", img.ID.String()).Err(res.Err).Msg("transform failed")
		if err := s.repo.UpdateImage(ctx, img.ID, "", model.StatusFailed, res.Err.Error()); err != nil {
			return uuid.Nil, fmt.Errorf("process: failed to record failure: %w", err)
		}
		return img.ID, nil
	}

	resultName := img.Filename + "." + string(res.Format)
	dst, err := s.fileStorage.Save(ctx, subdirProcessed, img.ID.String(), resultName, res.Format.ContentType(), res.Result)
	if err != nil {
		return uuid.Nil, fmt.Errorf("process: failed to save result: %w", err)
	}

	if err := s.repo.UpdateImage(ctx, img.ID, dst, model.StatusProcessed, ""); err != nil {
		return uuid.Nil, fmt.Errorf("process: failed to update record: %w", err)
	}

	return img.ID, nil
}

// Process transforms data synchronously on a worker slot and returns the
// encoded result.
func (s *Service) Process(ctx context.Context, data []byte, mimeType string, opts model.ProcessOptions) ([]byte, model.Format, error) {
	// Validated as submitted, same as SaveImage.
	if err := opts.Validate(); err != nil {
		return nil, model.FormatUnknown, err
	}
	if _, err := s.validator.QuickValidate(data, mimeType); err != nil {
		return nil, model.FormatUnknown, err
	}

	env := scheduler.Envelope{
		ID:   uuid.NewString(),
		Kind: scheduler.KindProcess,
		Payload: scheduler.Payload{
			Source:   data,
			MIMEType: mimeType,
			Options:  opts,
		},
	}

	res, err := s.await(ctx, s.scheduler.Submit(env))
	if err != nil {
		return nil, model.FormatUnknown, err
	}
	if res.Err != nil {
		return nil, model.FormatUnknown, res.Err
	}
	return res.Result, res.Format, nil
}

// Validate runs the full adversarial-input check on a worker slot.
func (s *Service) Validate(ctx context.Context, data []byte, mimeType string) (bool, model.Format, error) {
	env := scheduler.Envelope{
		ID:   uuid.NewString(),
		Kind: scheduler.KindValidate,
		Payload: scheduler.Payload{
			Source:   data,
			MIMEType: mimeType,
		},
	}

	res, err := s.await(ctx, s.scheduler.Submit(env))
	if err != nil {
		return false, model.FormatUnknown, err
	}
	if !res.IsValid {
		return false, model.FormatUnknown, res.Err
	}
	return true, res.Format, nil
}

// Merge composites the given source images into one grid image.
func (s *Service) Merge(ctx context.Context, sources [][]byte) ([]byte, error) {
	env := scheduler.Envelope{
		ID:   uuid.NewString(),
		Kind: scheduler.KindProcess,
		Payload: scheduler.Payload{
			Sources: sources,
		},
	}

	res, err := s.await(ctx, s.scheduler.Submit(env))
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Result, nil
}

// GetImageMeta returns the job record without touching the stored blobs.
func (s *Service) GetImageMeta(ctx context.Context, id uuid.UUID) (model.Image, error) {
	return s.repo.GetImage(ctx, id)
}

// GetImage returns the job record and, when processing succeeded, a reader
// over the processed bytes (the original otherwise).
func (s *Service) GetImage(ctx context.Context, id uuid.UUID) (model.Image, io.ReadCloser, error) {
	img, err := s.repo.GetImage(ctx, id)
	if err != nil {
		return model.Image{}, nil, err
	}

	path := img.Path
	if img.Status == model.StatusProcessed && img.ResultPath != "" {
		path = img.ResultPath
	}

	reader, err := s.fileStorage.Load(ctx, path)
	if err != nil {
		return model.Image{}, nil, fmt.Errorf("get: failed to load image: %w", err)
	}

	return img, reader, nil
}

// DeleteImage removes the record and any stored blobs.
func (s *Service) DeleteImage(ctx context.Context, id uuid.UUID) error {
	img, err := s.repo.GetImage(ctx, id)
	if err != nil {
		return err
	}

	if img.Path != "" {
		if err := s.fileStorage.Delete(ctx, img.Path); err != nil {
			zlog.Logger.Warn().Err(err).Str("path", img.Path).Msg("failed to delete original blob")
		}
	}
	if img.ResultPath != "" {
		if err := s.fileStorage.Delete(ctx, img.ResultPath); err != nil {
			zlog.Logger.Warn().Err(err).Str("path", img.ResultPath).Msg("failed to delete result blob")
		}
	}

	return s.repo.DeleteImage(ctx, id)
}

// await blocks on a request future or the caller's context, whichever
// resolves first.
func (s *Service) await(ctx context.Context, ch <-chan scheduler.Result) (scheduler.Result, error) {
	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return scheduler.Result{}, ctx.Err()
	}
}
