package image

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/Ashutoshgit47/ImageWrangler/internal/model"
)

// service defines the interface for processing uploaded images.
type service interface {
	ProcessImage(ctx context.Context, img model.Image) (uuid.UUID, error)
}

// UploadedHandler handles Kafka messages for newly uploaded images.
type UploadedHandler struct {
	service service
}

// NewUploadedHandler creates a new handler with the given service.
func NewUploadedHandler(s service) *UploadedHandler {
	return &UploadedHandler{service: s}
}

// Handle processes one uploaded-image event: it unmarshals the job and
// hands it to the service. Transform failures are recorded on the job by
// the service itself; an error returned here means the event could not be
// handled at all and should be logged and skipped.
func (h *UploadedHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var img model.Image
	if err := json.Unmarshal(msg.Value, &img); err != nil {
		return fmt.Errorf("unmarshal job: %w", err)
	}

	id, err := h.service.ProcessImage(ctx, img)
	if err != nil {
		return fmt.Errorf("process job: %w", err)
	}

	zlog.Logger.Info().Str("id", id.String()).Msg("image processed")

	return nil
}
