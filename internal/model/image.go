package model

import (
	"time"

	"github.com/google/uuid"
)

// Image statuses as stored in the repository.
const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// Image represents an image processing job that flows through the queue.
// A failed job keeps its human-readable error so one bad file never blocks
// the rest of a batch.
type Image struct {
	ID         uuid.UUID      `json:"id"`
	Filename   string         `json:"filename"`
	Path       string         `json:"file_path"`
	ResultPath string         `json:"result_path,omitempty"`
	MIMEType   string         `json:"mime_type"`
	Options    ProcessOptions `json:"options"`
	Status     string         `json:"status"` // pending / processed / failed
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
