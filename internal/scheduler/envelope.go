package scheduler

import (
	"context"

	"github.com/Ashutoshgit47/ImageWrangler/internal/model"
)

// Kind discriminates the request and response envelope variants exchanged
// with a worker.
type Kind string

const (
	KindProcess  Kind = "PROCESS"
	KindValidate Kind = "VALIDATE"

	KindProcessComplete Kind = "PROCESS_COMPLETE"
	KindProcessError    Kind = "PROCESS_ERROR"
	KindValidateResult  Kind = "VALIDATE_RESULT"
)

// Payload carries a request's inputs across the worker boundary. Payloads
// are handed over wholesale; workers never share pixel memory with the
// coordinator or with each other.
type Payload struct {
	Source   []byte               `json:"source,omitempty"`
	Sources  [][]byte             `json:"sources,omitempty"` // grid merge
	MIMEType string               `json:"mimeType,omitempty"`
	Options  model.ProcessOptions `json:"options"`
}

// Envelope is a request to a worker. The ID round-trips unchanged on the
// matching Response.
type Envelope struct {
	ID      string  `json:"id"`
	Kind    Kind    `json:"kind"`
	Payload Payload `json:"payload"`
}

// Response is a worker's reply.
type Response struct {
	ID      string       `json:"id"`
	Kind    Kind         `json:"kind"`
	Result  []byte       `json:"result,omitempty"`
	IsValid bool         `json:"isValid,omitempty"`
	Format  model.Format `json:"format,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// Handler executes a single request on a worker and produces its response.
// Implementations must be safe for concurrent use: one call runs per worker
// at a time, across up to DefaultSlots workers.
type Handler func(ctx context.Context, env Envelope) Response

// Result is delivered on a request's future channel.
type Result struct {
	Result  []byte
	IsValid bool
	Format  model.Format
	Err     error
}
