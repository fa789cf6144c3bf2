package image

import (
	"context"

	"github.com/Ashutoshgit47/ImageWrangler/internal/model"
	"github.com/Ashutoshgit47/ImageWrangler/internal/processor"
	"github.com/Ashutoshgit47/ImageWrangler/internal/scheduler"
	"github.com/Ashutoshgit47/ImageWrangler/internal/validator"
)

// ExecHandler bridges worker envelopes to the transform engine and the
// validator. It runs on scheduler workers, so it must not touch any state
// beyond the request payload it was handed.
func ExecHandler(engine *processor.Engine, v *validator.Validator) scheduler.Handler {
	return func(_ context.Context, env scheduler.Envelope) scheduler.Response {
		switch env.Kind {
		case scheduler.KindValidate:
			format, err := v.Validate(env.Payload.Source, env.Payload.MIMEType)
			resp := scheduler.Response{
				ID:      env.ID,
				Kind:    scheduler.KindValidateResult,
				IsValid: err == nil,
				Format:  format,
			}
			if err != nil {
				resp.Error = err.Error()
			}
			return resp

		case scheduler.KindProcess:
			var out []byte
			var err error
			if len(env.Payload.Sources) > 0 {
				out, err = engine.Merge(env.Payload.Sources)
			} else {
				out, err = engine.Process(env.Payload.Source, env.Payload.Options)
			}
			if err != nil {
				return scheduler.Response{ID: env.ID, Kind: scheduler.KindProcessError, Error: err.Error()}
			}
			return scheduler.Response{
				ID:     env.ID,
				Kind:   scheduler.KindProcessComplete,
				Result: out,
				Format: mergedFormat(env.Payload),
			}

		default:
			return scheduler.Response{
				ID:    env.ID,
				Kind:  scheduler.KindProcessError,
				Error: "unknown request kind: " + string(env.Kind),
			}
		}
	}
}

// mergedFormat reports the output format of a PROCESS response. Grid
// merges always export JPEG.
func mergedFormat(p scheduler.Payload) model.Format {
	if len(p.Sources) > 0 {
		return model.FormatJPEG
	}
	opts := p.Options
	opts.Normalize()
	return opts.OutputFormat
}
