package image

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/Ashutoshgit47/ImageWrangler/internal/api/respond"
	"github.com/Ashutoshgit47/ImageWrangler/internal/model"
	"github.com/Ashutoshgit47/ImageWrangler/internal/repository/image"
	"github.com/Ashutoshgit47/ImageWrangler/internal/security"
	"github.com/Ashutoshgit47/ImageWrangler/internal/validator"
)

// service defines the interface for image-related operations.
type service interface {
	SaveImage(ctx context.Context, filename, mimeType string, data []byte, opts model.ProcessOptions) (uuid.UUID, string, error)
	Process(ctx context.Context, data []byte, mimeType string, opts model.ProcessOptions) ([]byte, model.Format, error)
	Validate(ctx context.Context, data []byte, mimeType string) (bool, model.Format, error)
	Merge(ctx context.Context, sources [][]byte) ([]byte, error)
	GetImage(ctx context.Context, id uuid.UUID) (model.Image, io.ReadCloser, error)
	GetImageMeta(ctx context.Context, id uuid.UUID) (model.Image, error)
	DeleteImage(ctx context.Context, id uuid.UUID) error
}

// Handler provides HTTP handlers for image-related endpoints.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// Upload accepts a multipart image plus a JSON "options" field and queues
// it for asynchronous processing.
func (h *Handler) Upload(c *ginext.Context) {
	data, header, opts, ok := h.readImageForm(c)
	if !ok {
		return
	}

	id, dst, err := h.service.SaveImage(c.Request.Context(), header.Filename, header.Header.Get("Content-Type"), data, opts)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, validator.ErrRejected) || isCallerError(err) {
			status = http.StatusUnprocessableEntity
		}
		zlog.Logger.Err(err).Msg("failed to accept the image")
		respond.Fail(c, status, err)
		return
	}

	respond.Created(c, map[string]interface{}{
		"id":       id,
		"filename": header.Filename,
		"path":     dst,
	})
}

// Process transforms the uploaded image synchronously and returns the
// encoded result in the response body.
func (h *Handler) Process(c *ginext.Context) {
	data, header, opts, ok := h.readImageForm(c)
	if !ok {
		return
	}

	out, format, err := h.service.Process(c.Request.Context(), data, header.Header.Get("Content-Type"), opts)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if !errors.Is(err, validator.ErrRejected) && !isCallerError(err) {
			status = http.StatusInternalServerError
		}
		zlog.Logger.Err(err).Msg("failed to process the image")
		respond.Fail(c, status, err)
		return
	}

	respond.Blob(c, http.StatusOK, format.ContentType(), out)
}

// Validate checks the uploaded bytes without transforming them.
func (h *Handler) Validate(c *ginext.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to retrieve the file"))
		return
	}
	defer file.Close()

	data, err := readCapped(file)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	valid, format, err := h.service.Validate(c.Request.Context(), data, header.Header.Get("Content-Type"))
	result := map[string]interface{}{"valid": valid}
	if valid {
		result["format"] = format
	} else if err != nil {
		result["reason"] = err.Error()
	}

	respond.OK(c, result)
}

// Merge composites all uploaded images into a single grid image.
func (h *Handler) Merge(c *ginext.Context) {
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("parse multipart form failed: %v", err))
		return
	}

	files := c.Request.MultipartForm.File["images"]
	if len(files) == 0 {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("images field is required"))
		return
	}

	sources := make([][]byte, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to open %s: %v", fh.Filename, err))
			return
		}
		data, err := readCapped(f)
		f.Close()
		if err != nil {
			respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to read %s: %v", fh.Filename, err))
			return
		}
		sources = append(sources, data)
	}

	out, err := h.service.Merge(c.Request.Context(), sources)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to merge images")
		respond.Fail(c, http.StatusUnprocessableEntity, err)
		return
	}

	respond.Blob(c, http.StatusOK, model.FormatJPEG.ContentType(), out)
}

// Get serves the image bytes for a given image ID (the processed result
// once available, the original otherwise).
func (h *Handler) Get(c *ginext.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	img, reader, err := h.service.GetImage(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, image.ErrImageNotFound) {
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("image not found"))
			return
		}

		zlog.Logger.Err(err).Msg("failed to get image")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to get image: %v", err))
		return
	}
	defer reader.Close()

	// Disable browser caching to always fetch the latest image.
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")

	contentType := img.Options.OutputFormat.ContentType()
	if img.Status != model.StatusProcessed {
		contentType = img.MIMEType
	}
	c.DataFromReader(http.StatusOK, -1, contentType, reader, nil)
}

// GetMeta returns the job record (status, options, error) without the file.
func (h *Handler) GetMeta(c *ginext.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	img, err := h.service.GetImageMeta(c.Request.Context(), id)
	if err != nil {
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("image not found"))
		return
	}

	respond.OK(c, img)
}

// Delete removes an image by ID.
func (h *Handler) Delete(c *ginext.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteImage(c.Request.Context(), id); err != nil {
		if errors.Is(err, image.ErrImageNotFound) {
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("image not found"))
			return
		}

		zlog.Logger.Err(err).Msg("failed to delete the image")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to delete image: %w", err))
		return
	}

	c.Status(http.StatusNoContent)
}

// readImageForm parses the multipart form shared by Upload and Process:
// an "image" file plus a JSON "options" field.
func (h *Handler) readImageForm(c *ginext.Context) ([]byte, *multipart.FileHeader, model.ProcessOptions, bool) {
	opts := model.DefaultOptions()

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to retrieve the file")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to retrieve the file"))
		return nil, nil, opts, false
	}
	defer file.Close()

	data, err := readCapped(file)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return nil, nil, opts, false
	}

	if optionsJSON := c.PostForm("options"); optionsJSON != "" {
		if err := json.Unmarshal([]byte(optionsJSON), &opts); err != nil {
			zlog.Logger.Err(err).Msg("failed to unmarshal the options")
			respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to unmarshal the options"))
			return nil, nil, opts, false
		}
	}

	return data, header, opts, true
}

// readCapped reads at most the file-size limit plus one byte so oversized
// uploads fail validation instead of exhausting memory.
func readCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(security.MaxFileSizeBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %v", err)
	}
	return data, nil
}

func parseID(c *ginext.Context) (uuid.UUID, bool) {
	idStr := c.Param("id")
	if idStr == "" {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("missing id"))
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return uuid.Nil, false
	}

	return id, true
}

// isCallerError reports option combinations the client must fix.
func isCallerError(err error) bool {
	return errors.Is(err, model.ErrUnknownFormat) ||
		errors.Is(err, model.ErrInvalidQuality) ||
		errors.Is(err, model.ErrInvalidCrop) ||
		errors.Is(err, model.ErrTargetSizeLossless)
}
