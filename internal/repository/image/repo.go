package image

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/Ashutoshgit47/ImageWrangler/internal/model"
)

var ErrImageNotFound = errors.New("image not found")

// Repository provides CRUD operations for image job records.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// SaveImage inserts a new image record and returns its UUID.
func (r *Repository) SaveImage(ctx context.Context, img model.Image) (uuid.UUID, error) {
	query := `
		INSERT INTO images (filename, path, mime_type, options, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
   `

	optionsJSON, err := json.Marshal(img.Options)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal options: %w", err)
	}

	var id uuid.UUID
	err = r.db.QueryRowContext(
		ctx, query, img.Filename, img.Path, img.MIMEType, optionsJSON, img.Status,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("save: failed to save image: %w", err)
	}

	return id, nil
}

// GetImage retrieves an image record by ID.
func (r *Repository) GetImage(ctx context.Context, id uuid.UUID) (model.Image, error) {
	query := `
		SELECT filename, path, result_path, mime_type, options, status, error, created_at
		FROM images
		WHERE id = $1
    `

	var img model.Image
	var optionsBytes []byte
	var resultPath, errMsg sql.NullString

	err := r.db.QueryRowContext(
		ctx, query, id,
	).Scan(&img.Filename, &img.Path, &resultPath, &img.MIMEType, &optionsBytes, &img.Status, &errMsg, &img.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Image{}, ErrImageNotFound
		}

		return model.Image{}, fmt.Errorf("get: failed to get image: %w", err)
	}

	if err := json.Unmarshal(optionsBytes, &img.Options); err != nil {
		return model.Image{}, fmt.Errorf("get: failed to unmarshal options: %w", err)
	}

	img.ID = id
	img.ResultPath = resultPath.String
	img.Error = errMsg.String

	return img, nil
}

// SetPath records where the original blob landed. The record is inserted
// before the blob so the object name can embed the id; this closes the loop.
func (r *Repository) SetPath(ctx context.Context, id uuid.UUID, path string) error {
	query := `
		UPDATE images
		SET path = $1
		WHERE id = $2
    `

	res, err := r.db.ExecContext(ctx, query, path, id)
	if err != nil {
		return fmt.Errorf("update: failed to set path: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrImageNotFound
	}

	return nil
}

// UpdateImage records the outcome of processing: result path and status on
// success, status and a human-readable message on failure.
func (r *Repository) UpdateImage(ctx context.Context, id uuid.UUID, resultPath, status, errMsg string) error {
	query := `
		UPDATE images
		SET result_path = $1, status = $2, error = $3
		WHERE id = $4
    `

	res, err := r.db.ExecContext(ctx, query, resultPath, status, errMsg, id)
	if err != nil {
		return fmt.Errorf("update: failed to update image: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrImageNotFound
	}

	return nil
}

// DeleteImage deletes an image record by ID.
func (r *Repository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM images WHERE id = $1
    `

	rows, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete: failed to delete image: %w", err)
	}

	n, err := rows.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: failed to get number of rows affected: %w", err)
	}
	if n == 0 {
		return ErrImageNotFound
	}

	return nil
}
