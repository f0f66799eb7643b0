package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"wacrm/internal/models"
)

type MediaRepository interface {
	GetMediaByID(ctx context.Context, id string) (*models.Media, error)
	UpdateFeedback(ctx context.Context, id, feedback string) error
}

type mediaRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMediaRepository(db *sqlx.DB, logger *zap.Logger) MediaRepository {
	return &mediaRepository{db: db, logger: logger}
}

func (r *mediaRepository) GetMediaByID(ctx context.Context, id string) (*models.Media, error) {
	var media models.Media
	query := `SELECT id, message_id, media_index, media_url, media_content_type, ai_analysis, ai_feedback, created_at
	          FROM whatsapp_message_media WHERE id = $1`
	err := r.db.GetContext(ctx, &media, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &media, nil
}

// UpdateFeedback records the operator's thumbs-up/down correction on an AI
// analysis ("positive" or "negative").
func (r *mediaRepository) UpdateFeedback(ctx context.Context, id, feedback string) error {
	query := `UPDATE whatsapp_message_media SET ai_feedback = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, feedback, id)
	return err
}
