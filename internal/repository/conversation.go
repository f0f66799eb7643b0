package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"wacrm/internal/models"
)

type ConversationRepository interface {
	GetOpenConversations(ctx context.Context, phoneID string) ([]*models.Conversation, error)
	GetClosedConversations(ctx context.Context, phoneID string, limit int) ([]*models.Conversation, error)
	GetConversationByID(ctx context.Context, id string) (*models.Conversation, error)
	UpdateClassification(ctx context.Context, id, classification string) error
	CloseConversation(ctx context.Context, id, reason string, closedBy *string) error
	ReopenConversation(ctx context.Context, id string) error
	MarkConversationRead(ctx context.Context, id string) error
}

type conversationRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewConversationRepository(db *sqlx.DB, logger *zap.Logger) ConversationRepository {
	return &conversationRepository{db: db, logger: logger}
}

// conversationRow flattens the client join; sqlx scans the aliased client
// columns next to the conversation's own.
type conversationRow struct {
	models.Conversation
	CID          *string `db:"c_id"`
	CPhoneNumber *string `db:"c_phone_number"`
	CFullName    *string `db:"c_full_name"`
	CStatus      *string `db:"c_status"`
}

const conversationSelect = `
	SELECT
		cv.id, cv.phone_id, cv.client_id, cv.status, cv.last_message, cv.last_message_at,
		cv.unread_count, cv.classification, cv.window_expires_at,
		cv.closed_at, cv.closed_reason, cv.closed_by, cv.created_at, cv.updated_at,
		cl.id AS c_id, cl.phone_number AS c_phone_number, cl.full_name AS c_full_name, cl.status AS c_status
	FROM whatsapp_conversations cv
	LEFT JOIN clients cl ON cl.id = cv.client_id`

func (row *conversationRow) toModel() *models.Conversation {
	conv := row.Conversation
	if row.CID != nil {
		client := &models.Client{ID: *row.CID, FullName: row.CFullName}
		if row.CPhoneNumber != nil {
			client.PhoneNumber = *row.CPhoneNumber
		}
		if row.CStatus != nil {
			client.Status = *row.CStatus
		}
		conv.Client = client
	}
	return &conv
}

func (r *conversationRepository) GetOpenConversations(ctx context.Context, phoneID string) ([]*models.Conversation, error) {
	var rows []conversationRow
	query := conversationSelect + `
	WHERE cv.phone_id = $1 AND cv.status = $2
	ORDER BY cv.last_message_at DESC NULLS LAST`
	err := r.db.SelectContext(ctx, &rows, query, phoneID, models.ConversationOpen)
	if err != nil {
		return nil, err
	}
	return toConversations(rows), nil
}

func (r *conversationRepository) GetClosedConversations(ctx context.Context, phoneID string, limit int) ([]*models.Conversation, error) {
	var rows []conversationRow
	query := conversationSelect + `
	WHERE cv.phone_id = $1 AND cv.status = $2
	ORDER BY cv.closed_at DESC NULLS LAST
	LIMIT $3`
	err := r.db.SelectContext(ctx, &rows, query, phoneID, models.ConversationClosed, limit)
	if err != nil {
		return nil, err
	}
	return toConversations(rows), nil
}

// GetConversationByID is the supplementary fetch: it resolves the client
// join a realtime payload never carries.
func (r *conversationRepository) GetConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	var row conversationRow
	query := conversationSelect + ` WHERE cv.id = $1`
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toModel(), nil
}

func (r *conversationRepository) UpdateClassification(ctx context.Context, id, classification string) error {
	query := `UPDATE whatsapp_conversations SET classification = $1, updated_at = now() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, classification, id)
	return err
}

func (r *conversationRepository) CloseConversation(ctx context.Context, id, reason string, closedBy *string) error {
	query := `UPDATE whatsapp_conversations
	          SET status = $1, closed_at = now(), closed_reason = $2, closed_by = $3, updated_at = now()
	          WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, models.ConversationClosed, reason, closedBy, id)
	return err
}

func (r *conversationRepository) ReopenConversation(ctx context.Context, id string) error {
	query := `UPDATE whatsapp_conversations
	          SET status = $1, closed_at = NULL, closed_reason = NULL, closed_by = NULL, updated_at = now()
	          WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, models.ConversationOpen, id)
	return err
}

// MarkConversationRead stamps every unread message and resets the unread
// counter, mirroring what the dashboard does when a chat is opened.
func (r *conversationRepository) MarkConversationRead(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE whatsapp_messages SET read_at = now() WHERE conversation_id = $1 AND read_at IS NULL`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE whatsapp_conversations SET unread_count = 0, updated_at = now() WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func toConversations(rows []conversationRow) []*models.Conversation {
	conversations := make([]*models.Conversation, 0, len(rows))
	for i := range rows {
		conversations = append(conversations, rows[i].toModel())
	}
	return conversations
}
