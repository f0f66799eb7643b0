package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"wacrm/internal/models"
)

type MessageRepository interface {
	GetMessagesByConversation(ctx context.Context, conversationID string, limit int) ([]*models.Message, error)
	GetMessagesByClient(ctx context.Context, clientID, phoneID, status string) ([]*models.Message, error)
	GetMessagesWithMedia(ctx context.Context, conversationID string) ([]*models.Message, error)
	GetConversationIDByMessage(ctx context.Context, messageID string) (string, error)
}

type messageRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMessageRepository(db *sqlx.DB, logger *zap.Logger) MessageRepository {
	return &messageRepository{db: db, logger: logger}
}

const messageColumns = `id, conversation_id, phone_id, from_number, to_number, body, direction,
	message_type, status, num_media, read_at, created_at`

// GetMessagesByConversation returns the newest messages of a conversation in
// ascending time order. The query fetches descending with a limit and the
// result is reversed, so the limit trims the oldest messages, not the newest.
func (r *messageRepository) GetMessagesByConversation(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	var messages []*models.Message
	query := `SELECT ` + messageColumns + `
	          FROM whatsapp_messages
	          WHERE conversation_id = $1
	          ORDER BY created_at DESC
	          LIMIT $2`
	err := r.db.SelectContext(ctx, &messages, query, conversationID, limit)
	if err != nil {
		return nil, err
	}
	reverseMessages(messages)
	if err := r.attachMedia(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetMessagesByClient returns the union of messages across every
// conversation the client has with the given phone and status, ascending.
func (r *messageRepository) GetMessagesByClient(ctx context.Context, clientID, phoneID, status string) ([]*models.Message, error) {
	var messages []*models.Message
	query := `SELECT m.id, m.conversation_id, m.phone_id, m.from_number, m.to_number, m.body, m.direction,
	                 m.message_type, m.status, m.num_media, m.read_at, m.created_at
	          FROM whatsapp_messages m
	          JOIN whatsapp_conversations cv ON cv.id = m.conversation_id
	          WHERE cv.client_id = $1 AND cv.phone_id = $2 AND cv.status = $3
	          ORDER BY m.created_at ASC`
	err := r.db.SelectContext(ctx, &messages, query, clientID, phoneID, status)
	if err != nil {
		return nil, err
	}
	if err := r.attachMedia(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetMessagesWithMedia returns only the messages of a conversation that have
// at least one media row, with media attached. Classification Sync scans
// these for AI analysis payloads.
func (r *messageRepository) GetMessagesWithMedia(ctx context.Context, conversationID string) ([]*models.Message, error) {
	var messages []*models.Message
	query := `SELECT ` + messageColumns + `
	          FROM whatsapp_messages
	          WHERE conversation_id = $1
	            AND EXISTS (SELECT 1 FROM whatsapp_message_media wm WHERE wm.message_id = whatsapp_messages.id)
	          ORDER BY created_at ASC`
	err := r.db.SelectContext(ctx, &messages, query, conversationID)
	if err != nil {
		return nil, err
	}
	if err := r.attachMedia(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetConversationIDByMessage resolves the owning conversation of a message,
// used when a media-analysis event only carries the message id.
func (r *messageRepository) GetConversationIDByMessage(ctx context.Context, messageID string) (string, error) {
	var conversationID string
	query := `SELECT conversation_id FROM whatsapp_messages WHERE id = $1`
	err := r.db.GetContext(ctx, &conversationID, query, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return conversationID, nil
}

func (r *messageRepository) attachMedia(ctx context.Context, messages []*models.Message) error {
	ids := make([]string, 0, len(messages))
	byID := make(map[string]*models.Message, len(messages))
	for _, m := range messages {
		if m.NumMedia > 0 {
			ids = append(ids, m.ID)
			byID[m.ID] = m
		}
	}
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`SELECT id, message_id, media_index, media_url, media_content_type, ai_analysis, ai_feedback, created_at
	                             FROM whatsapp_message_media
	                             WHERE message_id IN (?)
	                             ORDER BY message_id, media_index`, ids)
	if err != nil {
		return err
	}

	var media []models.Media
	if err := r.db.SelectContext(ctx, &media, r.db.Rebind(query), args...); err != nil {
		return err
	}
	for i := range media {
		if msg, ok := byID[media[i].MessageID]; ok {
			msg.Media = append(msg.Media, media[i])
		}
	}
	return nil
}

func reverseMessages(messages []*models.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
