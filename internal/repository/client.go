package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"wacrm/internal/models"
)

type ClientRepository interface {
	GetClientByID(ctx context.Context, id string) (*models.Client, error)
	UpdateClient(ctx context.Context, client *models.Client) error
}

type clientRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewClientRepository(db *sqlx.DB, logger *zap.Logger) ClientRepository {
	return &clientRepository{db: db, logger: logger}
}

func (r *clientRepository) GetClientByID(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	query := `SELECT id, phone_number, full_name, status, notes, created_at, updated_at
	          FROM clients WHERE id = $1`
	err := r.db.GetContext(ctx, &client, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) UpdateClient(ctx context.Context, client *models.Client) error {
	query := `UPDATE clients
	          SET full_name = $1, status = $2, notes = $3, updated_at = now()
	          WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, client.FullName, client.Status, client.Notes, client.ID)
	return err
}
