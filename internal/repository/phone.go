package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"wacrm/internal/models"
)

type PhoneRepository interface {
	GetAllPhones(ctx context.Context) ([]*models.Phone, error)
	GetPhoneByID(ctx context.Context, id string) (*models.Phone, error)
	CreatePhone(ctx context.Context, phone *models.Phone) error
	UpdatePhone(ctx context.Context, phone *models.Phone) error
	DeletePhone(ctx context.Context, id string) error
	SetDefaultPhone(ctx context.Context, id string) error
}

type phoneRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewPhoneRepository(db *sqlx.DB, logger *zap.Logger) PhoneRepository {
	return &phoneRepository{db: db, logger: logger}
}

func (r *phoneRepository) GetAllPhones(ctx context.Context) ([]*models.Phone, error) {
	var phones []*models.Phone
	query := `SELECT id, name, phone_number, display_name, status, is_default, created_at, updated_at
	          FROM whatsapp_phones ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &phones, query)
	if err != nil {
		return nil, err
	}
	return phones, nil
}

func (r *phoneRepository) GetPhoneByID(ctx context.Context, id string) (*models.Phone, error) {
	var phone models.Phone
	query := `SELECT id, name, phone_number, display_name, status, is_default, created_at, updated_at
	          FROM whatsapp_phones WHERE id = $1`
	err := r.db.GetContext(ctx, &phone, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &phone, nil
}

func (r *phoneRepository) CreatePhone(ctx context.Context, phone *models.Phone) error {
	query := `INSERT INTO whatsapp_phones (name, phone_number, display_name, status, is_default)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`
	return r.db.QueryRowxContext(ctx, query, phone.Name, phone.PhoneNumber, phone.DisplayName,
		phone.Status, phone.IsDefault).Scan(&phone.ID, &phone.CreatedAt, &phone.UpdatedAt)
}

func (r *phoneRepository) UpdatePhone(ctx context.Context, phone *models.Phone) error {
	query := `UPDATE whatsapp_phones
	          SET name = $1, phone_number = $2, display_name = $3, status = $4, updated_at = now()
	          WHERE id = $5`
	_, err := r.db.ExecContext(ctx, query, phone.Name, phone.PhoneNumber, phone.DisplayName,
		phone.Status, phone.ID)
	return err
}

func (r *phoneRepository) DeletePhone(ctx context.Context, id string) error {
	query := `DELETE FROM whatsapp_phones WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// SetDefaultPhone clears the default flag on every other phone before
// setting it on the given one.
func (r *phoneRepository) SetDefaultPhone(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE whatsapp_phones SET is_default = false WHERE id <> $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE whatsapp_phones SET is_default = true, updated_at = now() WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}
