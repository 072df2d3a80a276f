package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"nfseBack/internal/models"
)

type CertificateRepository struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewCertificateRepository(db *sql.DB, dialect Dialect) *CertificateRepository {
	return &CertificateRepository{DB: db, Dialect: dialect}
}

// FindByUserID returns the keystore record of a user, or models.ErrCertificateNotFound.
func (r *CertificateRepository) FindByUserID(ctx context.Context, userID int) (models.Certificate, error) {
	q := r.Dialect.rebind(`SELECT id, user_id, certificate_path, certificate_password, created_at
		FROM certificates WHERE user_id = ? ORDER BY id DESC LIMIT 1`)
	var c models.Certificate
	err := r.DB.QueryRowContext(ctx, q, userID).Scan(&c.ID, &c.UserID, &c.CertificatePath, &c.CertificatePassword, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Certificate{}, models.ErrCertificateNotFound
	}
	if err != nil {
		return models.Certificate{}, fmt.Errorf("find certificate for user %d: %w", userID, err)
	}
	return c, nil
}
