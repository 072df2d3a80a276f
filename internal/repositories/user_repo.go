package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"nfseBack/internal/models"
)

type UserRepository struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewUserRepository(db *sql.DB, dialect Dialect) *UserRepository {
	return &UserRepository{DB: db, Dialect: dialect}
}

// FindByID returns models.ErrUserNotFound when the user does not exist.
func (r *UserRepository) FindByID(ctx context.Context, id int) (models.User, error) {
	q := r.Dialect.rebind(`SELECT id, identification, cpf_cnpj, municipal_state_registration, address, address_number,
		address_complement, address_neighborhood, address_municipal_code, address_city, address_state,
		address_zip_code, phone_number, email, username FROM users WHERE id = ? LIMIT 1`)

	var (
		u                                          models.User
		registration, number, complement, district sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Identification, &u.CpfCnpj, &registration, &u.Address,
		&number, &complement, &district, &u.AddressMunicipalCode, &u.AddressCity, &u.AddressState,
		&u.AddressZipCode, &u.PhoneNumber, &u.Email, &u.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user %d: %w", id, err)
	}
	u.MunicipalStateRegistration = nullString(registration)
	u.AddressNumber = nullString(number)
	u.AddressComplement = nullString(complement)
	u.AddressNeighborhood = nullString(district)
	return u, nil
}
