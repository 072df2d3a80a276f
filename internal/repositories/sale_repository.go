package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"nfseBack/internal/models"
)

// errorMessageMaxLen matches sales.error_message varchar(255).
const errorMessageMaxLen = 255

type SaleRepository struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewSaleRepository(db *sql.DB, dialect Dialect) *SaleRepository {
	return &SaleRepository{DB: db, Dialect: dialect}
}

const saleColumns = `id, user_id, uid, identification, cpf_cnpj, address, address_number, address_complement,
	address_neighborhood, address_city, address_state, address_zip_code, phone_number, email, amount,
	description, status, xml_data, protocol, error_message, processed_at, process_response`

func scanSale(scanner interface{ Scan(dest ...any) error }) (models.Sale, error) {
	var (
		s                                  models.Sale
		status                             string
		number, complement, neighborhood   sql.NullString
		xmlData, protocol, errMsg, process sql.NullString
		processedAt                        sql.NullTime
	)
	err := scanner.Scan(&s.ID, &s.UserID, &s.UID, &s.Identification, &s.CpfCnpj, &s.Address, &number, &complement,
		&neighborhood, &s.AddressCity, &s.AddressState, &s.AddressZipCode, &s.PhoneNumber, &s.Email, &s.Amount,
		&s.Description, &status, &xmlData, &protocol, &errMsg, &processedAt, &process)
	if err != nil {
		return models.Sale{}, err
	}
	s.Status = models.SaleStatus(status)
	s.AddressNumber = nullString(number)
	s.AddressComplement = nullString(complement)
	s.AddressNeighborhood = nullString(neighborhood)
	s.XMLData = nullString(xmlData)
	s.Protocol = nullString(protocol)
	s.ErrorMessage = nullString(errMsg)
	s.ProcessedAt = nullTime(processedAt)
	s.ProcessResponse = nullString(process)
	return s, nil
}

// FindByUID returns models.ErrSaleNotFound when no sale has the uid.
func (r *SaleRepository) FindByUID(ctx context.Context, uid string) (models.Sale, error) {
	q := r.Dialect.rebind(`SELECT ` + saleColumns + ` FROM sales WHERE uid = ? LIMIT 1`)
	sale, err := scanSale(r.DB.QueryRowContext(ctx, q, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Sale{}, models.ErrSaleNotFound
	}
	if err != nil {
		return models.Sale{}, fmt.Errorf("find sale %s: %w", uid, err)
	}
	return sale, nil
}

// Create inserts a sale in PROCESSING state.
func (r *SaleRepository) Create(ctx context.Context, s models.Sale) error {
	if s.Status == "" {
		s.Status = models.SaleStatusProcessing
	}
	q := r.Dialect.rebind(`INSERT INTO sales (user_id, uid, identification, cpf_cnpj, address, address_number,
		address_complement, address_neighborhood, address_city, address_state, address_zip_code, phone_number,
		email, amount, description, status) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	_, err := r.DB.ExecContext(ctx, q, s.UserID, s.UID, s.Identification, s.CpfCnpj, s.Address, s.AddressNumber,
		s.AddressComplement, s.AddressNeighborhood, s.AddressCity, s.AddressState, s.AddressZipCode, s.PhoneNumber,
		s.Email, s.Amount, s.Description, string(s.Status))
	if err != nil {
		return fmt.Errorf("create sale %s: %w", s.UID, err)
	}
	return nil
}

// Update writes the set fields of upd. There is no version check; the last write wins.
func (r *SaleRepository) Update(ctx context.Context, uid string, upd models.SaleUpdate) error {
	if upd.Empty() {
		return nil
	}
	var (
		sets []string
		args []any
	)
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.XMLData != nil {
		sets = append(sets, "xml_data = ?")
		args = append(args, *upd.XMLData)
	}
	if upd.Protocol.Set {
		sets = append(sets, "protocol = ?")
		args = append(args, upd.Protocol.Value)
	}
	if upd.ErrorMessage.Set {
		sets = append(sets, "error_message = ?")
		args = append(args, truncateMessage(upd.ErrorMessage.Value))
	}
	if upd.ProcessResponse.Set {
		sets = append(sets, "process_response = ?")
		args = append(args, upd.ProcessResponse.Value)
	}
	if upd.ProcessedAt != nil {
		sets = append(sets, "processed_at = ?")
		args = append(args, dbTime(*upd.ProcessedAt))
	}
	args = append(args, uid)

	q := r.Dialect.rebind(`UPDATE sales SET ` + strings.Join(sets, ", ") + ` WHERE uid = ?`)
	if _, err := r.DB.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("update sale %s: %w", uid, err)
	}
	return nil
}

func truncateMessage(msg *string) *string {
	if msg == nil {
		return nil
	}
	runes := []rune(*msg)
	if len(runes) <= errorMessageMaxLen {
		return msg
	}
	s := string(runes[:errorMessageMaxLen])
	return &s
}
