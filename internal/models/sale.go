package models

import "time"

// SaleStatus is the processing state persisted on a sale.
type SaleStatus string

const (
	SaleStatusProcessing SaleStatus = "PROCESSING"
	SaleStatusSuccess    SaleStatus = "SUCCESS"
	SaleStatusError      SaleStatus = "ERROR"
)

// Sale is a request to issue a municipal invoice on behalf of a user.
type Sale struct {
	ID                  int        `json:"id"`
	UserID              int        `json:"user_id"`
	UID                 string     `json:"uid"`
	Identification      string     `json:"identification"`
	CpfCnpj             string     `json:"cpf_cnpj"`
	Address             string     `json:"address"`
	AddressNumber       *string    `json:"address_number,omitempty"`
	AddressComplement   *string    `json:"address_complement,omitempty"`
	AddressNeighborhood *string    `json:"address_neighborhood,omitempty"`
	AddressCity         string     `json:"address_city"`
	AddressState        string     `json:"address_state"`
	AddressZipCode      string     `json:"address_zip_code"`
	PhoneNumber         string     `json:"phone_number"`
	Email               string     `json:"email"`
	Amount              int64      `json:"amount"`
	Description         string     `json:"description"`
	Status              SaleStatus `json:"status"`
	XMLData             *string    `json:"xml_data,omitempty"`
	Protocol            *string    `json:"protocol,omitempty"`
	ErrorMessage        *string    `json:"error_message,omitempty"`
	ProcessedAt         *time.Time `json:"processed_at,omitempty"`
	ProcessResponse     *string    `json:"process_response,omitempty"`
}

// NullableString is a column write that may store NULL. The zero value leaves the column untouched.
type NullableString struct {
	Set   bool
	Value *string
}

// SetString writes v.
func SetString(v string) NullableString { return NullableString{Set: true, Value: &v} }

// SetNull writes NULL.
func SetNull() NullableString { return NullableString{Set: true} }

// SetOptional writes v, or NULL when v is nil.
func SetOptional(v *string) NullableString { return NullableString{Set: true, Value: v} }

// SaleUpdate is a partial update of the result fields of a sale. Only set fields are written.
type SaleUpdate struct {
	Status          *SaleStatus
	XMLData         *string
	Protocol        NullableString
	ErrorMessage    NullableString
	ProcessResponse NullableString
	ProcessedAt     *time.Time
}

// Empty reports whether the update writes nothing.
func (u SaleUpdate) Empty() bool {
	return u.Status == nil && u.XMLData == nil && !u.Protocol.Set && !u.ErrorMessage.Set &&
		!u.ProcessResponse.Set && u.ProcessedAt == nil
}

// Apply returns a copy of s with the update applied.
func (u SaleUpdate) Apply(s Sale) Sale {
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.XMLData != nil {
		x := *u.XMLData
		s.XMLData = &x
	}
	if u.Protocol.Set {
		s.Protocol = u.Protocol.Value
	}
	if u.ErrorMessage.Set {
		s.ErrorMessage = u.ErrorMessage.Value
	}
	if u.ProcessResponse.Set {
		s.ProcessResponse = u.ProcessResponse.Value
	}
	if u.ProcessedAt != nil {
		t := *u.ProcessedAt
		s.ProcessedAt = &t
	}
	return s
}

// StatusPtr is a helper for building updates.
func StatusPtr(s SaleStatus) *SaleStatus { return &s }
