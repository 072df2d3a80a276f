package models

// User is the account holder that issues invoices. Its billing identity fills the
// issuer section of the invoice.
type User struct {
	ID                         int     `json:"id"`
	Identification             string  `json:"identification"`
	CpfCnpj                    string  `json:"cpf_cnpj"`
	MunicipalStateRegistration *string `json:"municipal_state_registration,omitempty"`
	Address                    string  `json:"address"`
	AddressNumber              *string `json:"address_number,omitempty"`
	AddressComplement          *string `json:"address_complement,omitempty"`
	AddressNeighborhood        *string `json:"address_neighborhood,omitempty"`
	AddressMunicipalCode       string  `json:"address_municipal_code"`
	AddressCity                string  `json:"address_city"`
	AddressState               string  `json:"address_state"`
	AddressZipCode             string  `json:"address_zip_code"`
	PhoneNumber                string  `json:"phone_number"`
	Email                      string  `json:"email"`
	Username                   string  `json:"username"`
}
