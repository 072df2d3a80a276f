package models

import "time"

// Certificate points at the PKCS#12 keystore of a user. CertificatePassword is stored
// encrypted as "ivHex:cipherHex".
type Certificate struct {
	ID                  int       `json:"id"`
	UserID              int       `json:"user_id"`
	CertificatePath     string    `json:"certificate_path"`
	CertificatePassword string    `json:"-"`
	CreatedAt           time.Time `json:"created_at"`
}
