package vault

import "fmt"

// DecryptionError reports a stored secret that could not be decrypted.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decrypt secret: %s: %v", e.Reason, e.Err)
	}
	return "decrypt secret: " + e.Reason
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// CertificateError reports an unreadable keystore: wrong password, corrupt container,
// missing key or certificate bag, or a keystore file that cannot be read.
type CertificateError struct {
	Reason string
	Err    error
}

func (e *CertificateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("certificate: %s: %v", e.Reason, e.Err)
	}
	return "certificate: " + e.Reason
}

func (e *CertificateError) Unwrap() error { return e.Err }
