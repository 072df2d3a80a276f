package vault

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"golang.org/x/crypto/pkcs12"
)

// KeyMaterial is the signing identity pulled out of a keystore. PrivateKey and
// Certificate hold PEM text; Key and Cert are the parsed forms.
type KeyMaterial struct {
	PrivateKey  string
	Certificate string
	Key         *rsa.PrivateKey
	Cert        *x509.Certificate
}

// Extractor turns keystore bytes into key material.
type Extractor interface {
	Extract(pfx []byte, password string) (KeyMaterial, error)
}

// PKCS12Extractor reads PKCS#12 (.pfx/.p12) containers.
type PKCS12Extractor struct{}

// Extract returns the first private key and the first certificate of the container.
func (PKCS12Extractor) Extract(pfx []byte, password string) (KeyMaterial, error) {
	return Extract(pfx, password)
}

// Extract is PKCS12Extractor.Extract.
func Extract(pfx []byte, password string) (KeyMaterial, error) {
	if len(pfx) == 0 {
		return KeyMaterial{}, &CertificateError{Reason: "empty keystore"}
	}
	blocks, err := pkcs12.ToPEM(pfx, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return KeyMaterial{}, &CertificateError{Reason: "incorrect keystore password", Err: err}
		}
		return KeyMaterial{}, &CertificateError{Reason: "malformed keystore", Err: err}
	}

	var keyBlock, certBlock *pem.Block
	for _, b := range blocks {
		switch b.Type {
		case "PRIVATE KEY":
			if keyBlock == nil {
				keyBlock = b
			}
		case "CERTIFICATE":
			if certBlock == nil {
				certBlock = b
			}
		}
	}
	if keyBlock == nil {
		return KeyMaterial{}, &CertificateError{Reason: "no private key found in keystore"}
	}
	if certBlock == nil {
		return KeyMaterial{}, &CertificateError{Reason: "no certificate found in keystore"}
	}

	key, err := parseRSAKey(keyBlock.Bytes)
	if err != nil {
		return KeyMaterial{}, &CertificateError{Reason: "unreadable private key", Err: err}
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return KeyMaterial{}, &CertificateError{Reason: "unreadable certificate", Err: err}
	}

	return KeyMaterial{
		PrivateKey:  string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})),
		Certificate: string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})),
		Key:         key,
		Cert:        cert,
	}, nil
}

// ToPEM emits RSA keys as PKCS#1 under a "PRIVATE KEY" header, so both encodings are tried.
func parseRSAKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported key type %T", parsed)
	}
	return key, nil
}

// ParseKeyMaterial rebuilds KeyMaterial from its PEM text.
func ParseKeyMaterial(privateKeyPEM, certificatePEM string) (KeyMaterial, error) {
	kb, _ := pem.Decode([]byte(privateKeyPEM))
	if kb == nil {
		return KeyMaterial{}, &CertificateError{Reason: "private key is not PEM"}
	}
	key, err := parseRSAKey(kb.Bytes)
	if err != nil {
		return KeyMaterial{}, &CertificateError{Reason: "unreadable private key", Err: err}
	}
	cb, _ := pem.Decode([]byte(certificatePEM))
	if cb == nil {
		return KeyMaterial{}, &CertificateError{Reason: "certificate is not PEM"}
	}
	cert, err := x509.ParseCertificate(cb.Bytes)
	if err != nil {
		return KeyMaterial{}, &CertificateError{Reason: "unreadable certificate", Err: err}
	}
	return KeyMaterial{PrivateKey: privateKeyPEM, Certificate: certificatePEM, Key: key, Cert: cert}, nil
}
