// Package vaulttest builds throwaway signing identities and keystores for tests.
package vaulttest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Identity is a self-signed RSA certificate and its key.
type Identity struct {
	Key  *rsa.PrivateKey
	Cert *x509.Certificate
}

// NewIdentity creates a 2048-bit identity valid for one day around now.
func NewIdentity(t testing.TB, commonName string) Identity {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: commonName, Organization: []string{"NFSe Test"}},
		NotBefore:             time.Now().Add(-12 * time.Hour),
		NotAfter:              time.Now().Add(12 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return Identity{Key: key, Cert: cert}
}

// PFX encodes the identity as a PKCS#12 container readable by legacy tooling.
func (id Identity) PFX(t testing.TB, password string) []byte {
	t.Helper()
	b, err := gopkcs12.LegacyDES.Encode(id.Key, id.Cert, nil, password)
	if err != nil {
		t.Fatalf("encode pfx: %v", err)
	}
	return b
}

// TrustStore encodes only the certificate, with no private key bag.
func (id Identity) TrustStore(t testing.TB, password string) []byte {
	t.Helper()
	b, err := gopkcs12.LegacyDES.EncodeTrustStore([]*x509.Certificate{id.Cert}, password)
	if err != nil {
		t.Fatalf("encode trust store: %v", err)
	}
	return b
}

// KeyPEM is the PKCS#1 PEM of the private key.
func (id Identity) KeyPEM() string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(id.Key)}))
}

// CertPEM is the PEM of the certificate.
func (id Identity) CertPEM() string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: id.Cert.Raw}))
}
