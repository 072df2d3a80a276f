package signer

import (
	"bytes"
	"crypto/x509"
	"strings"
	"testing"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"nfseBack/internal/nfse/vault"
	"nfseBack/internal/nfse/vault/vaulttest"
)

const sampleDoc = `<NFe Id="NFe">
  <InscricaoPrestador>9876543</InscricaoPrestador>
  <ValorServicos>123.45</ValorServicos>
  <Discriminacao>Revisão completa</Discriminacao>
</NFe>
`

func keyMaterial(t *testing.T) (vault.KeyMaterial, *x509.Certificate) {
	t.Helper()
	id := vaulttest.NewIdentity(t, "Oficina Central LTDA")
	return vault.KeyMaterial{
		PrivateKey:  id.KeyPEM(),
		Certificate: id.CertPEM(),
		Key:         id.Key,
		Cert:        id.Cert,
	}, id.Cert
}

func TestNewRejectsUnknownAlgorithm(t *testing.T) {
	if _, err := New("dsa-md5"); err == nil {
		t.Fatal("expected error")
	}
	s, err := New("")
	if err != nil || s.Method() != dsig.RSASHA1SignatureMethod {
		t.Fatalf("default signer = %v, %v", s, err)
	}
}

func TestSignLegacyAlgorithms(t *testing.T) {
	km, _ := keyMaterial(t)
	s, _ := New(RSASHA1)

	out, err := s.Sign([]byte(sampleDoc), km)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	text := string(out)
	for _, want := range []string{
		`Algorithm="http://www.w3.org/2000/09/xmldsig#rsa-sha1"`,
		`Algorithm="http://www.w3.org/2000/09/xmldsig#sha1"`,
		`Algorithm="http://www.w3.org/2001/10/xml-exc-c14n#"`,
		`Algorithm="http://www.w3.org/2000/09/xmldsig#enveloped-signature"`,
		`URI="#NFe"`,
		`<ds:X509Certificate>`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("signed document lacks %s", want)
		}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(out); err != nil {
		t.Fatalf("signed output not well formed: %v", err)
	}
	if doc.Root().Tag != "NFe" {
		t.Fatalf("root = %s", doc.Root().Tag)
	}
	last := doc.Root().ChildElements()[len(doc.Root().ChildElements())-1]
	if last.Tag != "Signature" {
		t.Fatalf("last child = %s, want enveloped Signature", last.Tag)
	}
}

func TestSignIsDeterministic(t *testing.T) {
	km, _ := keyMaterial(t)
	s, _ := New(RSASHA1)
	a, err := s.Sign([]byte(sampleDoc), km)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	b, err := s.Sign([]byte(sampleDoc), km)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("signing the same input twice produced different output")
	}
}

func TestSignFromPEMOnly(t *testing.T) {
	km, _ := keyMaterial(t)
	pemOnly := vault.KeyMaterial{PrivateKey: km.PrivateKey, Certificate: km.Certificate}
	s, _ := New(RSASHA1)
	a, err := s.Sign([]byte(sampleDoc), km)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	b, err := s.Sign([]byte(sampleDoc), pemOnly)
	if err != nil {
		t.Fatalf("Sign from PEM: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("PEM-only key material signed differently")
	}
}

func TestSignVerifies(t *testing.T) {
	km, cert := keyMaterial(t)
	s, _ := New(RSASHA256)
	out, err := s.Sign([]byte(sampleDoc), km)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(out); err != nil {
		t.Fatalf("parse: %v", err)
	}
	vctx := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{Roots: []*x509.Certificate{cert}})
	vctx.IdAttribute = "Id"
	validated, err := vctx.Validate(doc.Root())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := validated.SelectElement("ValorServicos").Text(); got != "123.45" {
		t.Fatalf("validated content = %q", got)
	}
}

func TestSignRejectsGarbage(t *testing.T) {
	km, _ := keyMaterial(t)
	s, _ := New(RSASHA1)
	if _, err := s.Sign([]byte("not xml <"), km); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := s.Sign([]byte(sampleDoc), vault.KeyMaterial{}); err == nil {
		t.Fatal("expected key material error")
	}
}
