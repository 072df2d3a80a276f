// Package signer embeds an XML-DSig enveloped signature into invoice documents.
package signer

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"nfseBack/internal/nfse/vault"
)

// Algorithm names accepted by New.
const (
	RSASHA1   = "rsa-sha1"
	RSASHA256 = "rsa-sha256"
)

// Signer signs documents whose root carries an Id attribute.
type Signer struct {
	method string
}

// New returns a signer for alg. The authority's schema requires rsa-sha1; rsa-sha256 is
// kept for the migration it announced.
func New(alg string) (*Signer, error) {
	switch alg {
	case "", RSASHA1:
		return &Signer{method: dsig.RSASHA1SignatureMethod}, nil
	case RSASHA256:
		return &Signer{method: dsig.RSASHA256SignatureMethod}, nil
	default:
		return nil, fmt.Errorf("signer: unsupported algorithm %q", alg)
	}
}

// Method returns the SignatureMethod identifier written into signatures.
func (s *Signer) Method() string { return s.method }

// Sign returns doc with a signature over its root element appended to that root.
// Canonicalization is exclusive c14n and the reference points at the root's Id.
func (s *Signer) Sign(doc []byte, km vault.KeyMaterial) ([]byte, error) {
	if km.Key == nil || km.Cert == nil {
		parsed, err := vault.ParseKeyMaterial(km.PrivateKey, km.Certificate)
		if err != nil {
			return nil, err
		}
		km = parsed
	}

	in := etree.NewDocument()
	if err := in.ReadFromBytes(doc); err != nil {
		return nil, fmt.Errorf("signer: parse document: %w", err)
	}
	root := in.Root()
	if root == nil {
		return nil, errors.New("signer: document has no root element")
	}

	ctx := dsig.NewDefaultSigningContext(dsig.TLSCertKeyStore(tls.Certificate{
		Certificate: [][]byte{km.Cert.Raw},
		PrivateKey:  km.Key,
	}))
	ctx.IdAttribute = "Id"
	ctx.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	if err := ctx.SetSignatureMethod(s.method); err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}

	signed, err := ctx.SignEnveloped(root)
	if err != nil {
		return nil, fmt.Errorf("signer: sign: %w", err)
	}

	out := etree.NewDocument()
	out.SetRoot(signed)
	return out.WriteToBytes()
}
