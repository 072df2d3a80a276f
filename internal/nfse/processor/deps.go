package processor

import (
	"context"
	"errors"
	"time"

	"nfseBack/internal/models"
	"nfseBack/internal/nfse/authority"
	"nfseBack/internal/nfse/vault"
)

// Logger provides minimal logging required by the processor.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type SaleStore interface {
	FindByUID(ctx context.Context, uid string) (models.Sale, error)
	Update(ctx context.Context, uid string, upd models.SaleUpdate) error
}

type UserStore interface {
	FindByID(ctx context.Context, id int) (models.User, error)
}

type CertificateStore interface {
	FindByUserID(ctx context.Context, userID int) (models.Certificate, error)
}

type Decrypter interface {
	Decrypt(secret string) (string, error)
}

type Signer interface {
	Sign(doc []byte, km vault.KeyMaterial) ([]byte, error)
}

type Submitter interface {
	Submit(ctx context.Context, signed []byte) authority.Result
}

type Notifier interface {
	Notify(ctx context.Context, sale models.Sale)
}

// Deps groups the collaborators of one Processor.
type Deps struct {
	Sales        SaleStore
	Users        UserStore
	Certificates CertificateStore
	Keystores    vault.Source
	Extractor    vault.Extractor
	Cipher       Decrypter
	Signer       Signer
	Authority    Submitter
	Notifier     Notifier
	Clock        func() time.Time
	Logger       Logger
}

// Validate ensures required dependencies are provided.
func (d *Deps) Validate() error {
	switch {
	case d.Sales == nil:
		return errors.New("processor deps: Sales is required")
	case d.Users == nil:
		return errors.New("processor deps: Users is required")
	case d.Certificates == nil:
		return errors.New("processor deps: Certificates is required")
	case d.Keystores == nil:
		return errors.New("processor deps: Keystores is required")
	case d.Cipher == nil:
		return errors.New("processor deps: Cipher is required")
	case d.Signer == nil:
		return errors.New("processor deps: Signer is required")
	case d.Authority == nil:
		return errors.New("processor deps: Authority is required")
	case d.Notifier == nil:
		return errors.New("processor deps: Notifier is required")
	case d.Logger == nil:
		return errors.New("processor deps: Logger is required")
	}
	if d.Extractor == nil {
		d.Extractor = vault.PKCS12Extractor{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return nil
}
