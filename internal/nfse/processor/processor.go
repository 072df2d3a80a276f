// Package processor runs the sale pipeline: load, build, sign, persist, submit, record.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"nfseBack/internal/models"
	"nfseBack/internal/nfse/authority"
	"nfseBack/internal/nfse/invoice"
)

// Processor executes one pipeline run per job.
type Processor struct {
	deps Deps
}

func New(deps Deps) (*Processor, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	return &Processor{deps: deps}, nil
}

// Process runs the pipeline for saleUID. Errors before submission are returned after the
// sale is marked ERROR, so the queue retries them. Once the document has been sent the
// outcome is recorded on the sale and nil is returned.
func (p *Processor) Process(ctx context.Context, saleUID string) error {
	sale, err := p.deps.Sales.FindByUID(ctx, saleUID)
	if err != nil {
		if errors.Is(err, models.ErrNoRecord) {
			return &NotFoundError{Entity: "sale", Key: saleUID}
		}
		return fmt.Errorf("load sale %s: %w", saleUID, err)
	}

	signed, err := p.prepare(ctx, sale)
	if err != nil {
		p.markFailed(ctx, sale.UID, err)
		return err
	}

	p.submit(ctx, sale, signed)
	return nil
}

// prepare builds, signs and persists the document. Nothing here has reached the authority.
func (p *Processor) prepare(ctx context.Context, sale models.Sale) ([]byte, error) {
	user, err := p.deps.Users.FindByID(ctx, sale.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNoRecord) {
			return nil, &NotFoundError{Entity: "user", Key: strconv.Itoa(sale.UserID)}
		}
		return nil, fmt.Errorf("load user %d: %w", sale.UserID, err)
	}

	doc, err := invoice.Build(sale, user, p.deps.Clock())
	if err != nil {
		return nil, err
	}
	xml, err := doc.XML()
	if err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}

	cert, err := p.deps.Certificates.FindByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, models.ErrNoRecord) {
			return nil, &NotFoundError{Entity: "certificate", Key: strconv.Itoa(user.ID)}
		}
		return nil, fmt.Errorf("load certificate for user %d: %w", user.ID, err)
	}

	password, err := p.deps.Cipher.Decrypt(cert.CertificatePassword)
	if err != nil {
		return nil, err
	}
	pfx, err := p.deps.Keystores.Read(ctx, cert.CertificatePath)
	if err != nil {
		return nil, err
	}
	km, err := p.deps.Extractor.Extract(pfx, password)
	if err != nil {
		return nil, err
	}

	signed, err := p.deps.Signer.Sign(xml, km)
	if err != nil {
		return nil, err
	}

	xmlData := string(signed)
	if err := p.deps.Sales.Update(ctx, sale.UID, models.SaleUpdate{XMLData: &xmlData}); err != nil {
		return nil, fmt.Errorf("store signed document: %w", err)
	}
	return signed, nil
}

func (p *Processor) markFailed(ctx context.Context, uid string, cause error) {
	now := p.deps.Clock()
	upd := models.SaleUpdate{
		Status:       models.StatusPtr(models.SaleStatusError),
		ErrorMessage: models.SetString(cause.Error()),
		ProcessedAt:  &now,
	}
	if err := p.deps.Sales.Update(ctx, uid, upd); err != nil {
		p.deps.Logger.Errorf("process-sale: mark sale %s as failed: %v (cause: %v)", uid, err, cause)
	}
}

func (p *Processor) submit(ctx context.Context, sale models.Sale, signed []byte) {
	res := p.deps.Authority.Submit(ctx, signed)
	now := p.deps.Clock()

	var upd models.SaleUpdate
	switch r := res.(type) {
	case authority.Accepted:
		upd = models.SaleUpdate{
			Status:          models.StatusPtr(models.SaleStatusSuccess),
			Protocol:        models.SetString(r.Protocol),
			ProcessResponse: models.SetString(r.Raw),
			ErrorMessage:    models.SetNull(),
			ProcessedAt:     &now,
		}
	case authority.Rejected:
		upd = models.SaleUpdate{
			Status:          models.StatusPtr(models.SaleStatusError),
			Protocol:        models.SetOptional(r.Protocol),
			ProcessResponse: models.SetString(r.Raw),
			ErrorMessage:    models.SetString(r.Message),
			ProcessedAt:     &now,
		}
	case authority.TransportFailure:
		raw, _ := json.Marshal(r.Message)
		upd = models.SaleUpdate{
			Status:          models.StatusPtr(models.SaleStatusError),
			Protocol:        models.SetNull(),
			ProcessResponse: models.SetString(string(raw)),
			ErrorMessage:    models.SetString(r.Message),
			ProcessedAt:     &now,
		}
	default:
		p.deps.Logger.Errorf("process-sale: unexpected authority result %T for sale %s", res, sale.UID)
		return
	}

	if err := p.deps.Sales.Update(ctx, sale.UID, upd); err != nil {
		p.deps.Logger.Errorf("process-sale: record outcome %s for sale %s: %v", *upd.Status, sale.UID, err)
		return
	}
	p.deps.Logger.Infof("process-sale: sale %s finished with status %s", sale.UID, *upd.Status)

	if *upd.Status != models.SaleStatusSuccess {
		return
	}
	final, err := p.deps.Sales.FindByUID(ctx, sale.UID)
	if err != nil {
		p.deps.Logger.Errorf("process-sale: reload sale %s before webhook: %v", sale.UID, err)
		final = upd.Apply(sale)
	}
	p.deps.Notifier.Notify(ctx, final)
}
