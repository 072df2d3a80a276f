// Package invoice maps a sale and its issuing user onto the municipal NFe document.
package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"

	"nfseBack/internal/models"
)

// Values fixed by the issuer's tax regime.
const (
	numeroNFe        = "1234"
	numeroLote       = "123"
	statusNFe        = "N"
	tributacaoNFe    = "T"
	opcaoSimples     = "4"
	codigoServico    = "1234"
	aliquotaServicos = "0"
	valorISS         = "0"
	valorCredito     = "0"
	issRetido        = "false"

	// NoNumber fills address numbers the customer left blank.
	NoNumber = "S/N"

	// RootID is the Id attribute of the root element, used as the signature reference.
	RootID = "NFe"
)

// Document is the flat NFe field set in schema order.
type Document struct {
	InscricaoPrestador    string
	NumeroNFe             string
	CodigoVerificacao     string
	DataEmissaoNFe        string
	DataFatoGeradorNFe    string
	NumeroLote            string
	CNPJPrestador         string
	RazaoSocialPrestador  string
	Logradouro            string
	NumeroEndereco        string
	Cidade                string
	CodigoMunicipio       string
	UF                    string
	CEP                   string
	StatusNFe             string
	TributacaoNFe         string
	OpcaoSimples          string
	ValorServicos         string
	CodigoServico         string
	AliquotaServicos      string
	ValorISS              string
	ValorCredito          string
	ISSRetido             string
	CPFTomador            string
	RazaoSocialTomador    string
	TomadorLogradouro     string
	TomadorNumeroEndereco string
	TomadorBairro         string
	TomadorCidade         string
	TomadorUF             string
	TomadorCEP            string
	EmailTomador          string
	Discriminacao         string
	FonteCargaTributaria  string
}

// MappingError reports a required invoice field with no source value.
type MappingError struct {
	Field string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("invoice: required field %s is empty", e.Field)
}

// Build maps sale and user onto an NFe document issued at now.
func Build(sale models.Sale, user models.User, now time.Time) (Document, error) {
	if sale.Amount < 0 {
		return Document{}, &MappingError{Field: "ValorServicos"}
	}
	issued := now.Format(time.RFC3339)

	doc := Document{
		InscricaoPrestador:    deref(user.MunicipalStateRegistration),
		NumeroNFe:             numeroNFe,
		CodigoVerificacao:     deref(sale.Protocol),
		DataEmissaoNFe:        issued,
		DataFatoGeradorNFe:    issued,
		NumeroLote:            numeroLote,
		CNPJPrestador:         user.CpfCnpj,
		RazaoSocialPrestador:  user.Identification,
		Logradouro:            user.Address,
		NumeroEndereco:        orNoNumber(user.AddressNumber),
		Cidade:                user.AddressCity,
		CodigoMunicipio:       user.AddressMunicipalCode,
		UF:                    user.AddressState,
		CEP:                   user.AddressZipCode,
		StatusNFe:             statusNFe,
		TributacaoNFe:         tributacaoNFe,
		OpcaoSimples:          opcaoSimples,
		ValorServicos:         FormatAmount(sale.Amount),
		CodigoServico:         codigoServico,
		AliquotaServicos:      aliquotaServicos,
		ValorISS:              valorISS,
		ValorCredito:          valorCredito,
		ISSRetido:             issRetido,
		CPFTomador:            sale.CpfCnpj,
		RazaoSocialTomador:    sale.Identification,
		TomadorLogradouro:     sale.Address,
		TomadorNumeroEndereco: orNoNumber(sale.AddressNumber),
		TomadorBairro:         deref(sale.AddressNeighborhood),
		TomadorCidade:         sale.AddressCity,
		TomadorUF:             sale.AddressState,
		TomadorCEP:            sale.AddressZipCode,
		EmailTomador:          sale.Email,
		Discriminacao:         sale.Description,
	}

	for _, f := range []field{
		{"InscricaoPrestador", doc.InscricaoPrestador},
		{"CNPJPrestador", doc.CNPJPrestador},
		{"RazaoSocialPrestador", doc.RazaoSocialPrestador},
		{"CPFTomador", doc.CPFTomador},
		{"RazaoSocialTomador", doc.RazaoSocialTomador},
	} {
		if strings.TrimSpace(f.value) == "" {
			return Document{}, &MappingError{Field: f.name}
		}
	}
	return doc, nil
}

// FormatAmount renders minor currency units as a two-decimal string: 12345 -> "123.45".
func FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

type field struct {
	name  string
	value string
}

func (d Document) fields() []field {
	return []field{
		{"InscricaoPrestador", d.InscricaoPrestador},
		{"NumeroNFe", d.NumeroNFe},
		{"CodigoVerificacao", d.CodigoVerificacao},
		{"DataEmissaoNFe", d.DataEmissaoNFe},
		{"DataFatoGeradorNFe", d.DataFatoGeradorNFe},
		{"NumeroLote", d.NumeroLote},
		{"CNPJPrestador", d.CNPJPrestador},
		{"RazaoSocialPrestador", d.RazaoSocialPrestador},
		{"Logradouro", d.Logradouro},
		{"NumeroEndereco", d.NumeroEndereco},
		{"Cidade", d.Cidade},
		{"CodigoMunicipio", d.CodigoMunicipio},
		{"UF", d.UF},
		{"CEP", d.CEP},
		{"StatusNFe", d.StatusNFe},
		{"TributacaoNFe", d.TributacaoNFe},
		{"OpcaoSimples", d.OpcaoSimples},
		{"ValorServicos", d.ValorServicos},
		{"CodigoServico", d.CodigoServico},
		{"AliquotaServicos", d.AliquotaServicos},
		{"ValorISS", d.ValorISS},
		{"ValorCredito", d.ValorCredito},
		{"ISSRetido", d.ISSRetido},
		{"CPFTomador", d.CPFTomador},
		{"RazaoSocialTomador", d.RazaoSocialTomador},
		{"TomadorLogradouro", d.TomadorLogradouro},
		{"TomadorNumeroEndereco", d.TomadorNumeroEndereco},
		{"TomadorBairro", d.TomadorBairro},
		{"TomadorCidade", d.TomadorCidade},
		{"TomadorUF", d.TomadorUF},
		{"TomadorCEP", d.TomadorCEP},
		{"EmailTomador", d.EmailTomador},
		{"Discriminacao", d.Discriminacao},
		{"FonteCargaTributaria", d.FonteCargaTributaria},
	}
}

// XML renders the document as <NFe Id="NFe">, indented by two spaces. Empty fields are omitted.
func (d Document) XML() ([]byte, error) {
	doc := etree.NewDocument()
	root := doc.CreateElement("NFe")
	root.CreateAttr("Id", RootID)
	for _, f := range d.fields() {
		if f.value == "" {
			continue
		}
		root.CreateElement(f.name).SetText(f.value)
	}
	doc.Indent(2)
	return doc.WriteToBytes()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orNoNumber(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return NoNumber
	}
	return *s
}
