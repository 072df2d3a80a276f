package invoice

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"

	"nfseBack/internal/models"
)

func strPtr(s string) *string { return &s }

func fixture() (models.Sale, models.User) {
	user := models.User{
		ID:                         7,
		Identification:             "Oficina Central LTDA",
		CpfCnpj:                    "12345678000199",
		MunicipalStateRegistration: strPtr("9876543"),
		Address:                    "Rua das Flores",
		AddressMunicipalCode:       "3550308",
		AddressCity:                "São Paulo",
		AddressState:               "SP",
		AddressZipCode:             "01001000",
	}
	sale := models.Sale{
		UID:                 "0b6f6a4e-3c1d-4a8e-9f55-1c2d3e4f5a6b",
		UserID:              7,
		Identification:      "Maria Souza",
		CpfCnpj:             "12345678909",
		Address:             "Av. Paulista",
		AddressNumber:       strPtr("1000"),
		AddressNeighborhood: strPtr("Bela Vista"),
		AddressCity:         "São Paulo",
		AddressState:        "SP",
		AddressZipCode:      "01310100",
		Email:               "maria@example.com",
		Amount:              12345,
		Description:         "Revisão completa",
		Status:              models.SaleStatusProcessing,
	}
	return sale, user
}

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{
		0:       "0.00",
		1:       "0.01",
		100:     "1.00",
		12345:   "123.45",
		1000050: "10000.50",
		-250:    "-2.50",
	}
	for in, want := range cases {
		if got := FormatAmount(in); got != want {
			t.Errorf("FormatAmount(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestBuild(t *testing.T) {
	sale, user := fixture()
	now := time.Date(2024, 5, 10, 14, 30, 0, 0, time.FixedZone("BRT", -3*3600))

	doc, err := Build(sale, user, now)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if doc.ValorServicos != "123.45" {
		t.Errorf("ValorServicos = %q", doc.ValorServicos)
	}
	if doc.InscricaoPrestador != "9876543" || doc.CNPJPrestador != user.CpfCnpj {
		t.Errorf("issuer identity not mapped: %+v", doc)
	}
	if doc.NumeroEndereco != NoNumber {
		t.Errorf("issuer NumeroEndereco = %q, want %q", doc.NumeroEndereco, NoNumber)
	}
	if doc.TomadorNumeroEndereco != "1000" || doc.TomadorBairro != "Bela Vista" {
		t.Errorf("recipient address not mapped: %+v", doc)
	}
	if doc.DataEmissaoNFe != "2024-05-10T14:30:00-03:00" || doc.DataFatoGeradorNFe != doc.DataEmissaoNFe {
		t.Errorf("dates = %q / %q", doc.DataEmissaoNFe, doc.DataFatoGeradorNFe)
	}
	if doc.StatusNFe != "N" || doc.TributacaoNFe != "T" || doc.OpcaoSimples != "4" || doc.ISSRetido != "false" {
		t.Errorf("fixed fiscal flags wrong: %+v", doc)
	}
	if doc.CodigoVerificacao != "" {
		t.Errorf("CodigoVerificacao = %q, want empty for unsubmitted sale", doc.CodigoVerificacao)
	}

	again, _ := Build(sale, user, now)
	if again != doc {
		t.Fatal("Build is not deterministic")
	}
}

func TestBuildRequiredFields(t *testing.T) {
	cases := map[string]func(*models.Sale, *models.User){
		"InscricaoPrestador":   func(_ *models.Sale, u *models.User) { u.MunicipalStateRegistration = nil },
		"CNPJPrestador":        func(_ *models.Sale, u *models.User) { u.CpfCnpj = "" },
		"RazaoSocialPrestador": func(_ *models.Sale, u *models.User) { u.Identification = " " },
		"CPFTomador":           func(s *models.Sale, _ *models.User) { s.CpfCnpj = "" },
		"RazaoSocialTomador":   func(s *models.Sale, _ *models.User) { s.Identification = "" },
		"ValorServicos":        func(s *models.Sale, _ *models.User) { s.Amount = -1 },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			sale, user := fixture()
			mutate(&sale, &user)
			_, err := Build(sale, user, time.Now())
			var me *MappingError
			if !errors.As(err, &me) || me.Field != field {
				t.Fatalf("error = %v, want MappingError{%s}", err, field)
			}
		})
	}
}

func TestDocumentXML(t *testing.T) {
	sale, user := fixture()
	doc, err := Build(sale, user, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out, err := doc.XML()
	if err != nil {
		t.Fatalf("XML: %v", err)
	}
	text := string(out)
	if !strings.HasPrefix(text, `<NFe Id="NFe">`) {
		t.Fatalf("unexpected root: %s", text[:40])
	}
	if !strings.Contains(text, "\n  <ValorServicos>123.45</ValorServicos>\n") {
		t.Errorf("amount element missing or not indented:\n%s", text)
	}
	if strings.Contains(text, "CodigoVerificacao") || strings.Contains(text, "FonteCargaTributaria") {
		t.Errorf("empty elements should be suppressed:\n%s", text)
	}

	parsed := etree.NewDocument()
	if err := parsed.ReadFromBytes(out); err != nil {
		t.Fatalf("output is not well formed: %v", err)
	}
	root := parsed.Root()
	if root.Tag != "NFe" || root.SelectAttrValue("Id", "") != RootID {
		t.Fatalf("root = %s Id=%q", root.Tag, root.SelectAttrValue("Id", ""))
	}
	if got := root.SelectElement("RazaoSocialTomador").Text(); got != "Maria Souza" {
		t.Errorf("RazaoSocialTomador = %q", got)
	}
	first := root.ChildElements()[0].Tag
	if first != "InscricaoPrestador" {
		t.Errorf("first element = %s", first)
	}
}
