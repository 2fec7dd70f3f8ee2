// Package zapimoveis reads the Zap/OLX "Carga" feed (Carga/Imoveis/Imovel).
// Offer type is mostly implied by which price elements are filled, and
// amenities are one boolean element each.
package zapimoveis

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/matheusluizig/imovelguide-integracao-sub000/ixgest"
	"github.com/matheusluizig/imovelguide-integracao-sub000/listing"
	"github.com/matheusluizig/imovelguide-integracao-sub000/normalize"
)

// System is the integration system name served by this adapter.
const System = "zap"

// Boolean amenity elements and the label handed to normalization.
var featureElements = []struct{ element, label string }{
	{"Piscina", "Piscina"},
	{"Churrasqueira", "Churrasqueira"},
	{"Academia", "Academia"},
	{"Playground", "Playground"},
	{"SalaoFestas", "Salão de festas"},
	{"Portaria24Horas", "Portaria 24 horas"},
	{"Elevador", "Elevador"},
	{"Varanda", "Varanda"},
	{"ArCondicionado", "Ar condicionado"},
	{"Mobiliado", "Mobiliado"},
	{"QuadraPoliEsportiva", "Quadra poliesportiva"},
	{"Jardim", "Jardim"},
	{"Sauna", "Sauna"},
	{"Lavanderia", "Lavanderia"},
	{"AceitaPet", "Aceita pet"},
}

// Adapter implements ixgest.Adapter for Zap/OLX feeds.
type Adapter struct{}

// New returns the Zap adapter.
func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string { return System }

func (a *Adapter) Detect(doc *xmlquery.Node) bool {
	return ixgest.RootName(doc) == "Carga"
}

func (a *Adapter) Extract(doc *xmlquery.Node) ([]listing.RawRecord, error) {
	if !a.Detect(doc) {
		return nil, ixgest.UnexpectedRoot(doc, "Carga")
	}
	root := ixgest.Root(doc)
	if _, err := ixgest.Require(root, "Imoveis"); err != nil {
		return nil, err
	}

	nodes := ixgest.All(root, "Imoveis/Imovel")
	records := make([]listing.RawRecord, 0, len(nodes))
	for _, n := range nodes {
		records = append(records, extract(n))
	}
	return records, nil
}

func extract(n *xmlquery.Node) listing.RawRecord {
	rec := listing.RawRecord{
		Code:        ixgest.Text(n, "CodigoImovel"),
		Title:       ixgest.Text(n, "TituloImovel"),
		Description: ixgest.FirstText(n, "Observacao", "Descricao"),
		OfferText:   ixgest.Text(n, "TipoOferta"),

		SalePrice:   ixgest.Text(n, "PrecoVenda"),
		RentPrice:   ixgest.Text(n, "PrecoLocacao"),
		SeasonPrice: ixgest.Text(n, "PrecoLocacaoTemporada"),
		CondoFee:    ixgest.Text(n, "PrecoCondominio"),
		IPTU:        ixgest.FirstText(n, "ValorIPTU", "PrecoIptu"),

		TotalArea:  ixgest.Text(n, "AreaTotal"),
		UsefulArea: ixgest.Text(n, "AreaUtil"),
		BuiltArea:  ixgest.Text(n, "AreaConstruida"),
		LotArea:    ixgest.Text(n, "AreaTerreno"),

		Bedrooms:      ixgest.Text(n, "QtdDormitorios"),
		Suites:        ixgest.Text(n, "QtdSuites"),
		Bathrooms:     ixgest.Text(n, "QtdBanheiros"),
		ParkingSpaces: ixgest.Text(n, "QtdVagas"),

		PropertyType: propertyType(n),
		Guarantee:    ixgest.Text(n, "Garantia"),
		Status:       ixgest.Text(n, "Status"),

		Street:       ixgest.Text(n, "Endereco"),
		Number:       ixgest.Text(n, "Numero"),
		Complement:   ixgest.Text(n, "Complemento"),
		Neighborhood: ixgest.Text(n, "Bairro"),
		City:         ixgest.Text(n, "Cidade"),
		State:        ixgest.Text(n, "UF"),
		PostalCode:   ixgest.Text(n, "CEP"),
		Latitude:     ixgest.Text(n, "Latitude"),
		Longitude:    ixgest.Text(n, "Longitude"),

		CondominiumName: ixgest.Text(n, "NomeCondominio"),

		ImageURLs: photos(n),
		VideoURL:  ixgest.Text(n, "Videos/Video/URL"),
	}

	for _, f := range featureElements {
		if v, ok := normalize.ParseBool(ixgest.Text(n, f.element)); ok && v {
			rec.Features = append(rec.Features, f.label)
		}
	}
	if v, ok := normalize.ParseBool(ixgest.Text(n, "Destaque")); ok {
		rec.Highlighted = v
	}
	return rec
}

// propertyType joins TipoImovel and SubTipoImovel; the subtype alone often
// reads "Padrão".
func propertyType(n *xmlquery.Node) string {
	parts := []string{ixgest.Text(n, "TipoImovel"), ixgest.Text(n, "SubTipoImovel")}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// photos lists the photo URLs with the main photo first.
func photos(n *xmlquery.Node) []string {
	var main, rest []string
	for _, foto := range ixgest.All(n, "Fotos/Foto") {
		url := ixgest.FirstText(foto, "URLArquivo", "URL")
		if url == "" {
			continue
		}
		if v, ok := normalize.ParseBool(ixgest.Text(foto, "Principal")); ok && v {
			main = append(main, url)
			continue
		}
		rest = append(rest, url)
	}
	return append(main, rest...)
}
