// Package imovelweb reads the attribute-heavy "Anuncios" feed
// (Anuncios/Imovel), where most values live in attributes and the offer is
// given as S/N flags.
package imovelweb

import (
	"github.com/antchfx/xmlquery"

	"github.com/matheusluizig/imovelguide-integracao-sub000/ixgest"
	"github.com/matheusluizig/imovelguide-integracao-sub000/listing"
	"github.com/matheusluizig/imovelguide-integracao-sub000/normalize"
)

// System is the integration system name served by this adapter.
const System = "imovelweb"

// Adapter implements ixgest.Adapter for ImovelWeb feeds.
type Adapter struct{}

// New returns the ImovelWeb adapter.
func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string { return System }

func (a *Adapter) Detect(doc *xmlquery.Node) bool {
	return ixgest.RootName(doc) == "Anuncios"
}

func (a *Adapter) Extract(doc *xmlquery.Node) ([]listing.RawRecord, error) {
	if !a.Detect(doc) {
		return nil, ixgest.UnexpectedRoot(doc, "Anuncios")
	}
	nodes := ixgest.All(ixgest.Root(doc), "Imovel")
	records := make([]listing.RawRecord, 0, len(nodes))
	for _, n := range nodes {
		records = append(records, extract(n))
	}
	return records, nil
}

func extract(n *xmlquery.Node) listing.RawRecord {
	valores := ixgest.One(n, "Valores")
	areas := ixgest.One(n, "Areas")
	comodos := ixgest.One(n, "Comodos")
	endereco := ixgest.One(n, "Endereco")

	rec := listing.RawRecord{
		Code:        ixgest.Attr(n, "codigo"),
		Title:       ixgest.Text(n, "Titulo"),
		Description: ixgest.Text(n, "Descricao"),
		OfferText:   ixgest.Attr(n, "operacao"),

		ForSale:   flag(n, "venda"),
		ForRent:   flag(n, "locacao"),
		ForSeason: flag(n, "temporada"),

		SalePrice:   ixgest.Attr(valores, "venda"),
		RentPrice:   ixgest.Attr(valores, "aluguel"),
		SeasonPrice: ixgest.Attr(valores, "temporada"),
		CondoFee:    ixgest.Attr(valores, "condominio"),
		IPTU:        ixgest.Attr(valores, "iptu"),

		TotalArea:  ixgest.Attr(areas, "total"),
		UsefulArea: ixgest.Attr(areas, "util"),
		BuiltArea:  ixgest.Attr(areas, "construida"),
		LotArea:    ixgest.Attr(areas, "terreno"),

		Bedrooms:      ixgest.Attr(comodos, "quartos"),
		Suites:        ixgest.Attr(comodos, "suites"),
		Bathrooms:     ixgest.Attr(comodos, "banheiros"),
		ParkingSpaces: ixgest.Attr(comodos, "vagas"),

		PropertyType: ixgest.Attr(n, "tipo"),
		Guarantee:    ixgest.Text(n, "Garantia"),
		Status:       ixgest.Text(n, "Situacao"),

		Street:       ixgest.Attr(endereco, "logradouro"),
		Number:       ixgest.Attr(endereco, "numero"),
		Complement:   ixgest.Attr(endereco, "complemento"),
		Neighborhood: ixgest.Attr(endereco, "bairro"),
		City:         ixgest.Attr(endereco, "cidade"),
		State:        ixgest.Attr(endereco, "uf"),
		PostalCode:   ixgest.Attr(endereco, "cep"),
		Latitude:     ixgest.Attr(endereco, "latitude"),
		Longitude:    ixgest.Attr(endereco, "longitude"),

		CondominiumName: ixgest.Attr(ixgest.One(n, "Condominio"), "nome"),

		Features: ixgest.Texts(n, "Caracteristicas/Item"),
		VideoURL: ixgest.Attr(ixgest.One(n, "Video"), "url"),
	}

	for _, foto := range ixgest.All(n, "Fotos/Foto") {
		if url := ixgest.Attr(foto, "url"); url != "" {
			rec.ImageURLs = append(rec.ImageURLs, url)
		}
	}
	if v, ok := normalize.ParseBool(ixgest.Attr(n, "destaque")); ok {
		rec.Highlighted = v
	}
	return rec
}

// flag reads an S/N attribute; absent or unreadable is nil.
func flag(n *xmlquery.Node, attr string) *bool {
	v, ok := normalize.ParseBool(ixgest.Attr(n, attr))
	if !ok {
		return nil
	}
	return &v
}
