// Package vrsync reads VRSync feeds (ListingDataFeed/Listings/Listing), the
// XML format shared by most Brazilian real-estate back-offices. Elements are
// usually in the VRSync default namespace.
package vrsync

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/matheusluizig/imovelguide-integracao-sub000/ixgest"
	"github.com/matheusluizig/imovelguide-integracao-sub000/listing"
	"github.com/matheusluizig/imovelguide-integracao-sub000/normalize"
)

// System is the integration system name served by this adapter.
const System = "vrsync"

// Adapter implements ixgest.Adapter for VRSync.
type Adapter struct{}

// New returns the VRSync adapter.
func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string { return System }

func (a *Adapter) Detect(doc *xmlquery.Node) bool {
	return ixgest.RootName(doc) == "ListingDataFeed"
}

func (a *Adapter) Extract(doc *xmlquery.Node) ([]listing.RawRecord, error) {
	root := ixgest.Root(doc)
	if !a.Detect(doc) {
		return nil, ixgest.UnexpectedRoot(doc, "ListingDataFeed")
	}
	if _, err := ixgest.Require(root, "Listings"); err != nil {
		return nil, err
	}

	nodes := ixgest.All(root, "Listings/Listing")
	records := make([]listing.RawRecord, 0, len(nodes))
	for _, n := range nodes {
		records = append(records, extract(n))
	}
	return records, nil
}

func extract(n *xmlquery.Node) listing.RawRecord {
	details := ixgest.One(n, "Details")
	location := ixgest.One(n, "Location")

	rec := listing.RawRecord{
		Code:        ixgest.Text(n, "ListingID"),
		Title:       ixgest.Text(n, "Title"),
		Description: ixgest.Text(details, "Description"),
		OfferText:   ixgest.Text(n, "TransactionType"),

		SalePrice: ixgest.Text(details, "ListPrice"),
		CondoFee:  ixgest.Text(details, "PropertyAdministrationFee"),
		IPTU:      ixgest.Text(details, "YearlyTax"),

		TotalArea:  ixgest.FirstText(details, "TotalArea", "LotArea"),
		UsefulArea: ixgest.Text(details, "LivingArea"),
		BuiltArea:  ixgest.Text(details, "ConstructedArea"),
		LotArea:    ixgest.Text(details, "LotArea"),

		Bedrooms:      ixgest.Text(details, "Bedrooms"),
		Suites:        ixgest.Text(details, "Suites"),
		Bathrooms:     ixgest.Text(details, "Bathrooms"),
		ParkingSpaces: ixgest.Text(details, "Garage"),

		PropertyType: ixgest.Text(details, "PropertyType"),
		Guarantee:    strings.Join(ixgest.Texts(details, "Warranties/Warranty"), ", "),
		Status:       ixgest.Text(n, "Status"),

		Street:       ixgest.Text(location, "Address"),
		Number:       ixgest.Text(location, "StreetNumber"),
		Complement:   ixgest.Text(location, "Complement"),
		Neighborhood: ixgest.Text(location, "Neighborhood"),
		City:         ixgest.Text(location, "City"),
		State:        state(location),
		PostalCode:   ixgest.Text(location, "PostalCode"),
		Latitude:     ixgest.Text(location, "Latitude"),
		Longitude:    ixgest.Text(location, "Longitude"),

		CondominiumName: ixgest.Text(details, "BuildingName"),

		Features:  ixgest.Texts(details, "Features/Feature"),
		ImageURLs: ixgest.Texts(n, "Media/Item[@medium='image']"),
		VideoURL:  ixgest.Text(n, "Media/Item[@medium='video']"),
	}

	// VRSync has a single RentalPrice; its period tells monthly rent from a
	// daily season price.
	if rental := ixgest.One(details, "RentalPrice"); rental != nil {
		price := strings.TrimSpace(rental.InnerText())
		switch strings.ToLower(ixgest.Attr(rental, "period")) {
		case "daily", "weekly":
			rec.SeasonPrice = price
		default:
			rec.RentPrice = price
		}
	}

	if rec.TotalArea == "" {
		rec.TotalArea = rec.UsefulArea
	}
	if featured, ok := normalize.ParseBool(ixgest.Text(n, "Featured")); ok {
		rec.Highlighted = featured
	}
	switch strings.ToUpper(ixgest.Text(n, "PublicationType")) {
	case "PREMIUM", "SUPER_PREMIUM":
		rec.Highlighted = true
	}
	return rec
}

// state prefers the abbreviation attribute over the element text.
func state(location *xmlquery.Node) string {
	s := ixgest.One(location, "State")
	if s == nil {
		return ""
	}
	if abbr := ixgest.Attr(s, "abbreviation"); abbr != "" {
		return abbr
	}
	return strings.TrimSpace(s.InnerText())
}
