package listing

import (
	"database/sql"
)

// listingColumns is the SELECT list matching listingScanTargets, joined
// against the address and condominium satellites.
const listingColumns = `
	l.id, l.account_id, COALESCE(l.integration_id, 0), l.code, l.source,
	l.offer_type, l.property_type, l.status, l.guarantee,
	l.title, l.description,
	l.sale_price, l.rent_price, l.season_price, l.iptu,
	l.total_area, l.useful_area, l.built_area, l.lot_area,
	l.bedrooms, l.suites, l.bathrooms, l.parking_spaces,
	l.video_url, l.highlighted, l.manually_deactivated,
	l.created_at, l.updated_at,
	COALESCE(a.street, ''), COALESCE(a.number, ''), COALESCE(a.complement, ''),
	COALESCE(a.neighborhood, ''), COALESCE(a.city, ''), COALESCE(a.uf, ''), COALESCE(a.postal_code, ''),
	a.latitude, a.longitude,
	COALESCE(a.city_id, 0), COALESCE(a.neighborhood_id, 0), COALESCE(a.valid_location, 0),
	COALESCE(c.name, ''), c.fee`

const listingFrom = `
	FROM listings l
	LEFT JOIN listing_addresses a ON a.listing_id = l.id
	LEFT JOIN listing_condominiums c ON c.listing_id = l.id`

// listingScanArgs holds the nullable columns of a listing row.
type listingScanArgs struct {
	SalePrice, RentPrice, SeasonPrice, IPTU sql.NullFloat64
	Latitude, Longitude                     sql.NullFloat64
	CondoFee                                sql.NullFloat64
	Source                                  string
	OfferType                               int
}

func listingScanTargets(l *Listing, args *listingScanArgs) []interface{} {
	return []interface{}{
		&l.ID, &l.AccountID, &l.IntegrationID, &l.Code, &args.Source,
		&args.OfferType, &l.PropertyType, &l.Status, &l.Guarantee,
		&l.Title, &l.Description,
		&args.SalePrice, &args.RentPrice, &args.SeasonPrice, &args.IPTU,
		&l.TotalArea, &l.UsefulArea, &l.BuiltArea, &l.LotArea,
		&l.Bedrooms, &l.Suites, &l.Bathrooms, &l.ParkingSpaces,
		&l.VideoURL, &l.Highlighted, &l.ManuallyDeactivated,
		&l.CreatedAt, &l.UpdatedAt,
		&l.Address.Street, &l.Address.Number, &l.Address.Complement,
		&l.Address.Neighborhood, &l.Address.City, &l.Address.UF, &l.Address.PostalCode,
		&args.Latitude, &args.Longitude,
		&l.Address.CityID, &l.Address.NeighborhoodID, &l.Address.ValidLocation,
		&l.Condominium.Name, &args.CondoFee,
	}
}

func (args *listingScanArgs) apply(l *Listing) {
	l.Source = Source(args.Source)
	l.OfferType = OfferType(args.OfferType)
	l.SalePrice = nullFloat(args.SalePrice)
	l.RentPrice = nullFloat(args.RentPrice)
	l.SeasonPrice = nullFloat(args.SeasonPrice)
	l.IPTU = nullFloat(args.IPTU)
	l.Address.Latitude = nullFloat(args.Latitude)
	l.Address.Longitude = nullFloat(args.Longitude)
	l.Condominium.Fee = nullFloat(args.CondoFee)
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func floatArg(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
