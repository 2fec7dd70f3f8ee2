package upsert

import (
	"slices"

	"github.com/matheusluizig/imovelguide-integracao-sub000/listing"
)

// Diff compares a persisted listing with its incoming version field by field
// and reports which parts need writing.
func Diff(existing, incoming *listing.Listing) listing.Changes {
	return listing.Changes{
		Core:        coreChanged(existing, incoming),
		Address:     addressChanged(existing.Address, incoming.Address),
		Condominium: existing.Condominium.Name != incoming.Condominium.Name || !sameFloat(existing.Condominium.Fee, incoming.Condominium.Fee),
		Features:    !slices.Equal(listing.SortedFeatures(existing.FeatureIDs), listing.SortedFeatures(incoming.FeatureIDs)),
	}
}

func coreChanged(a, b *listing.Listing) bool {
	return a.IntegrationID != b.IntegrationID ||
		a.OfferType != b.OfferType ||
		a.PropertyType != b.PropertyType ||
		a.Status != b.Status ||
		a.Guarantee != b.Guarantee ||
		a.Title != b.Title ||
		a.Description != b.Description ||
		!sameFloat(a.SalePrice, b.SalePrice) ||
		!sameFloat(a.RentPrice, b.RentPrice) ||
		!sameFloat(a.SeasonPrice, b.SeasonPrice) ||
		!sameFloat(a.IPTU, b.IPTU) ||
		a.TotalArea != b.TotalArea ||
		a.UsefulArea != b.UsefulArea ||
		a.BuiltArea != b.BuiltArea ||
		a.LotArea != b.LotArea ||
		a.Bedrooms != b.Bedrooms ||
		a.Suites != b.Suites ||
		a.Bathrooms != b.Bathrooms ||
		a.ParkingSpaces != b.ParkingSpaces ||
		a.VideoURL != b.VideoURL ||
		a.Highlighted != b.Highlighted
}

func addressChanged(a, b listing.Address) bool {
	return a.Street != b.Street ||
		a.Number != b.Number ||
		a.Complement != b.Complement ||
		a.Neighborhood != b.Neighborhood ||
		a.City != b.City ||
		a.UF != b.UF ||
		a.PostalCode != b.PostalCode ||
		!sameFloat(a.Latitude, b.Latitude) ||
		!sameFloat(a.Longitude, b.Longitude) ||
		a.CityID != b.CityID ||
		a.NeighborhoodID != b.NeighborhoodID ||
		a.ValidLocation != b.ValidLocation
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
