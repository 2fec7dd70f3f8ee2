// Package listing defines the canonical listing schema every provider adapter
// targets, and the SQLite store holding persisted listings with their
// satellite records (address, condominium, features, images).
package listing

import (
	"slices"
	"time"
)

// OfferType enumerates the commercial offer of a listing.
type OfferType int

// Offer types. Combinations are distinct values, not bit flags.
const (
	OfferUnresolved     OfferType = -1
	OfferSale           OfferType = 1
	OfferRent           OfferType = 2
	OfferSeason         OfferType = 3
	OfferSaleRent       OfferType = 4
	OfferSaleSeason     OfferType = 5
	OfferRentSeason     OfferType = 6
	OfferSaleRentSeason OfferType = 7
)

// Valid reports whether o is one of the persisted offer types 1..7.
func (o OfferType) Valid() bool {
	return o >= OfferSale && o <= OfferSaleRentSeason
}

// Includes reports whether the offer contains sale, rent or season.
func (o OfferType) Includes(part OfferType) bool {
	return o.Valid() && offerMask[o]&offerMask[part] != 0
}

func (o OfferType) String() string {
	switch o {
	case OfferSale:
		return "sale"
	case OfferRent:
		return "rent"
	case OfferSeason:
		return "season"
	case OfferSaleRent:
		return "sale+rent"
	case OfferSaleSeason:
		return "sale+season"
	case OfferRentSeason:
		return "rent+season"
	case OfferSaleRentSeason:
		return "sale+rent+season"
	default:
		return "unresolved"
	}
}

const (
	maskSale   = 1
	maskRent   = 2
	maskSeason = 4
)

var offerMask = map[OfferType]int{
	OfferSale:           maskSale,
	OfferRent:           maskRent,
	OfferSeason:         maskSeason,
	OfferSaleRent:       maskSale | maskRent,
	OfferSaleSeason:     maskSale | maskSeason,
	OfferRentSeason:     maskRent | maskSeason,
	OfferSaleRentSeason: maskSale | maskRent | maskSeason,
}

// OfferFromParts combines sale, rent and season flags into an OfferType.
// No flag set yields OfferUnresolved.
func OfferFromParts(sale, rent, season bool) OfferType {
	mask := 0
	if sale {
		mask |= maskSale
	}
	if rent {
		mask |= maskRent
	}
	if season {
		mask |= maskSeason
	}
	for o, m := range offerMask {
		if m == mask {
			return o
		}
	}
	return OfferUnresolved
}

// Source tells whether the feed or the account owner created a listing.
type Source string

const (
	SourceFeed   Source = "feed"
	SourceManual Source = "manual"
)

// Listing is the canonical, provider-agnostic property record keyed by
// (AccountID, Code).
type Listing struct {
	ID            int64
	AccountID     int64
	IntegrationID int64
	Code          string
	Source        Source

	OfferType    OfferType
	PropertyType int
	Status       int
	Guarantee    int

	Title       string
	Description string

	SalePrice   *float64
	RentPrice   *float64
	SeasonPrice *float64
	IPTU        *float64

	TotalArea  float64
	UsefulArea float64
	BuiltArea  float64
	LotArea    float64

	Bedrooms      int
	Suites        int
	Bathrooms     int
	ParkingSpaces int

	Address     Address
	Condominium Condominium
	FeatureIDs  []int

	// ImageURLs are the feed-provided image sources in feed order. They are not
	// persisted on the listing row; ImageAsset rows record what was stored.
	ImageURLs []string
	VideoURL  string

	Highlighted         bool
	ManuallyDeactivated bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Address is the 1:1 address satellite of a listing.
type Address struct {
	Street         string
	Number         string
	Complement     string
	Neighborhood   string
	City           string
	UF             string
	PostalCode     string // 00000-000, or empty when invalid
	Latitude       *float64
	Longitude      *float64
	CityID         int64 // 0 when unresolved
	NeighborhoodID int64 // 0 when unresolved
	ValidLocation  bool
}

// Condominium is the 1:1 condominium satellite of a listing.
type Condominium struct {
	Name string
	Fee  *float64
}

// IsZero reports whether the feed carried no condominium data.
func (c Condominium) IsZero() bool {
	return c.Name == "" && c.Fee == nil
}

// ImageAsset is one stored image of a listing. Name is the deterministic
// `{hash}.{ext}` shared by every variant.
type ImageAsset struct {
	ID        int64
	ListingID int64
	Name      string
	Position  int
	SourceURL string
	CreatedAt time.Time
}

// SortedFeatures returns the feature ids sorted and without duplicates.
func SortedFeatures(ids []int) []int {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
