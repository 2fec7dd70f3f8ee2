package listing

// RawRecord is what a provider adapter extracts from one listing element,
// before any business rule is applied. Every field is the trimmed source text;
// an empty string means the feed did not carry the field. Normalization turns
// missing required numerics into 0 and missing optional ones into nil.
type RawRecord struct {
	Code        string
	Title       string
	Description string

	// OfferText is free text such as "Venda", "For Rent" or "Venda/Locação".
	OfferText string
	// Flag-based providers set these instead of OfferText; nil means absent.
	ForSale   *bool
	ForRent   *bool
	ForSeason *bool

	SalePrice   string
	RentPrice   string
	SeasonPrice string
	CondoFee    string
	IPTU        string

	TotalArea  string
	UsefulArea string
	BuiltArea  string
	LotArea    string

	Bedrooms      string
	Suites        string
	Bathrooms     string
	ParkingSpaces string

	PropertyType string
	Guarantee    string
	Status       string

	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	PostalCode   string
	Latitude     string
	Longitude    string

	CondominiumName string

	Features  []string
	ImageURLs []string
	VideoURL  string

	Highlighted bool
}
