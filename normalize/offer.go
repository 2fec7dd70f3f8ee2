package normalize

import (
	"strings"

	"github.com/matheusluizig/imovelguide-integracao-sub000/listing"
)

var (
	saleWords   = []string{"venda", "vende", "compra", "sale", "sell", "buy"}
	rentWords   = []string{"aluguel", "alugar", "locacao", "rent", "lease"}
	seasonWords = []string{"temporada", "season", "ferias", "vacation"}

	// Phrases where a rent word only qualifies the season offer.
	seasonPhrases = strings.NewReplacer(
		"locacao de temporada", "temporada",
		"locacao por temporada", "temporada",
		"locacao temporada", "temporada",
		"aluguel de temporada", "temporada",
		"aluguel por temporada", "temporada",
		"aluguel temporada", "temporada",
		"season rent", "season",
		"seasonal rent", "season",
		"vacation rental", "season",
	)
)

// InferOffer resolves the offer type of a raw record. Explicit flags win over
// free text; free text is matched by keyword. When the feed carries neither,
// positive prices decide. A record with offer text that matches no keyword is
// unresolved rather than guessed from prices.
func InferOffer(raw listing.RawRecord) listing.OfferType {
	if o, ok := offerFromFlags(raw); ok {
		return o
	}
	if strings.TrimSpace(raw.OfferText) != "" {
		return offerFromText(raw.OfferText)
	}
	return offerFromPrices(raw)
}

func offerFromFlags(raw listing.RawRecord) (listing.OfferType, bool) {
	if raw.ForSale == nil && raw.ForRent == nil && raw.ForSeason == nil {
		return listing.OfferUnresolved, false
	}
	o := listing.OfferFromParts(isTrue(raw.ForSale), isTrue(raw.ForRent), isTrue(raw.ForSeason))
	return o, o.Valid()
}

func offerFromText(text string) listing.OfferType {
	folded := " " + seasonPhrases.Replace(Fold(text)) + " "
	return listing.OfferFromParts(
		hasWord(folded, saleWords),
		hasWord(folded, rentWords),
		hasWord(folded, seasonWords),
	)
}

func offerFromPrices(raw listing.RawRecord) listing.OfferType {
	positive := func(s string) bool {
		v, ok := ParseNumber(s)
		return ok && v > 0
	}
	return listing.OfferFromParts(positive(raw.SalePrice), positive(raw.RentPrice), positive(raw.SeasonPrice))
}

// hasWord reports whether any word starts a word in padded (" text ").
func hasWord(padded string, words []string) bool {
	for _, w := range words {
		if strings.Contains(padded, " "+w) {
			return true
		}
	}
	return false
}

func isTrue(b *bool) bool {
	return b != nil && *b
}
