// Package normalize applies the shared business rules that turn provider
// RawRecords into canonical listings: offer-type inference, lookup-table
// classification, locale-tolerant numbers, address and postal code cleanup,
// location resolution and per-run deduplication.
//
// Record-level problems never abort a run. A record that cannot be persisted
// becomes a skip entry on the RunReport; a record kept with a fallback value
// carries a diagnostic entry.
package normalize

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/listing"
	"github.com/matheusluizig/imovelguide-integracao-sub000/report"
	"github.com/matheusluizig/imovelguide-integracao-sub000/sym"
)

// Owner identifies the account and integration a batch belongs to.
type Owner struct {
	AccountID     int64
	IntegrationID int64
}

// Result is the outcome of normalizing one record: either a listing or a
// skip, plus diagnostics about kept fallback values.
type Result struct {
	Listing     *listing.Listing
	Skip        *report.Entry
	Diagnostics []report.Entry
}

// Engine normalizes raw records.
type Engine struct {
	lookups   *LookupSet
	locations LocationResolver
	logger    *zap.SugaredLogger
}

// NewEngine creates an engine. locations may be nil, in which case every
// address is unresolved.
func NewEngine(lookups *LookupSet, locations LocationResolver, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{lookups: lookups, locations: locations, logger: logger}
}

// Batch normalizes one feed run. Every record whose code appears more than
// once is dropped with a single duplicate_code skip per code. The returned
// listings keep feed order.
func (e *Engine) Batch(ctx context.Context, owner Owner, raws []listing.RawRecord) ([]*listing.Listing, *report.RunReport, error) {
	rep := report.New()
	rep.Total = len(raws)

	occurrences := make(map[string]int, len(raws))
	for _, raw := range raws {
		if code := Clean(raw.Code); code != "" {
			occurrences[code]++
		}
	}

	run := e.forRun()
	reportedDup := make(map[string]bool)
	var out []*listing.Listing

	for i, raw := range raws {
		code := Clean(raw.Code)
		switch {
		case code == "":
			rep.Skip("", report.ReasonMissingCode, fmt.Sprintf("record #%d", i+1))
			e.logger.Debugw("Skipped record without code", "index", i, "symbol", sym.Norm)
			continue
		case occurrences[code] > 1:
			if !reportedDup[code] {
				reportedDup[code] = true
				rep.Skip(code, report.ReasonDuplicateCode, fmt.Sprintf("%d records share this code", occurrences[code]))
				e.logger.Infow("Dropped duplicated listing code", "listing_code", code, "count", occurrences[code], "symbol", sym.Norm)
			}
			continue
		}

		res, err := run.normalize(ctx, owner, raw)
		if err != nil {
			return nil, rep, errors.Wrapf(err, "normalize listing %s", code)
		}
		for _, d := range res.Diagnostics {
			rep.Note(d.Code, d.Reason, d.Detail)
		}
		if res.Skip != nil {
			rep.Skip(res.Skip.Code, res.Skip.Reason, res.Skip.Detail)
			e.logger.Infow("Skipped listing", "listing_code", code, "reason", res.Skip.Reason, "symbol", sym.Norm)
			continue
		}
		out = append(out, res.Listing)
	}

	rep.Processed = len(out)
	return out, rep, nil
}

// Normalize applies the record rules to raw alone, without deduplication.
// The same input always yields the same result.
func (e *Engine) Normalize(ctx context.Context, owner Owner, raw listing.RawRecord) (Result, error) {
	return e.forRun().normalize(ctx, owner, raw)
}

// forRun snapshots the lookup tables and starts a location cache.
func (e *Engine) forRun() *runState {
	rs := &runState{lookups: e.lookups.Get()}
	if e.locations != nil {
		rs.locations = newCachedResolver(e.locations)
	}
	return rs
}

type runState struct {
	lookups   *Lookups
	locations LocationResolver
}

type recordState struct {
	code  string
	diags []report.Entry
}

func (r *recordState) note(reason report.Reason, format string, args ...interface{}) {
	r.diags = append(r.diags, report.Entry{Code: r.code, Reason: reason, Detail: fmt.Sprintf(format, args...)})
}

func (rs *runState) normalize(ctx context.Context, owner Owner, raw listing.RawRecord) (Result, error) {
	rec := &recordState{code: Clean(raw.Code)}
	if rec.code == "" {
		return Result{Skip: &report.Entry{Reason: report.ReasonMissingCode}}, nil
	}

	offer := InferOffer(raw)
	if !offer.Valid() {
		return Result{Skip: &report.Entry{
			Code:   rec.code,
			Reason: report.ReasonUnresolvedOfferType,
			Detail: strconv.Itoa(int(listing.OfferUnresolved)) + " " + strconv.Quote(raw.OfferText),
		}}, nil
	}

	l := &listing.Listing{
		AccountID:     owner.AccountID,
		IntegrationID: owner.IntegrationID,
		Code:          rec.code,
		Source:        listing.SourceFeed,
		OfferType:     offer,
		Title:         Clean(raw.Title),
		Description:   strings.TrimSpace(raw.Description),
		VideoURL:      Clean(raw.VideoURL),
		Highlighted:   raw.Highlighted,
	}

	l.SalePrice = rec.price("sale_price", raw.SalePrice)
	l.RentPrice = rec.price("rent_price", raw.RentPrice)
	l.SeasonPrice = rec.price("season_price", raw.SeasonPrice)
	l.IPTU = rec.price("iptu", raw.IPTU)

	l.TotalArea = rec.area("total_area", raw.TotalArea)
	l.UsefulArea = rec.area("useful_area", raw.UsefulArea)
	l.BuiltArea = rec.area("built_area", raw.BuiltArea)
	l.LotArea = rec.area("lot_area", raw.LotArea)

	l.Bedrooms = rec.count("bedrooms", raw.Bedrooms)
	l.Suites = rec.count("suites", raw.Suites)
	l.Bathrooms = rec.count("bathrooms", raw.Bathrooms)
	l.ParkingSpaces = rec.count("parking_spaces", raw.ParkingSpaces)

	l.PropertyType = rec.classify(&rs.lookups.PropertyTypes, report.ReasonUnmatchedPropertyType, raw.PropertyType)
	l.Guarantee = rec.classify(&rs.lookups.Guarantees, report.ReasonUnmatchedGuarantee, raw.Guarantee)
	l.Status = rec.classify(&rs.lookups.Statuses, report.ReasonUnmatchedStatus, raw.Status)
	l.FeatureIDs = rec.features(&rs.lookups.Features, raw.Features)

	l.Condominium = listing.Condominium{
		Name: Clean(raw.CondominiumName),
		Fee:  rec.price("condo_fee", raw.CondoFee),
	}

	addr, err := rs.address(ctx, rec, raw)
	if err != nil {
		return Result{}, err
	}
	l.Address = addr
	l.ImageURLs = rec.images(raw.ImageURLs)

	return Result{Listing: l, Diagnostics: rec.diags}, nil
}

// price parses an optional money field. Absent, zero and invalid values are nil.
func (r *recordState) price(field, s string) *float64 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	v, ok := ParseNumber(s)
	if !ok {
		r.note(report.ReasonInvalidNumber, "%s %q", field, s)
		return nil
	}
	if v <= 0 {
		return nil
	}
	return &v
}

func (r *recordState) area(field, s string) float64 {
	if strings.TrimSpace(s) == "" {
		return 0
	}
	v, ok := ParseNumber(s)
	if !ok || v < 0 {
		r.note(report.ReasonInvalidNumber, "%s %q", field, s)
		return 0
	}
	return v
}

func (r *recordState) count(field, s string) int {
	if strings.TrimSpace(s) == "" {
		return 0
	}
	v, ok := ParseCount(s)
	if !ok {
		r.note(report.ReasonInvalidNumber, "%s %q", field, s)
		return 0
	}
	return v
}

// classify matches s against t. A blank value takes the fallback silently;
// an unmatched value takes the fallback with a diagnostic.
func (r *recordState) classify(t *Table, reason report.Reason, s string) int {
	if strings.TrimSpace(s) == "" {
		return t.Fallback
	}
	id, ok := t.Match(s)
	if !ok {
		r.note(reason, "%q", Clean(s))
	}
	return id
}

func (r *recordState) features(t *Table, names []string) []int {
	var ids []int
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		id, ok := t.Match(name)
		if !ok {
			r.note(report.ReasonUnmatchedFeature, "%q", Clean(name))
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	return listing.SortedFeatures(ids)
}

func (rs *runState) address(ctx context.Context, r *recordState, raw listing.RawRecord) (listing.Address, error) {
	a := listing.Address{
		Street:       TitleCase(raw.Street),
		Number:       Clean(raw.Number),
		Complement:   Clean(raw.Complement),
		Neighborhood: TitleCase(raw.Neighborhood),
		City:         TitleCase(raw.City),
	}

	if strings.TrimSpace(raw.State) != "" {
		uf, ok := StateCode(raw.State)
		if ok {
			a.UF = uf
		} else {
			r.note(report.ReasonUnresolvedLocation, "state %q", Clean(raw.State))
		}
	}

	if strings.TrimSpace(raw.PostalCode) != "" {
		cep, ok := PostalCode(raw.PostalCode)
		if ok {
			a.PostalCode = cep
		} else {
			r.note(report.ReasonInvalidPostalCode, "%q", Clean(raw.PostalCode))
		}
	}

	a.Latitude, a.Longitude = coordinates(raw.Latitude, raw.Longitude)

	if rs.locations != nil {
		loc, err := rs.locations.Resolve(ctx, a.UF, a.City, a.Neighborhood)
		if err != nil {
			return a, err
		}
		a.CityID = loc.CityID
		a.NeighborhoodID = loc.NeighborhoodID
		a.ValidLocation = loc.Valid()
	}
	if !a.ValidLocation {
		r.note(report.ReasonUnresolvedLocation, "%s / %s / %s", a.Neighborhood, a.City, a.UF)
	}
	return a, nil
}

// coordinates parses a latitude/longitude pair. Both must be valid and not
// the 0,0 placeholder some back-offices emit.
func coordinates(latStr, lngStr string) (*float64, *float64) {
	parse := func(s string) (float64, bool) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
		return v, err == nil
	}
	lat, ok1 := parse(latStr)
	lng, ok2 := parse(lngStr)
	if !ok1 || !ok2 || (lat == 0 && lng == 0) {
		return nil, nil
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, nil
	}
	return &lat, &lng
}

// images keeps http(s) URLs in feed order without duplicates.
func (r *recordState) images(urls []string) []string {
	var out []string
	seen := make(map[string]bool, len(urls))
	for _, raw := range urls {
		s := strings.TrimSpace(raw)
		if s == "" || seen[s] {
			continue
		}
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			r.note(report.ReasonInvalidImageURL, "%q", s)
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
