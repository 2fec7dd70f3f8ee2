package normalize

import (
	"context"
	"database/sql"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
)

// Location is a resolved city and neighborhood. Zero ids mean unresolved.
type Location struct {
	CityID         int64
	NeighborhoodID int64
}

// Valid reports whether both the city and the neighborhood are known.
func (l Location) Valid() bool {
	return l.CityID > 0 && l.NeighborhoodID > 0
}

// LocationResolver resolves address names against the reference tables.
// Unknown names are not errors; they resolve to zero ids.
type LocationResolver interface {
	Resolve(ctx context.Context, uf, city, neighborhood string) (Location, error)
}

// LocationStore resolves locations from the cities and neighborhoods tables.
type LocationStore struct {
	db *sql.DB
}

// NewLocationStore creates a resolver over db.
func NewLocationStore(db *sql.DB) *LocationStore {
	return &LocationStore{db: db}
}

// Resolve looks up the city by UF and folded name, then the neighborhood
// within that city.
func (s *LocationStore) Resolve(ctx context.Context, uf, city, neighborhood string) (Location, error) {
	var loc Location
	if uf == "" || city == "" {
		return loc, nil
	}
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM cities WHERE uf = ? AND name_key = ?`, uf, Fold(city)).Scan(&loc.CityID)
	if errors.Is(err, sql.ErrNoRows) {
		return loc, nil
	}
	if err != nil {
		return loc, errors.Wrapf(err, "resolve city %s/%s", uf, city)
	}
	if neighborhood == "" {
		return loc, nil
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM neighborhoods WHERE city_id = ? AND name_key = ?`, loc.CityID, Fold(neighborhood)).Scan(&loc.NeighborhoodID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return loc, errors.Wrapf(err, "resolve neighborhood %s in city %d", neighborhood, loc.CityID)
	}
	return loc, nil
}

// AddCity inserts a reference city, returning the existing id when the
// folded name is already known for uf.
func (s *LocationStore) AddCity(ctx context.Context, uf, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO cities (uf, name, name_key) VALUES (?, ?, ?)
		ON CONFLICT (uf, name_key) DO UPDATE SET name = excluded.name
		RETURNING id`, uf, TitleCase(name), Fold(name)).Scan(&id)
	if err != nil {
		return 0, errors.Wrapf(err, "add city %s/%s", uf, name)
	}
	return id, nil
}

// AddNeighborhood inserts a reference neighborhood of cityID.
func (s *LocationStore) AddNeighborhood(ctx context.Context, cityID int64, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO neighborhoods (city_id, name, name_key) VALUES (?, ?, ?)
		ON CONFLICT (city_id, name_key) DO UPDATE SET name = excluded.name
		RETURNING id`, cityID, TitleCase(name), Fold(name)).Scan(&id)
	if err != nil {
		return 0, errors.Wrapf(err, "add neighborhood %s", name)
	}
	return id, nil
}

type locationKey struct {
	uf, city, neighborhood string
}

// cachedResolver memoizes lookups for the duration of one batch. Feeds
// repeat the same handful of neighborhoods across hundreds of listings.
type cachedResolver struct {
	inner LocationResolver
	cache map[locationKey]Location
}

func newCachedResolver(inner LocationResolver) *cachedResolver {
	return &cachedResolver{inner: inner, cache: make(map[locationKey]Location)}
}

func (c *cachedResolver) Resolve(ctx context.Context, uf, city, neighborhood string) (Location, error) {
	key := locationKey{uf, Fold(city), Fold(neighborhood)}
	if loc, ok := c.cache[key]; ok {
		return loc, nil
	}
	loc, err := c.inner.Resolve(ctx, uf, city, neighborhood)
	if err != nil {
		return loc, err
	}
	c.cache[key] = loc
	return loc, nil
}
