package listing

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/matheusluizig/imovelguide-integracao-sub000/db"
	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
)

// Store persists canonical listings and their satellites in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a listing store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the timestamp source (tests).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Get loads one listing with its satellites.
func (s *Store) Get(ctx context.Context, id int64) (*Listing, error) {
	listings, err := s.query(ctx, `WHERE l.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, errors.NewNotFoundError("listing %d", id)
	}
	return s.withFeatures(ctx, listings[0])
}

// FindByCode loads the listing with the given external code for an account.
func (s *Store) FindByCode(ctx context.Context, accountID int64, code string) (*Listing, error) {
	listings, err := s.query(ctx, `WHERE l.account_id = ? AND l.code = ?`, accountID, code)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, errors.NewNotFoundError("listing %q of account %d", code, accountID)
	}
	return s.withFeatures(ctx, listings[0])
}

func (s *Store) withFeatures(ctx context.Context, l *Listing) (*Listing, error) {
	ids, err := s.features(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	l.FeatureIDs = ids
	return l, nil
}

// ListByAccount loads every listing of an account keyed by code, with
// satellites and feature ids populated.
func (s *Store) ListByAccount(ctx context.Context, accountID int64) (map[string]*Listing, error) {
	listings, err := s.query(ctx, `WHERE l.account_id = ? ORDER BY l.id`, accountID)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*Listing, len(listings))
	byCode := make(map[string]*Listing, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
		byCode[l.Code] = l
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.listing_id, f.feature_id FROM listing_features f
		JOIN listings l ON l.id = f.listing_id
		WHERE l.account_id = ? ORDER BY f.listing_id, f.feature_id`, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "query listing features")
	}
	defer rows.Close()

	for rows.Next() {
		var listingID int64
		var featureID int
		if err := rows.Scan(&listingID, &featureID); err != nil {
			return nil, errors.Wrap(err, "scan listing feature")
		}
		if l, ok := byID[listingID]; ok {
			l.FeatureIDs = append(l.FeatureIDs, featureID)
		}
	}
	return byCode, errors.Wrap(rows.Err(), "iterate listing features")
}

func (s *Store) query(ctx context.Context, where string, args ...interface{}) ([]*Listing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+listingColumns+listingFrom+` `+where, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query listings")
	}
	defer rows.Close()

	var out []*Listing
	for rows.Next() {
		var l Listing
		var scan listingScanArgs
		if err := rows.Scan(listingScanTargets(&l, &scan)...); err != nil {
			return nil, errors.Wrap(err, "scan listing")
		}
		scan.apply(&l)
		out = append(out, &l)
	}
	return out, errors.Wrap(rows.Err(), "iterate listings")
}

func (s *Store) features(ctx context.Context, listingID int64) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT feature_id FROM listing_features WHERE listing_id = ? ORDER BY feature_id`, listingID)
	if err != nil {
		return nil, errors.Wrapf(err, "query features of listing %d", listingID)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan feature id")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "iterate features")
}

// Insert creates a listing with all satellites and sets l.ID and timestamps.
func (s *Store) Insert(ctx context.Context, l *Listing) error {
	now := s.now()
	if l.Source == "" {
		l.Source = SourceFeed
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO listings (
				account_id, integration_id, code, source,
				offer_type, property_type, status, guarantee,
				title, description,
				sale_price, rent_price, season_price, iptu,
				total_area, useful_area, built_area, lot_area,
				bedrooms, suites, bathrooms, parking_spaces,
				video_url, highlighted, manually_deactivated,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.AccountID, integrationArg(l.IntegrationID), l.Code, string(l.Source),
			int(l.OfferType), l.PropertyType, l.Status, l.Guarantee,
			l.Title, l.Description,
			floatArg(l.SalePrice), floatArg(l.RentPrice), floatArg(l.SeasonPrice), floatArg(l.IPTU),
			l.TotalArea, l.UsefulArea, l.BuiltArea, l.LotArea,
			l.Bedrooms, l.Suites, l.Bathrooms, l.ParkingSpaces,
			l.VideoURL, l.Highlighted, l.ManuallyDeactivated,
			now, now,
		)
		if db.IsUniqueViolation(err) {
			return errors.Wrapf(errors.ErrConflict, "listing %s already exists for account %d", l.Code, l.AccountID)
		}
		if err != nil {
			return errors.WithDetailf(errors.Wrap(err, "insert listing"), "code: %s", l.Code)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "read listing id")
		}

		l.ID, l.CreatedAt, l.UpdatedAt = id, now, now
		if err := upsertAddress(ctx, tx, l.ID, l.Address); err != nil {
			return err
		}
		if !l.Condominium.IsZero() {
			if err := upsertCondominium(ctx, tx, l.ID, l.Condominium); err != nil {
				return err
			}
		}
		return replaceFeatures(ctx, tx, l.ID, l.FeatureIDs)
	})
}

// Changes selects which parts of a listing Update writes.
type Changes struct {
	Core        bool
	Address     bool
	Condominium bool
	Features    bool
}

// Any reports whether at least one part changed.
func (c Changes) Any() bool {
	return c.Core || c.Address || c.Condominium || c.Features
}

// Fields lists the changed parts, for logs.
func (c Changes) Fields() []string {
	var out []string
	if c.Core {
		out = append(out, "core")
	}
	if c.Address {
		out = append(out, "address")
	}
	if c.Condominium {
		out = append(out, "condominium")
	}
	if c.Features {
		out = append(out, "features")
	}
	return out
}

// Update writes only the parts flagged in changes. l.ID must be set.
func (s *Store) Update(ctx context.Context, l *Listing, changes Changes) error {
	if !changes.Any() {
		return nil
	}
	now := s.now()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if changes.Core {
			_, err := tx.ExecContext(ctx, `
				UPDATE listings SET
					integration_id = ?, offer_type = ?, property_type = ?, status = ?, guarantee = ?,
					title = ?, description = ?,
					sale_price = ?, rent_price = ?, season_price = ?, iptu = ?,
					total_area = ?, useful_area = ?, built_area = ?, lot_area = ?,
					bedrooms = ?, suites = ?, bathrooms = ?, parking_spaces = ?,
					video_url = ?, highlighted = ?, updated_at = ?
				WHERE id = ?`,
				integrationArg(l.IntegrationID), int(l.OfferType), l.PropertyType, l.Status, l.Guarantee,
				l.Title, l.Description,
				floatArg(l.SalePrice), floatArg(l.RentPrice), floatArg(l.SeasonPrice), floatArg(l.IPTU),
				l.TotalArea, l.UsefulArea, l.BuiltArea, l.LotArea,
				l.Bedrooms, l.Suites, l.Bathrooms, l.ParkingSpaces,
				l.VideoURL, l.Highlighted, now,
				l.ID,
			)
			if err != nil {
				return errors.WithDetailf(errors.Wrap(err, "update listing"), "code: %s", l.Code)
			}
		} else {
			if _, err := tx.ExecContext(ctx, `UPDATE listings SET updated_at = ? WHERE id = ?`, now, l.ID); err != nil {
				return errors.Wrap(err, "touch listing")
			}
		}
		l.UpdatedAt = now

		if changes.Address {
			if err := upsertAddress(ctx, tx, l.ID, l.Address); err != nil {
				return err
			}
		}
		if changes.Condominium {
			if l.Condominium.IsZero() {
				if _, err := tx.ExecContext(ctx, `DELETE FROM listing_condominiums WHERE listing_id = ?`, l.ID); err != nil {
					return errors.Wrap(err, "delete condominium")
				}
			} else if err := upsertCondominium(ctx, tx, l.ID, l.Condominium); err != nil {
				return err
			}
		}
		if changes.Features {
			return replaceFeatures(ctx, tx, l.ID, l.FeatureIDs)
		}
		return nil
	})
}

// Delete removes a listing; satellites and image rows cascade.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "delete listing %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError("listing %d", id)
	}
	return nil
}

func upsertAddress(ctx context.Context, tx *sql.Tx, listingID int64, a Address) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO listing_addresses (
			listing_id, street, number, complement, neighborhood, city, uf, postal_code,
			latitude, longitude, city_id, neighborhood_id, valid_location
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(listing_id) DO UPDATE SET
			street = excluded.street, number = excluded.number, complement = excluded.complement,
			neighborhood = excluded.neighborhood, city = excluded.city, uf = excluded.uf,
			postal_code = excluded.postal_code, latitude = excluded.latitude, longitude = excluded.longitude,
			city_id = excluded.city_id, neighborhood_id = excluded.neighborhood_id,
			valid_location = excluded.valid_location`,
		listingID, a.Street, a.Number, a.Complement, a.Neighborhood, a.City, a.UF, a.PostalCode,
		floatArg(a.Latitude), floatArg(a.Longitude), a.CityID, a.NeighborhoodID, a.ValidLocation,
	)
	return errors.Wrapf(err, "upsert address of listing %d", listingID)
}

func upsertCondominium(ctx context.Context, tx *sql.Tx, listingID int64, c Condominium) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO listing_condominiums (listing_id, name, fee) VALUES (?, ?, ?)
		ON CONFLICT(listing_id) DO UPDATE SET name = excluded.name, fee = excluded.fee`,
		listingID, c.Name, floatArg(c.Fee),
	)
	return errors.Wrapf(err, "upsert condominium of listing %d", listingID)
}

func replaceFeatures(ctx context.Context, tx *sql.Tx, listingID int64, ids []int) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM listing_features WHERE listing_id = ?`, listingID); err != nil {
		return errors.Wrapf(err, "clear features of listing %d", listingID)
	}
	ids = SortedFeatures(ids)
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("(?, ?),", len(ids)), ",")
	args := make([]interface{}, 0, 2*len(ids))
	for _, id := range ids {
		args = append(args, listingID, id)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO listing_features (listing_id, feature_id) VALUES `+placeholders, args...)
	return errors.Wrapf(err, "insert features of listing %d", listingID)
}

func integrationArg(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin listing tx")
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit listing tx")
}
