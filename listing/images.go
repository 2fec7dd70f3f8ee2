package listing

import (
	"context"
	"strings"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
)

// Images returns the stored images of a listing ordered by position.
func (s *Store) Images(ctx context.Context, listingID int64) ([]ImageAsset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, listing_id, name, position, source_url, created_at
		FROM listing_images WHERE listing_id = ? ORDER BY position, id`, listingID)
	if err != nil {
		return nil, errors.Wrapf(err, "query images of listing %d", listingID)
	}
	defer rows.Close()

	var out []ImageAsset
	for rows.Next() {
		var img ImageAsset
		if err := rows.Scan(&img.ID, &img.ListingID, &img.Name, &img.Position, &img.SourceURL, &img.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan image")
		}
		out = append(out, img)
	}
	return out, errors.Wrap(rows.Err(), "iterate images")
}

// AddImage records a stored image. Re-adding an existing name only updates
// its position and source.
func (s *Store) AddImage(ctx context.Context, img *ImageAsset) error {
	img.CreatedAt = s.now()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO listing_images (listing_id, name, position, source_url, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(listing_id, name) DO UPDATE SET position = excluded.position, source_url = excluded.source_url
		RETURNING id`,
		img.ListingID, img.Name, img.Position, img.SourceURL, img.CreatedAt,
	).Scan(&img.ID)
	return errors.WithDetailf(errors.Wrapf(err, "add image to listing %d", img.ListingID), "name: %s", img.Name)
}

// DeleteImages removes the named image rows of a listing.
func (s *Store) DeleteImages(ctx context.Context, listingID int64, names []string) error {
	if len(names) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(names)+1)
	args = append(args, listingID)
	for _, n := range names {
		args = append(args, n)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM listing_images WHERE listing_id = ? AND name IN (`+placeholders+`)`, args...)
	return errors.Wrapf(err, "delete images of listing %d", listingID)
}
