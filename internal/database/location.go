package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/geoduel-gg/geoduel/internal/models"
)

// StreetViewURL builds the map link shown to players after a round.
func StreetViewURL(lat, lon float64) string {
	return fmt.Sprintf("https://www.google.com/maps/@%f,%f,17z", lat, lon)
}

// RandomLocations samples n distinct locations from the catalog. If the
// catalog holds fewer than n rows, the whole catalog is returned.
func RandomLocations(ctx context.Context, n int) ([]models.Location, error) {
	q := `SELECT id, lat, lon, region, country FROM locations ORDER BY random() LIMIT $1`
	rows, err := DB.Query(ctx, q, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locs []models.Location
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.Lat, &l.Lon, &l.Region, &l.Country); err != nil {
			return nil, err
		}
		l.URL = StreetViewURL(l.Lat, l.Lon)
		locs = append(locs, l)
	}
	return locs, rows.Err()
}

// InsertLocation adds a location to the catalog. Used by the seed tooling.
func InsertLocation(ctx context.Context, l *models.Location) error {
	q := `INSERT INTO locations (lat, lon, region, country) VALUES ($1, $2, $3, $4) RETURNING id`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q, l.Lat, l.Lon, l.Region, l.Country).Scan(&l.ID)
	})
}
