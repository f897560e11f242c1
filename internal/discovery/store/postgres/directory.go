// Package postgres reads provider listings from PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"drivematch/internal/discovery/models"
	id "drivematch/pkg/domain"
	"drivematch/pkg/platform/sentinel"
)

// Querier is the subset of *pgxpool.Pool the directory needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Directory struct {
	db Querier
}

func New(db Querier) *Directory {
	return &Directory{db: db}
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open directory pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping directory database: %w", err)
	}
	return pool, nil
}

const selectColumns = `id, name, gender, categories, transmission, hourly_price,
	vehicle_model, vehicle_year, rating, review_count, lat, lng, available_now`

func (d *Directory) List(ctx context.Context) ([]models.Candidate, error) {
	rows, err := d.db.Query(ctx, `SELECT `+selectColumns+` FROM provider_listings ORDER BY listed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list provider listings: %w", errors.Join(err, sentinel.ErrUnavailable))
	}
	defer rows.Close()

	out := []models.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider listings: %w", err)
	}
	return out, nil
}

func (d *Directory) Get(ctx context.Context, providerID id.ProviderID) (*models.Candidate, error) {
	row := d.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM provider_listings WHERE id = $1`, providerID.String())
	c, err := scanCandidate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func scanCandidate(row pgx.Row) (models.Candidate, error) {
	var (
		rawID, name, gender, transmission string
		categories                        []string
		c                                 models.Candidate
	)
	err := row.Scan(&rawID, &name, &gender, &categories, &transmission, &c.HourlyPrice,
		&c.VehicleModel, &c.VehicleYear, &c.Rating, &c.ReviewCount,
		&c.Position.Lat, &c.Position.Lng, &c.AvailableNow)
	if err != nil {
		return models.Candidate{}, fmt.Errorf("scan provider listing: %w", err)
	}

	if c.ID, err = id.ParseProviderID(rawID); err != nil {
		return models.Candidate{}, fmt.Errorf("listing %s: %w", rawID, err)
	}
	if c.Categories, err = models.ParseCategories(categories); err != nil {
		return models.Candidate{}, fmt.Errorf("listing %s: %w", rawID, err)
	}
	if c.Transmission, err = id.ParseTransmission(transmission); err != nil {
		return models.Candidate{}, fmt.Errorf("listing %s: %w", rawID, err)
	}
	c.Name = name
	c.Gender = gender
	return c, nil
}

// Seed upserts listings, keyed by id.
func (d *Directory) Seed(ctx context.Context, candidates []models.Candidate) error {
	for _, c := range candidates {
		categories := make([]string, len(c.Categories))
		for i, cat := range c.Categories {
			categories[i] = string(cat)
		}
		_, err := d.db.Exec(ctx, `INSERT INTO provider_listings (`+selectColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, gender = EXCLUDED.gender, categories = EXCLUDED.categories,
				transmission = EXCLUDED.transmission, hourly_price = EXCLUDED.hourly_price,
				vehicle_model = EXCLUDED.vehicle_model, vehicle_year = EXCLUDED.vehicle_year,
				rating = EXCLUDED.rating, review_count = EXCLUDED.review_count,
				lat = EXCLUDED.lat, lng = EXCLUDED.lng, available_now = EXCLUDED.available_now`,
			c.ID.String(), c.Name, c.Gender, categories, string(c.Transmission), c.HourlyPrice,
			c.VehicleModel, c.VehicleYear, c.Rating, c.ReviewCount,
			c.Position.Lat, c.Position.Lng, c.AvailableNow)
		if err != nil {
			return fmt.Errorf("seed listing %s: %w", c.ID, err)
		}
	}
	return nil
}
