package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"homefoods-delivery/internal/catalog"
	"homefoods-delivery/internal/delivery"
)

// PostgresSchema creates the tables PostgresStore uses.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS delivery_locations (
    position BIGSERIAL,
    name TEXT NOT NULL,
    state TEXT NOT NULL,
    name_key TEXT NOT NULL,
    state_key TEXT NOT NULL,
    charge INTEGER NOT NULL CHECK (charge >= 0),
    free_delivery_threshold INTEGER CHECK (free_delivery_threshold >= 0),
    PRIMARY KEY (state_key, name_key)
);
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    enabled BOOLEAN NOT NULL,
    threshold INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
    position BIGSERIAL,
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    prices JSONB NOT NULL DEFAULT '[]',
    available_cities TEXT[],
    discount_percentage INTEGER,
    discount_expires_at TIMESTAMPTZ,
    best_seller BOOLEAN NOT NULL DEFAULT FALSE,
    festival BOOLEAN NOT NULL DEFAULT FALSE
);`

// PostgresStore keeps the directory in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects to dsn, retrying up to attempts times.
func OpenPostgres(ctx context.Context, dsn string, attempts int, log *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if attempts < 1 {
		attempts = 1
	}
	for i := 1; ; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return db, nil
		}
		if i == attempts {
			break
		}
		log.Warn("postgres not ready", zap.Int("attempt", i), zap.Int("of", attempts), zap.Error(err))
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	db.Close()
	return nil, fmt.Errorf("connect postgres after %d attempts: %w", attempts, err)
}

// Migrate creates missing tables and seeds the default locations into an
// empty location table. Seeding happens once: a marker row in settings
// keeps a directory that admins emptied empty across restarts.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	var seeded bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM settings WHERE key = $1)`, seededKey).Scan(&seeded); err != nil {
		return fmt.Errorf("check seed marker: %w", err)
	}
	if seeded {
		return nil
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM delivery_locations`).Scan(&n); err != nil {
		return fmt.Errorf("count locations: %w", err)
	}
	if n == 0 {
		for _, loc := range DefaultLocations() {
			if err := s.UpsertLocation(ctx, loc); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
		}
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, enabled, threshold) VALUES ($1, TRUE, 0) ON CONFLICT (key) DO NOTHING`, seededKey); err != nil {
		return fmt.Errorf("mark seed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Locations(ctx context.Context) ([]delivery.Location, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, state, charge, free_delivery_threshold FROM delivery_locations ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	out := []delivery.Location{}
	for rows.Next() {
		var (
			loc       delivery.Location
			threshold sql.NullInt64
		)
		if err := rows.Scan(&loc.Name, &loc.State, &loc.Charge, &threshold); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		if threshold.Valid {
			loc.FreeDeliveryThreshold = delivery.IntPtr(int(threshold.Int64))
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FreeDelivery(ctx context.Context) (delivery.FreeDeliverySettings, error) {
	var fd delivery.FreeDeliverySettings
	err := s.db.QueryRowContext(ctx,
		`SELECT enabled, threshold FROM settings WHERE key = $1`, freeDeliveryKey).
		Scan(&fd.Enabled, &fd.Threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultFreeDelivery, nil
	}
	if err != nil {
		return delivery.FreeDeliverySettings{}, fmt.Errorf("query free delivery settings: %w", err)
	}
	return fd, nil
}

func (s *PostgresStore) Products(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, category, prices, available_cities,
        discount_percentage, discount_expires_at, best_seller, festival
        FROM products ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []catalog.Product
	for rows.Next() {
		var (
			p       catalog.Product
			prices  []byte
			cities  pq.StringArray
			pct     sql.NullInt64
			expires sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &prices, &cities, &pct, &expires, &p.BestSeller, &p.Festival); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if len(prices) > 0 {
			if err := json.Unmarshal(prices, &p.Prices); err != nil {
				return nil, fmt.Errorf("decode prices of %s: %w", p.ID, err)
			}
		}
		if len(cities) > 0 {
			p.AvailableCities = []string(cities)
		}
		if pct.Valid && expires.Valid {
			p.Discount = &catalog.Discount{Percentage: int(pct.Int64), ExpiresAt: expires.Time}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpsertLocation(ctx context.Context, loc delivery.Location) error {
	if err := ValidateLocation(loc); err != nil {
		return err
	}
	var threshold sql.NullInt64
	if loc.FreeDeliveryThreshold != nil {
		threshold = sql.NullInt64{Int64: int64(*loc.FreeDeliveryThreshold), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO delivery_locations
        (name, state, name_key, state_key, charge, free_delivery_threshold)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (state_key, name_key) DO UPDATE SET
        name = EXCLUDED.name, state = EXCLUDED.state, charge = EXCLUDED.charge,
        free_delivery_threshold = EXCLUDED.free_delivery_threshold`,
		loc.Name, loc.State, delivery.Normalize(loc.Name), delivery.Normalize(loc.State), loc.Charge, threshold)
	if err != nil {
		return fmt.Errorf("upsert location %s: %w", loc.Name, err)
	}
	return nil
}

func (s *PostgresStore) DeleteLocation(ctx context.Context, state, name string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM delivery_locations WHERE state_key = $1 AND name_key = $2`,
		delivery.Normalize(state), delivery.Normalize(name))
	if err != nil {
		return fmt.Errorf("delete location %s: %w", name, err)
	}
	return requireAffected(res, fmt.Sprintf("location %s, %s", name, state))
}

func (s *PostgresStore) SetFreeDelivery(ctx context.Context, fd delivery.FreeDeliverySettings) error {
	if err := ValidateSettings(fd); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO settings (key, enabled, threshold) VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE SET enabled = EXCLUDED.enabled, threshold = EXCLUDED.threshold`,
		freeDeliveryKey, fd.Enabled, fd.Threshold)
	if err != nil {
		return fmt.Errorf("save free delivery settings: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetAvailableCities(ctx context.Context, productID string, cities []string) error {
	var arg any
	if len(cities) > 0 {
		arg = pq.Array(cities)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET available_cities = $1 WHERE id = $2`, arg, productID)
	if err != nil {
		return fmt.Errorf("update available cities of %s: %w", productID, err)
	}
	return requireAffected(res, "product "+productID)
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
