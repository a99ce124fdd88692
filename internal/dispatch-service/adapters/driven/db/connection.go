package db

import (
	"context"
	"fmt"
	"time"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/mylogger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DataBase struct {
	cfg   *config.DBconfig
	mylog mylogger.Logger
	pool  *pgxpool.Pool
}

// ConnectDB initializes a pgx pool with retry logic and bootstraps the schema.
func ConnectDB(ctx context.Context, dbCfg *config.DBconfig, mylog mylogger.Logger) (*DataBase, error) {
	d := &DataBase{
		cfg:   dbCfg,
		mylog: mylog,
	}

	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	if err := d.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return d, nil
}

func (d *DataBase) Pool() *pgxpool.Pool {
	return d.pool
}

func (d *DataBase) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

// IsAlive pings the DB to verify it's responsive
func (d *DataBase) IsAlive(ctx context.Context) error {
	if d.pool == nil {
		return fmt.Errorf("DB is not initialized")
	}
	return d.pool.Ping(ctx)
}

// connect establishes the pool with retry logic
func (d *DataBase) connect(ctx context.Context) error {
	connStr := fmt.Sprintf(
		"postgres://%v:%v@%v:%v/%v?sslmode=disable",
		d.cfg.User,
		d.cfg.Password,
		d.cfg.Host,
		d.cfg.Port,
		d.cfg.Database,
	)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return fmt.Errorf("parse connection string: %w", err)
	}
	poolCfg.MaxConns = 8
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var lastErr error
	for i := 0; i < d.cfg.MaxRetries; i++ {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				d.pool = pool
				d.mylog.Info("Successfully connected to the database")
				return nil
			}
			pool.Close()
		}
		lastErr = err
		d.mylog.Error(fmt.Sprintf("DB connection attempt %d failed", i+1), err)

		// backoff 1s, 2s, 3s, ...
		time.Sleep(time.Second * time.Duration(i+1))
	}

	return fmt.Errorf("failed to connect to the database after %d attempts: %w", d.cfg.MaxRetries, lastErr)
}

// ensureSchema keeps the migration in code so docker-compose can bootstrap
// everything without an external tool.
func (d *DataBase) ensureSchema(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS couriers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'COURIER',
	active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS deliveries (
	id TEXT PRIMARY KEY,
	tracking_code TEXT NOT NULL UNIQUE,
	tracking_token TEXT NOT NULL UNIQUE,
	customer_name TEXT NOT NULL,
	customer_phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL,
	dest_lat DOUBLE PRECISION,
	dest_lng DOUBLE PRECISION,
	courier_id TEXT REFERENCES couriers(id),
	status TEXT NOT NULL,
	priority INT NOT NULL DEFAULT 1,
	scheduled_date DATE NOT NULL,
	photo_url TEXT,
	signature_url TEXT,
	delivery_lat DOUBLE PRECISION,
	delivery_lng DOUBLE PRECISION,
	delivery_notes TEXT,
	delivered_at TIMESTAMPTZ,
	rescheduled_count INT NOT NULL DEFAULT 0,
	reschedule_reason TEXT,
	cancelled_at TIMESTAMPTZ,
	cancel_reason TEXT,
	local_ref TEXT,
	last_synced_at TIMESTAMPTZ,
	created_by TEXT NOT NULL,
	created_by_role TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_deliveries_courier_status ON deliveries(courier_id, status);
CREATE INDEX IF NOT EXISTS idx_deliveries_status ON deliveries(status);

CREATE TABLE IF NOT EXISTS location_samples (
	id BIGSERIAL PRIMARY KEY,
	courier_id TEXT NOT NULL,
	latitude DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	accuracy DOUBLE PRECISION,
	speed_kmh DOUBLE PRECISION,
	battery INT,
	captured_at TIMESTAMPTZ NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_location_samples_courier_time ON location_samples(courier_id, captured_at DESC);

CREATE TABLE IF NOT EXISTS route_points (
	id BIGSERIAL PRIMARY KEY,
	delivery_id TEXT NOT NULL,
	courier_id TEXT NOT NULL,
	latitude DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	accuracy DOUBLE PRECISION,
	speed_kmh DOUBLE PRECISION,
	battery INT,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_route_points_delivery_time ON route_points(delivery_id, recorded_at);`

	_, err := d.pool.Exec(ctx, stmt)
	return err
}
