package db

import (
	"context"
	"errors"

	"courier-dispatch/internal/dispatch-service/core/domain/model"
	"courier-dispatch/internal/dispatch-service/core/myerrors"
	ports "courier-dispatch/internal/dispatch-service/core/ports/driven"

	"github.com/jackc/pgx/v5"
)

type LocationRepository struct {
	db *DataBase
}

var _ ports.ILocationRepo = (*LocationRepository)(nil)

func NewLocationRepository(db *DataBase) *LocationRepository {
	return &LocationRepository{db: db}
}

func (lr *LocationRepository) InsertSample(ctx context.Context, s model.LocationSample) error {
	InsertQuery := `
		INSERT INTO location_samples(courier_id, latitude, longitude, accuracy, speed_kmh, battery, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := lr.db.Pool().Exec(ctx, InsertQuery,
		s.CourierID, s.Latitude, s.Longitude, s.Accuracy, s.SpeedKmh, s.Battery, s.CapturedAt,
	)
	return err
}

// BulkInsertSamples appends a queued batch in one round trip. No per-item
// cross-validation: duplicates are harmless, samples carry their own capture
// timestamp.
func (lr *LocationRepository) BulkInsertSamples(ctx context.Context, samples []model.LocationSample) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, s := range samples {
		batch.Queue(`
			INSERT INTO location_samples(courier_id, latitude, longitude, accuracy, speed_kmh, battery, captured_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7);
		`, s.CourierID, s.Latitude, s.Longitude, s.Accuracy, s.SpeedKmh, s.Battery, s.CapturedAt)
	}

	results := lr.db.Pool().SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range samples {
		if _, err := results.Exec(); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func (lr *LocationRepository) LatestPerCourier(ctx context.Context) ([]model.CourierPosition, error) {
	SelectQuery := `
		SELECT DISTINCT ON (ls.courier_id)
			ls.courier_id, c.name, ls.latitude, ls.longitude, ls.speed_kmh, ls.battery, ls.captured_at
		FROM location_samples ls
		JOIN couriers c ON c.id = ls.courier_id
		WHERE c.active = TRUE
		ORDER BY ls.courier_id, ls.captured_at DESC;
	`
	rows, err := lr.db.Pool().Query(ctx, SelectQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CourierPosition
	for rows.Next() {
		var p model.CourierPosition
		if err := rows.Scan(&p.CourierID, &p.CourierName, &p.Latitude, &p.Longitude, &p.SpeedKmh, &p.Battery, &p.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (lr *LocationRepository) InsertRoutePoint(ctx context.Context, p model.RoutePoint) error {
	InsertQuery := `
		INSERT INTO route_points(delivery_id, courier_id, latitude, longitude, accuracy, speed_kmh, battery, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := lr.db.Pool().Exec(ctx, InsertQuery,
		p.DeliveryID, p.CourierID, p.Latitude, p.Longitude, p.Accuracy, p.SpeedKmh, p.Battery, p.RecordedAt,
	)
	return err
}

func (lr *LocationRepository) LatestRoutePoint(ctx context.Context, deliveryID string) (model.RoutePoint, error) {
	SelectQuery := `
		SELECT id, delivery_id, courier_id, latitude, longitude, accuracy, speed_kmh, battery, recorded_at
		FROM route_points
		WHERE delivery_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1;
	`
	var p model.RoutePoint
	err := lr.db.Pool().QueryRow(ctx, SelectQuery, deliveryID).Scan(
		&p.ID, &p.DeliveryID, &p.CourierID, &p.Latitude, &p.Longitude, &p.Accuracy, &p.SpeedKmh, &p.Battery, &p.RecordedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.RoutePoint{}, myerrors.ErrNotFound
		}
		return model.RoutePoint{}, err
	}
	return p, nil
}

func (lr *LocationRepository) RoutePoints(ctx context.Context, deliveryID string) ([]model.RoutePoint, error) {
	SelectQuery := `
		SELECT id, delivery_id, courier_id, latitude, longitude, accuracy, speed_kmh, battery, recorded_at
		FROM route_points
		WHERE delivery_id = $1
		ORDER BY recorded_at;
	`
	rows, err := lr.db.Pool().Query(ctx, SelectQuery, deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RoutePoint
	for rows.Next() {
		var p model.RoutePoint
		if err := rows.Scan(&p.ID, &p.DeliveryID, &p.CourierID, &p.Latitude, &p.Longitude, &p.Accuracy, &p.SpeedKmh, &p.Battery, &p.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
