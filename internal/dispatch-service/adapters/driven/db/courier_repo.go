package db

import (
	"context"
	"errors"

	"courier-dispatch/internal/dispatch-service/core/domain/model"
	"courier-dispatch/internal/dispatch-service/core/myerrors"
	ports "courier-dispatch/internal/dispatch-service/core/ports/driven"

	"github.com/jackc/pgx/v5"
)

type CourierRepository struct {
	db *DataBase
}

var _ ports.ICourierRepo = (*CourierRepository)(nil)

func NewCourierRepository(db *DataBase) *CourierRepository {
	return &CourierRepository{db: db}
}

func (cr *CourierRepository) GetActiveCourier(ctx context.Context, courierID string) (model.Courier, error) {
	SelectQuery := `
		SELECT id, name, phone, role, active
		FROM couriers
		WHERE id = $1 AND active = TRUE;
	`
	var c model.Courier
	err := cr.db.Pool().QueryRow(ctx, SelectQuery, courierID).Scan(
		&c.ID,
		&c.Name,
		&c.Phone,
		&c.Role,
		&c.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Courier{}, myerrors.ErrNotFound
		}
		return model.Courier{}, err
	}
	return c, nil
}
