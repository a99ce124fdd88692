package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"courier-dispatch/internal/dispatch-service/core/domain/model"
	"courier-dispatch/internal/dispatch-service/core/myerrors"
	ports "courier-dispatch/internal/dispatch-service/core/ports/driven"

	"github.com/jackc/pgx/v5"
)

const deliveryColumns = `id, tracking_code, tracking_token, customer_name, customer_phone, address,
		dest_lat, dest_lng, courier_id, status, priority, scheduled_date,
		photo_url, signature_url, delivery_lat, delivery_lng, delivery_notes, delivered_at,
		rescheduled_count, reschedule_reason, cancelled_at, cancel_reason,
		local_ref, last_synced_at, created_by, created_by_role, created_at, updated_at`

type DeliveryRepository struct {
	db *DataBase
}

var _ ports.IDeliveryRepo = (*DeliveryRepository)(nil)

func NewDeliveryRepository(db *DataBase) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (dr *DeliveryRepository) Create(ctx context.Context, d model.Delivery) error {
	InsertQuery := `
		INSERT INTO deliveries(id, tracking_code, tracking_token, customer_name, customer_phone, address,
			dest_lat, dest_lng, courier_id, status, priority, scheduled_date,
			created_by, created_by_role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16);
	`
	_, err := dr.db.Pool().Exec(ctx, InsertQuery,
		d.ID, d.TrackingCode, d.TrackingToken, d.CustomerName, d.CustomerPhone, d.Address,
		d.DestLat, d.DestLng, d.CourierID, d.Status, d.Priority, d.ScheduledDate,
		d.CreatedBy, d.CreatedByRole, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (dr *DeliveryRepository) GetByID(ctx context.Context, id string) (model.Delivery, error) {
	query := fmt.Sprintf(`SELECT %s FROM deliveries WHERE id = $1;`, deliveryColumns)
	return dr.scanOne(dr.db.Pool().QueryRow(ctx, query, id))
}

func (dr *DeliveryRepository) GetByToken(ctx context.Context, token string) (model.Delivery, error) {
	query := fmt.Sprintf(`SELECT %s FROM deliveries WHERE tracking_token = $1;`, deliveryColumns)
	return dr.scanOne(dr.db.Pool().QueryRow(ctx, query, token))
}

// ApplyStatusUpdate performs the transition as a single conditional UPDATE:
// the row changes only if its current status is still in AllowedFrom, so two
// racing operations cannot both win.
func (dr *DeliveryRepository) ApplyStatusUpdate(ctx context.Context, upd ports.StatusUpdate) (model.Delivery, error) {
	sets, args := buildStatusSets(upd)
	idIdx := len(args) + 1
	fromIdx := len(args) + 2
	args = append(args, upd.DeliveryID, upd.AllowedFrom)

	query := fmt.Sprintf(`
		UPDATE deliveries
		SET %s
		WHERE id = $%d AND status = ANY($%d)
		RETURNING %s;
	`, strings.Join(sets, ", "), idIdx, fromIdx, deliveryColumns)

	d, err := dr.scanOne(dr.db.Pool().QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, myerrors.ErrNotFound) {
			// guard did not match: distinguish missing row from wrong state
			if _, getErr := dr.GetByID(ctx, upd.DeliveryID); getErr == nil {
				return model.Delivery{}, myerrors.ErrStatusConflict
			}
			return model.Delivery{}, myerrors.ErrNotFound
		}
		return model.Delivery{}, err
	}
	return d, nil
}

// ApplySyncUpdate is the same conditional UPDATE additionally scoped to the
// owning courier. A non-matching row (wrong owner, terminal state, unknown
// id) is reported as not-applied, never as an error: one racy item must not
// abort a batch.
func (dr *DeliveryRepository) ApplySyncUpdate(ctx context.Context, courierID string, upd ports.StatusUpdate) (bool, error) {
	sets, args := buildStatusSets(upd)
	idIdx := len(args) + 1
	courierIdx := len(args) + 2
	fromIdx := len(args) + 3
	args = append(args, upd.DeliveryID, courierID, upd.AllowedFrom)

	query := fmt.Sprintf(`
		UPDATE deliveries
		SET %s
		WHERE id = $%d AND courier_id = $%d AND status = ANY($%d);
	`, strings.Join(sets, ", "), idIdx, courierIdx, fromIdx)

	tag, err := dr.db.Pool().Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (dr *DeliveryRepository) Delete(ctx context.Context, id string) error {
	tag, err := dr.db.Pool().Exec(ctx, `DELETE FROM deliveries WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return myerrors.ErrNotFound
	}
	return nil
}

func (dr *DeliveryRepository) ListActiveByCourier(ctx context.Context, courierID string) ([]model.Delivery, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM deliveries
		WHERE courier_id = $1 AND status IN ('ASSIGNED', 'IN_TRANSIT')
		ORDER BY priority DESC, scheduled_date;
	`, deliveryColumns)
	return dr.scanMany(ctx, query, courierID)
}

func (dr *DeliveryRepository) ListByStatus(ctx context.Context, status string) ([]model.Delivery, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM deliveries
		WHERE status = $1
		ORDER BY priority DESC, scheduled_date;
	`, deliveryColumns)
	return dr.scanMany(ctx, query, status)
}

func (dr *DeliveryRepository) GetInTransitByCourier(ctx context.Context, courierID string) (model.Delivery, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM deliveries
		WHERE courier_id = $1 AND status = 'IN_TRANSIT'
		ORDER BY updated_at DESC
		LIMIT 1;
	`, deliveryColumns)
	return dr.scanOne(dr.db.Pool().QueryRow(ctx, query, courierID))
}

func (dr *DeliveryRepository) HasActiveDelivery(ctx context.Context, courierID string) (bool, error) {
	var exists bool
	err := dr.db.Pool().QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM deliveries
			WHERE courier_id = $1 AND status = 'IN_TRANSIT'
		);
	`, courierID).Scan(&exists)
	return exists, err
}

// buildStatusSets translates a StatusUpdate into SET clauses. Only fields
// present in the update are written, so a sync item without a photo never
// clears one recorded earlier.
func buildStatusSets(upd ports.StatusUpdate) ([]string, []any) {
	sets := []string{"updated_at = NOW()"}
	args := []any{}

	add := func(column string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	add("status", upd.NextStatus)
	if upd.ClearCourier {
		sets = append(sets, "courier_id = NULL")
	} else if upd.CourierID != nil {
		add("courier_id", *upd.CourierID)
	}
	if upd.ScheduledDate != nil {
		add("scheduled_date", *upd.ScheduledDate)
	}
	if upd.BumpRescheduled {
		sets = append(sets, "rescheduled_count = rescheduled_count + 1")
	}
	if upd.RescheduleReason != nil {
		add("reschedule_reason", *upd.RescheduleReason)
	}
	if upd.CancelReason != nil {
		add("cancel_reason", *upd.CancelReason)
	}
	if upd.CancelledAt != nil {
		add("cancelled_at", *upd.CancelledAt)
	}
	if upd.PhotoURL != nil {
		add("photo_url", *upd.PhotoURL)
	}
	if upd.SignatureURL != nil {
		add("signature_url", *upd.SignatureURL)
	}
	if upd.DeliveryLat != nil {
		add("delivery_lat", *upd.DeliveryLat)
	}
	if upd.DeliveryLng != nil {
		add("delivery_lng", *upd.DeliveryLng)
	}
	if upd.DeliveryNotes != nil {
		add("delivery_notes", *upd.DeliveryNotes)
	}
	if upd.DeliveredAt != nil {
		add("delivered_at", *upd.DeliveredAt)
	}
	if upd.LocalRef != nil {
		add("local_ref", *upd.LocalRef)
	}
	if upd.TouchSyncedAt {
		sets = append(sets, "last_synced_at = NOW()")
	}

	return sets, args
}

func (dr *DeliveryRepository) scanOne(row pgx.Row) (model.Delivery, error) {
	var d model.Delivery
	err := row.Scan(
		&d.ID, &d.TrackingCode, &d.TrackingToken, &d.CustomerName, &d.CustomerPhone, &d.Address,
		&d.DestLat, &d.DestLng, &d.CourierID, &d.Status, &d.Priority, &d.ScheduledDate,
		&d.PhotoURL, &d.SignatureURL, &d.DeliveryLat, &d.DeliveryLng, &d.DeliveryNotes, &d.DeliveredAt,
		&d.RescheduledCount, &d.RescheduleReason, &d.CancelledAt, &d.CancelReason,
		&d.LocalRef, &d.LastSyncedAt, &d.CreatedBy, &d.CreatedByRole, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Delivery{}, myerrors.ErrNotFound
		}
		return model.Delivery{}, err
	}
	return d, nil
}

func (dr *DeliveryRepository) scanMany(ctx context.Context, query string, args ...any) ([]model.Delivery, error) {
	rows, err := dr.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Delivery
	for rows.Next() {
		d, err := dr.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
