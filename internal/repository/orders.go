package repository

import (
	"context"
	"fmt"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
)

const orderColumns = `id, customer_id, pickup_lat, pickup_lng, pickup_address, drop_lat, drop_lng, drop_address,
        package_description, package_weight_kg, payment_amount, payment_currency, payment_method,
        status, assignment_id, driver_id, vehicle_id, cancel_reason, version, created_at, updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(&o.ID, &o.CustomerID,
		&o.Pickup.Lat, &o.Pickup.Lng, &o.Pickup.Address,
		&o.Drop.Lat, &o.Drop.Lng, &o.Drop.Address,
		&o.Package.Description, &o.Package.WeightKg,
		&o.Payment.Amount.Amount, &o.Payment.Amount.Currency, &o.Payment.Method,
		&o.Status, &o.AssignmentID, &o.DriverID, &o.VehicleID, &o.CancelReason,
		&o.Version, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrder - returns order by its ID.
func (r *TxRepo) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := r.tx.QueryRow(ctx, r.forUpdate(`SELECT `+orderColumns+` FROM orders WHERE id = $1`), id)
	o, err := scanOrder(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// ListOrders returns orders ordered by creation time.
func (r *TxRepo) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	rows, err := r.tx.Query(ctx, `
        SELECT `+orderColumns+` FROM orders
        WHERE ($1::text = '' OR status = $1) AND ($2::text = '' OR customer_id = $2)
        ORDER BY created_at, id
    `, string(f.Status), f.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// SaveOrder inserts or version-guarded updates an order.
func (r *TxRepo) SaveOrder(ctx context.Context, o *domain.Order) error {
	if o.Version == 0 {
		_, err := r.tx.Exec(ctx, `
            INSERT INTO orders (id, customer_id, pickup_lat, pickup_lng, pickup_address,
                                drop_lat, drop_lng, drop_address, package_description, package_weight_kg,
                                payment_amount, payment_currency, payment_method, status,
                                assignment_id, driver_id, vehicle_id, cancel_reason,
                                version, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, 1, $19, $20)
        `, o.ID, o.CustomerID, o.Pickup.Lat, o.Pickup.Lng, o.Pickup.Address,
			o.Drop.Lat, o.Drop.Lng, o.Drop.Address, o.Package.Description, o.Package.WeightKg,
			o.Payment.Amount.Amount, o.Payment.Amount.Currency, string(o.Payment.Method), string(o.Status),
			o.AssignmentID, o.DriverID, o.VehicleID, o.CancelReason, orNow(o.CreatedAt), orNow(o.UpdatedAt))
		if err != nil {
			if IsDuplicate(err) {
				return fmt.Errorf("insert order %s: %w", o.ID, apperr.ErrConflict)
			}
			return fmt.Errorf("insert order %s: %w", o.ID, err)
		}
		o.Version = 1
		return nil
	}

	ct, err := r.tx.Exec(ctx, `
        UPDATE orders
        SET status = $3, assignment_id = $4, driver_id = $5, vehicle_id = $6, cancel_reason = $7,
            version = version + 1, updated_at = $8
        WHERE id = $1 AND version = $2
    `, o.ID, o.Version, string(o.Status), o.AssignmentID, o.DriverID, o.VehicleID, o.CancelReason, orNow(o.UpdatedAt))
	if err != nil {
		return fmt.Errorf("update order %s: %w", o.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("update order %s: %w", o.ID, apperr.ErrConflict)
	}
	o.Version++
	return nil
}

// AppendTimeline inserts a timeline entry; (order_id, seq) is unique.
func (r *TxRepo) AppendTimeline(ctx context.Context, e domain.TimelineEntry) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO order_timeline (order_id, seq, from_status, to_status, actor_id, actor_role, at, note)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, e.OrderID, e.Seq, string(e.From), string(e.To), e.Actor.ID, string(e.Actor.Role), e.At, e.Note)
	if err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("append timeline %s/%d: %w", e.OrderID, e.Seq, apperr.ErrConflict)
		}
		return fmt.Errorf("append timeline %s/%d: %w", e.OrderID, e.Seq, err)
	}
	return nil
}

// Timeline returns the order history in sequence order.
func (r *TxRepo) Timeline(ctx context.Context, orderID string) ([]domain.TimelineEntry, error) {
	rows, err := r.tx.Query(ctx, `
        SELECT order_id, seq, from_status, to_status, actor_id, actor_role, at, note
        FROM order_timeline
        WHERE order_id = $1
        ORDER BY seq
    `, orderID)
	if err != nil {
		return nil, fmt.Errorf("timeline %s: %w", orderID, err)
	}
	defer rows.Close()

	out := make([]domain.TimelineEntry, 0)
	for rows.Next() {
		var e domain.TimelineEntry
		if err := rows.Scan(&e.OrderID, &e.Seq, &e.From, &e.To, &e.Actor.ID, &e.Actor.Role, &e.At, &e.Note); err != nil {
			return nil, fmt.Errorf("scan timeline: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
