package repository

import (
	"context"
	"fmt"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
)

const driverColumns = `id, name, phone, email, license_number, vehicle_registration, status, rating,
        deliveries, last_assigned_at, version, created_at, updated_at`

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var d domain.Driver
	if err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.Email, &d.LicenseNumber, &d.VehicleRegistration,
		&d.Status, &d.Rating, &d.Deliveries, &d.LastAssignedAt, &d.Version, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDriver - returns driver by its ID.
func (r *TxRepo) GetDriver(ctx context.Context, id string) (*domain.Driver, error) {
	row := r.tx.QueryRow(ctx, r.forUpdate(`SELECT `+driverColumns+` FROM drivers WHERE id = $1`), id)
	d, err := scanDriver(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get driver %s: %w", id, err)
	}
	return d, nil
}

// ListDrivers returns drivers ordered by id, optionally narrowed to one status.
func (r *TxRepo) ListDrivers(ctx context.Context, f domain.DriverFilter) ([]domain.Driver, error) {
	rows, err := r.tx.Query(ctx, `
        SELECT `+driverColumns+` FROM drivers
        WHERE ($1::text = '' OR status = $1)
        ORDER BY id
    `, string(f.Status))
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Driver, 0)
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// SaveDriver inserts or version-guarded updates a driver.
func (r *TxRepo) SaveDriver(ctx context.Context, d *domain.Driver) error {
	if d.Version == 0 {
		_, err := r.tx.Exec(ctx, `
            INSERT INTO drivers (id, name, phone, email, license_number, vehicle_registration, status,
                                 rating, deliveries, last_assigned_at, version, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12)
        `, d.ID, d.Name, d.Phone, d.Email, d.LicenseNumber, d.VehicleRegistration, string(d.Status),
			d.Rating, d.Deliveries, d.LastAssignedAt, orNow(d.CreatedAt), orNow(d.UpdatedAt))
		if err != nil {
			if IsDuplicate(err) {
				return fmt.Errorf("insert driver %s: %w", d.ID, apperr.ErrConflict)
			}
			return fmt.Errorf("insert driver %s: %w", d.ID, err)
		}
		d.Version = 1
		return nil
	}

	ct, err := r.tx.Exec(ctx, `
        UPDATE drivers
        SET name = $3, phone = $4, email = $5, license_number = $6, vehicle_registration = $7,
            status = $8, rating = $9, deliveries = $10, last_assigned_at = $11,
            version = version + 1, updated_at = $12
        WHERE id = $1 AND version = $2
    `, d.ID, d.Version, d.Name, d.Phone, d.Email, d.LicenseNumber, d.VehicleRegistration,
		string(d.Status), d.Rating, d.Deliveries, d.LastAssignedAt, orNow(d.UpdatedAt))
	if err != nil {
		return fmt.Errorf("update driver %s: %w", d.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("update driver %s: %w", d.ID, apperr.ErrConflict)
	}
	d.Version++
	return nil
}
