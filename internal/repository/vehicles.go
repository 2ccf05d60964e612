package repository

import (
	"context"
	"fmt"
	"time"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
)

const vehicleColumns = `id, registration, type, capacity_kg, status, lat, lng, address,
        assigned_driver_id, version, created_at, updated_at`

func scanVehicle(row rowScanner) (*domain.Vehicle, error) {
	var (
		v        domain.Vehicle
		lat, lng *float64
		address  *string
	)
	if err := row.Scan(&v.ID, &v.Registration, &v.Type, &v.CapacityKg, &v.Status, &lat, &lng, &address,
		&v.AssignedDriverID, &v.Version, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		v.Location = &domain.Location{Lat: *lat, Lng: *lng}
		if address != nil {
			v.Location.Address = *address
		}
	}
	return &v, nil
}

// GetVehicle - returns vehicle by its ID.
func (r *TxRepo) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	row := r.tx.QueryRow(ctx, r.forUpdate(`SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`), id)
	v, err := scanVehicle(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get vehicle %s: %w", id, err)
	}
	return v, nil
}

// GetVehicleByRegistration - returns vehicle by its registration number.
func (r *TxRepo) GetVehicleByRegistration(ctx context.Context, registration string) (*domain.Vehicle, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE registration = $1`, registration)
	v, err := scanVehicle(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get vehicle by registration %q: %w", registration, err)
	}
	return v, nil
}

// ListVehicles returns vehicles matching the filter ordered by id.
func (r *TxRepo) ListVehicles(ctx context.Context, f domain.VehicleFilter) ([]domain.Vehicle, error) {
	q := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE capacity_kg >= $1`
	args := []any{f.MinCapacityKg}
	if f.Type != "" {
		args = append(args, string(f.Type))
		q += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	q += " ORDER BY id"

	rows, err := r.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Vehicle, 0)
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// SaveVehicle inserts or version-guarded updates a vehicle.
func (r *TxRepo) SaveVehicle(ctx context.Context, v *domain.Vehicle) error {
	var lat, lng *float64
	var address *string
	if v.Location != nil {
		lat, lng, address = &v.Location.Lat, &v.Location.Lng, &v.Location.Address
	}

	if v.Version == 0 {
		_, err := r.tx.Exec(ctx, `
            INSERT INTO vehicles (id, registration, type, capacity_kg, status, lat, lng, address,
                                  assigned_driver_id, version, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11)
        `, v.ID, v.Registration, string(v.Type), v.CapacityKg, string(v.Status), lat, lng, address,
			v.AssignedDriverID, orNow(v.CreatedAt), orNow(v.UpdatedAt))
		if err != nil {
			if IsDuplicate(err) {
				if violatedConstraint(err) == "vehicles_registration_key" {
					return apperr.ErrDuplicateRegistration
				}
				return fmt.Errorf("insert vehicle %s: %w", v.ID, apperr.ErrConflict)
			}
			return fmt.Errorf("insert vehicle %s: %w", v.ID, err)
		}
		v.Version = 1
		return nil
	}

	ct, err := r.tx.Exec(ctx, `
        UPDATE vehicles
        SET type = $3, capacity_kg = $4, status = $5, lat = $6, lng = $7, address = $8,
            assigned_driver_id = $9, version = version + 1, updated_at = $10
        WHERE id = $1 AND version = $2
    `, v.ID, v.Version, string(v.Type), v.CapacityKg, string(v.Status), lat, lng, address,
		v.AssignedDriverID, orNow(v.UpdatedAt))
	if err != nil {
		return fmt.Errorf("update vehicle %s: %w", v.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("update vehicle %s: %w", v.ID, apperr.ErrConflict)
	}
	v.Version++
	return nil
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
