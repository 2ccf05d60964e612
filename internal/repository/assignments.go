package repository

import (
	"context"
	"fmt"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
)

const assignmentColumns = `id, order_id, driver_id, vehicle_id, state, offered_at, expires_at,
        responded_at, closed_at, assigned_by_id, assigned_by_role, reason, version`

func scanAssignment(row rowScanner) (*domain.Assignment, error) {
	var a domain.Assignment
	if err := row.Scan(&a.ID, &a.OrderID, &a.DriverID, &a.VehicleID, &a.State, &a.OfferedAt, &a.ExpiresAt,
		&a.RespondedAt, &a.ClosedAt, &a.AssignedBy.ID, &a.AssignedBy.Role, &a.Reason, &a.Version); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAssignment - returns assignment by its ID.
func (r *TxRepo) GetAssignment(ctx context.Context, id string) (*domain.Assignment, error) {
	row := r.tx.QueryRow(ctx, r.forUpdate(`SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`), id)
	a, err := scanAssignment(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get assignment %s: %w", id, err)
	}
	return a, nil
}

// ListAssignments returns assignments matching the filter ordered by offer time.
func (r *TxRepo) ListAssignments(ctx context.Context, f domain.AssignmentFilter) ([]domain.Assignment, error) {
	q := `SELECT ` + assignmentColumns + ` FROM assignments WHERE TRUE`
	args := make([]any, 0, 4)
	if f.DriverID != "" {
		args = append(args, f.DriverID)
		q += fmt.Sprintf(" AND driver_id = $%d", len(args))
	}
	if f.VehicleID != "" {
		args = append(args, f.VehicleID)
		q += fmt.Sprintf(" AND vehicle_id = $%d", len(args))
	}
	if f.OrderID != "" {
		args = append(args, f.OrderID)
		q += fmt.Sprintf(" AND order_id = $%d", len(args))
	}
	if f.State != "" {
		args = append(args, string(f.State))
		q += fmt.Sprintf(" AND state = $%d", len(args))
	}
	if f.ActiveOnly {
		q += ` AND state IN ('offered', 'accepted')`
	}
	q += " ORDER BY offered_at, id"

	rows, err := r.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// SaveAssignment inserts or version-guarded updates an assignment. The partial
// unique indexes reject a second active assignment for the same vehicle, driver or order.
func (r *TxRepo) SaveAssignment(ctx context.Context, a *domain.Assignment) error {
	if a.Version == 0 {
		_, err := r.tx.Exec(ctx, `
            INSERT INTO assignments (id, order_id, driver_id, vehicle_id, state, offered_at, expires_at,
                                     responded_at, closed_at, assigned_by_id, assigned_by_role, reason, version)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
        `, a.ID, a.OrderID, a.DriverID, a.VehicleID, string(a.State), a.OfferedAt, a.ExpiresAt,
			a.RespondedAt, a.ClosedAt, a.AssignedBy.ID, string(a.AssignedBy.Role), a.Reason)
		if err != nil {
			if IsDuplicate(err) {
				return fmt.Errorf("insert assignment %s: %w", a.ID, apperr.ErrConflict)
			}
			return fmt.Errorf("insert assignment %s: %w", a.ID, err)
		}
		a.Version = 1
		return nil
	}

	ct, err := r.tx.Exec(ctx, `
        UPDATE assignments
        SET state = $3, responded_at = $4, closed_at = $5, reason = $6, version = version + 1
        WHERE id = $1 AND version = $2
    `, a.ID, a.Version, string(a.State), a.RespondedAt, a.ClosedAt, a.Reason)
	if err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("update assignment %s: %w", a.ID, apperr.ErrConflict)
		}
		return fmt.Errorf("update assignment %s: %w", a.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("update assignment %s: %w", a.ID, apperr.ErrConflict)
	}
	a.Version++
	return nil
}

// AddExclusion records that a driver must be skipped by the next auto-match of the order.
func (r *TxRepo) AddExclusion(ctx context.Context, orderID, driverID string) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO assignment_exclusions (order_id, driver_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING
    `, orderID, driverID)
	if err != nil {
		return fmt.Errorf("add exclusion %s/%s: %w", orderID, driverID, err)
	}
	return nil
}

// Excluded returns the drivers excluded from auto-matching for the order.
func (r *TxRepo) Excluded(ctx context.Context, orderID string) (map[string]bool, error) {
	rows, err := r.tx.Query(ctx, `SELECT driver_id FROM assignment_exclusions WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("excluded drivers %s: %w", orderID, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan excluded driver: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

// ClearExclusions forgets every exclusion recorded for the order.
func (r *TxRepo) ClearExclusions(ctx context.Context, orderID string) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM assignment_exclusions WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("clear exclusions %s: %w", orderID, err)
	}
	return nil
}
