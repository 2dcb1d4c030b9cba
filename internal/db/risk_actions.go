package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Spok95/school-attendance/internal/models"
)

// InsertRiskAction пишет отметку о реагировании на серию пропусков ученика.
func InsertRiskAction(ctx context.Context, q Querier, schoolID string, a models.RiskAction) (models.RiskAction, error) {
	a.SchoolID = schoolID
	if a.ResolvedAt.IsZero() {
		a.ResolvedAt = time.Now()
	}
	err := q.QueryRowContext(ctx, `
		INSERT INTO risk_actions (school_id, student_id, action_type, staff_id, resolved_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, schoolID, a.StudentID, a.ActionType, a.StaffID, a.ResolvedAt).Scan(&a.ID)
	if err != nil {
		return a, fmt.Errorf("insert risk action: %w", err)
	}
	return a, nil
}

// ResolvedSince: множество учеников, по которым реагировали не раньше since.
func ResolvedSince(ctx context.Context, q Querier, schoolID string, since time.Time) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT student_id
		FROM risk_actions
		WHERE school_id = $1 AND resolved_at >= $2
	`, schoolID, since)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}
