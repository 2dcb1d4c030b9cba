package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/Spok95/school-attendance/internal/models"
)

// UpsertStaff создаёт или обновляет сотрудника. Сотрудник другой школы с тем же id
// не перезаписывается: возвращается ErrConflict.
func UpsertStaff(ctx context.Context, q Querier, schoolID string, u models.StaffUser) error {
	if u.Assignments == nil {
		u.Assignments = []models.Assignment{}
	}
	if u.Permissions == nil {
		u.Permissions = []string{}
	}
	assignments, err := json.Marshal(u.Assignments)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO staff_users AS s (id, school_id, name, permissions, assignments)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name,
		                               permissions = EXCLUDED.permissions,
		                               assignments = EXCLUDED.assignments
		WHERE s.school_id = EXCLUDED.school_id
	`, u.ID, schoolID, u.Name, pq.Array(u.Permissions), string(assignments))
	if err != nil {
		return fmt.Errorf("upsert staff: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("upsert staff: %w", err)
	} else if n == 0 {
		return fmt.Errorf("staff %s belongs to another school: %w", u.ID, ErrConflict)
	}
	return nil
}

// ListEscalationStaff возвращает сотрудников с правом deputy или students, им уходят эскалации по пропускам.
func ListEscalationStaff(ctx context.Context, q Querier, schoolID string) ([]models.StaffUser, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, school_id, name, permissions::text, assignments
		FROM staff_users
		WHERE school_id = $1 AND permissions && $2
		ORDER BY id
	`, schoolID, pq.Array([]string{models.PermDeputy, models.PermStudents}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.StaffUser{}
	for rows.Next() {
		var u models.StaffUser
		var raw []byte
		if err := rows.Scan(&u.ID, &u.SchoolID, &u.Name, pq.Array(&u.Permissions), &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &u.Assignments); err != nil {
			return nil, fmt.Errorf("staff %s: bad assignments: %w", u.ID, err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
