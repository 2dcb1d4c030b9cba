package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Spok95/school-attendance/internal/models"
)

const attendanceColumns = `id, school_id, date::text, grade, class_name, staff_id, records, updated_at`

// UpsertAttendance атомарно сохраняет журнал класса за день: новая запись или полная
// замена списка учеников и автора существующей. Возвращает id записи.
func UpsertAttendance(ctx context.Context, q Querier, schoolID string, rec models.AttendanceRecord) (int64, error) {
	payload, err := json.Marshal(rec.Records)
	if err != nil {
		return 0, fmt.Errorf("marshal records: %w", err)
	}
	var id int64
	err = q.QueryRowContext(ctx, `
		INSERT INTO attendance_records (school_id, date, grade, class_name, staff_id, records)
		VALUES ($1, $2::date, $3, $4, $5, $6::jsonb)
		ON CONFLICT (school_id, date, grade, class_name)
		DO UPDATE SET records = EXCLUDED.records,
		              staff_id = EXCLUDED.staff_id,
		              updated_at = now()
		RETURNING id
	`, schoolID, rec.Date, rec.Grade, rec.ClassName, rec.StaffID, string(payload)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert attendance: %w", err)
	}
	return id, nil
}

// GetAttendance: журнал класса за дату или ErrNotFound.
func GetAttendance(ctx context.Context, q Querier, schoolID, date, grade, className string) (*models.AttendanceRecord, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance_records
		WHERE school_id = $1 AND date = $2::date AND grade = $3 AND class_name = $4
	`, schoolID, date, grade, className)
	rec, err := scanAttendance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ListClassAttendance: вся история класса, от новых дат к старым.
func ListClassAttendance(ctx context.Context, q Querier, schoolID, grade, className string) ([]models.AttendanceRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance_records
		WHERE school_id = $1 AND grade = $2 AND class_name = $3
		ORDER BY date DESC
	`, schoolID, grade, className)
	if err != nil {
		return nil, err
	}
	return collectAttendance(rows)
}

// ListClassAttendanceUpTo: не более limit последних журналов класса на дату date включительно.
func ListClassAttendanceUpTo(ctx context.Context, q Querier, schoolID, grade, className, date string, limit int) ([]models.AttendanceRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance_records
		WHERE school_id = $1 AND grade = $2 AND class_name = $3 AND date <= $4::date
		ORDER BY date DESC
		LIMIT $5
	`, schoolID, grade, className, date, limit)
	if err != nil {
		return nil, err
	}
	return collectAttendance(rows)
}

// ListSchoolAttendance: все журналы школы. Порядок не гарантируется.
func ListSchoolAttendance(ctx context.Context, q Querier, schoolID string) ([]models.AttendanceRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance_records
		WHERE school_id = $1
	`, schoolID)
	if err != nil {
		return nil, err
	}
	return collectAttendance(rows)
}

// ListSchoolAttendanceRange: журналы школы в окне [from, to), для выгрузки.
func ListSchoolAttendanceRange(ctx context.Context, q Querier, schoolID, from, to string) ([]models.AttendanceRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance_records
		WHERE school_id = $1 AND date >= $2::date AND date < $3::date
		ORDER BY grade, class_name, date
	`, schoolID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAttendance(rows)
}

// StudentAttendance: личная история ученика, от новых дат к старым.
// Пустые grade/className: по всем классам.
func StudentAttendance(ctx context.Context, q Querier, schoolID, studentID, grade, className string) ([]models.StudentDay, error) {
	query := `
		SELECT r.date::text, e->>'status'
		FROM attendance_records r
		CROSS JOIN LATERAL jsonb_array_elements(r.records) AS e
		WHERE r.school_id = $1 AND e->>'studentId' = $2
	`
	args := []any{schoolID, studentID}
	idx := 3
	if grade != "" {
		query += fmt.Sprintf(" AND r.grade = $%d", idx)
		args = append(args, grade)
		idx++
	}
	if className != "" {
		query += fmt.Sprintf(" AND r.class_name = $%d", idx)
		args = append(args, className)
	}
	query += " ORDER BY r.date DESC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.StudentDay{}
	for rows.Next() {
		var d models.StudentDay
		var status string
		if err := rows.Scan(&d.Date, &status); err != nil {
			return nil, err
		}
		d.Status = models.AttendanceStatus(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ClearAttendance удаляет все журналы школы (события outbox удаляются каскадом).
func ClearAttendance(ctx context.Context, q Querier, schoolID string) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM attendance_records WHERE school_id = $1`, schoolID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttendance(row rowScanner) (models.AttendanceRecord, error) {
	var rec models.AttendanceRecord
	var raw []byte
	if err := row.Scan(&rec.ID, &rec.SchoolID, &rec.Date, &rec.Grade, &rec.ClassName, &rec.StaffID, &raw, &rec.UpdatedAt); err != nil {
		return rec, err
	}
	if err := json.Unmarshal(raw, &rec.Records); err != nil {
		return rec, fmt.Errorf("attendance %d: bad records: %w", rec.ID, err)
	}
	return rec, nil
}

func collectAttendance(rows *sql.Rows) ([]models.AttendanceRecord, error) {
	defer func() { _ = rows.Close() }()

	out := []models.AttendanceRecord{}
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
