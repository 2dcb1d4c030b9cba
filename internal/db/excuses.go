package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Spok95/school-attendance/internal/models"
)

const excuseColumns = `id, school_id, student_id, student_name, grade, class_name, date::text,
	reason, details, attachment_url, status, submitted_at`

// CreateExcuse сохраняет объяснительную. Пустой статус: PENDING.
func CreateExcuse(ctx context.Context, q Querier, schoolID string, e models.ExcuseRequest) (models.ExcuseRequest, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = models.ExcusePending
	}
	e.SchoolID = schoolID
	err := q.QueryRowContext(ctx, `
		INSERT INTO excuse_requests (id, school_id, student_id, student_name, grade, class_name, date,
		                             reason, details, attachment_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8, $9, $10, $11)
		RETURNING submitted_at
	`, e.ID, schoolID, e.StudentID, e.StudentName, e.Grade, e.ClassName, e.Date,
		e.Reason, e.Details, e.AttachmentURL, string(e.Status)).Scan(&e.SubmittedAt)
	if err != nil {
		return e, fmt.Errorf("insert excuse: %w", err)
	}
	return e, nil
}

// SetExcuseStatus меняет статус объяснительной; ErrNotFound, если её нет.
func SetExcuseStatus(ctx context.Context, q Querier, schoolID, id string, status models.ExcuseStatus) (*models.ExcuseRequest, error) {
	row := q.QueryRowContext(ctx, `
		UPDATE excuse_requests SET status = $3
		WHERE school_id = $1 AND id = $2
		RETURNING `+excuseColumns, schoolID, id, string(status))
	e, err := scanExcuse(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListExcuses: объяснительные школы; studentID фильтрует по ученику, если задан.
func ListExcuses(ctx context.Context, q Querier, schoolID, studentID string) ([]models.ExcuseRequest, error) {
	query := `SELECT ` + excuseColumns + ` FROM excuse_requests WHERE school_id = $1`
	args := []any{schoolID}
	if studentID != "" {
		query += " AND student_id = $2"
		args = append(args, studentID)
	}
	query += " ORDER BY date DESC, submitted_at DESC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectExcuses(rows)
}

// ListExcusesForStudents: объяснительные по набору учеников, датированные не раньше from
// (пустой from: без ограничения). Одним запросом на весь журнал.
func ListExcusesForStudents(ctx context.Context, q Querier, schoolID string, studentIDs []string, from string) ([]models.ExcuseRequest, error) {
	if len(studentIDs) == 0 {
		return []models.ExcuseRequest{}, nil
	}
	query := `SELECT ` + excuseColumns + ` FROM excuse_requests WHERE school_id = $1 AND student_id = ANY($2)`
	args := []any{schoolID, pq.Array(studentIDs)}
	if from != "" {
		query += " AND date >= $3::date"
		args = append(args, from)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectExcuses(rows)
}

func scanExcuse(row rowScanner) (models.ExcuseRequest, error) {
	var e models.ExcuseRequest
	var attachment sql.NullString
	var status string
	err := row.Scan(&e.ID, &e.SchoolID, &e.StudentID, &e.StudentName, &e.Grade, &e.ClassName, &e.Date,
		&e.Reason, &e.Details, &attachment, &status, &e.SubmittedAt)
	if err != nil {
		return e, err
	}
	if attachment.Valid {
		e.AttachmentURL = &attachment.String
	}
	e.Status = models.ExcuseStatus(status)
	return e, nil
}

func collectExcuses(rows *sql.Rows) ([]models.ExcuseRequest, error) {
	defer func() { _ = rows.Close() }()

	out := []models.ExcuseRequest{}
	for rows.Next() {
		e, err := scanExcuse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
