package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/school-attendance/internal/models"
)

// Статусы события outbox. processing без перехода в done/failed означает,
// что обработчик упал посреди работы: повторно такое событие не берётся.
const (
	EventPending    = "pending"
	EventProcessing = "processing"
	EventDone       = "done"
	EventFailed     = "failed"
)

// AttendanceEvent: запись outbox «журнал сохранён», пишется в той же транзакции, что и журнал.
// Records: снимок журнала на момент сохранения.
type AttendanceEvent struct {
	ID          string                   `json:"id"`
	SchoolID    string                   `json:"schoolId"`
	RecordID    int64                    `json:"recordId"`
	Date        string                   `json:"date"`
	Grade       string                   `json:"grade"`
	ClassName   string                   `json:"className"`
	Records     []models.AttendanceEntry `json:"records"`
	Status      string                   `json:"status"`
	Attempts    int                      `json:"attempts"`
	Emitted     int                      `json:"emitted"`
	LastError   *string                  `json:"lastError,omitempty"`
	CreatedAt   time.Time                `json:"createdAt"`
	ProcessedAt *time.Time               `json:"processedAt,omitempty"`
}

const eventColumns = `id, school_id, record_id, date::text, grade, class_name, records, status, attempts, emitted,
	last_error, created_at, processed_at`

func EnqueueAttendanceEvent(ctx context.Context, q Querier, schoolID string, recordID int64, rec models.AttendanceRecord) (string, error) {
	payload, err := json.Marshal(rec.Records)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = q.ExecContext(ctx, `
		INSERT INTO attendance_events (id, school_id, record_id, date, grade, class_name, records)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7::jsonb)
	`, id, schoolID, recordID, rec.Date, rec.Grade, rec.ClassName, string(payload))
	if err != nil {
		return "", fmt.Errorf("enqueue attendance event: %w", err)
	}
	return id, nil
}

// ClaimAttendanceEvents атомарно переводит до limit ожидающих событий в processing.
// Конкурирующие обработчики не получат одно и то же событие (SKIP LOCKED).
func ClaimAttendanceEvents(ctx context.Context, q Querier, limit int) ([]AttendanceEvent, error) {
	rows, err := q.QueryContext(ctx, `
		UPDATE attendance_events
		SET status = 'processing', attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM attendance_events
			WHERE status = 'pending'
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+eventColumns, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func MarkEventDone(ctx context.Context, q Querier, id string, emitted int) error {
	_, err := q.ExecContext(ctx, `
		UPDATE attendance_events
		SET status = 'done', emitted = $2, last_error = NULL, processed_at = now()
		WHERE id = $1
	`, id, emitted)
	return err
}

func MarkEventFailed(ctx context.Context, q Querier, id string, cause error) error {
	_, err := q.ExecContext(ctx, `
		UPDATE attendance_events
		SET status = 'failed', last_error = $2, processed_at = now()
		WHERE id = $1
	`, id, cause.Error())
	return err
}

// ListAttendanceEvents: события школы в статусе status, от новых к старым.
func ListAttendanceEvents(ctx context.Context, q Querier, schoolID, status string, limit int) ([]AttendanceEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM attendance_events
		WHERE school_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, schoolID, status, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]AttendanceEvent, error) {
	defer func() { _ = rows.Close() }()

	out := []AttendanceEvent{}
	for rows.Next() {
		var ev AttendanceEvent
		var raw []byte
		var lastErr sql.NullString
		var processed sql.NullTime
		if err := rows.Scan(&ev.ID, &ev.SchoolID, &ev.RecordID, &ev.Date, &ev.Grade, &ev.ClassName, &raw,
			&ev.Status, &ev.Attempts, &ev.Emitted, &lastErr, &ev.CreatedAt, &processed); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &ev.Records); err != nil {
			return nil, fmt.Errorf("event %s: bad records: %w", ev.ID, err)
		}
		if lastErr.Valid {
			ev.LastError = &lastErr.String
		}
		if processed.Valid {
			ev.ProcessedAt = &processed.Time
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Roster восстанавливает журнал из снимка события.
func (ev AttendanceEvent) Roster() models.AttendanceRecord {
	return models.AttendanceRecord{
		ID:        ev.RecordID,
		SchoolID:  ev.SchoolID,
		Date:      ev.Date,
		Grade:     ev.Grade,
		ClassName: ev.ClassName,
		Records:   ev.Records,
	}
}
