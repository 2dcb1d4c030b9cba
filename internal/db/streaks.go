package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Spok95/school-attendance/internal/attendance"
	"github.com/Spok95/school-attendance/internal/models"
)

// ApplyRosterStreaks обновляет счётчики «сырых» серий пропусков по журналу за date:
//
//	более поздняя дата: prior = streak; streak = ABSENT ? streak+1 : 0
//	та же дата (перезапись): streak = ABSENT ? prior+1 : 0
//	более ранняя дата: счётчик не трогается, ученик возвращается в stale
//
// Учеников из stale нужно пересчитать по истории (RebuildStreaks).
func ApplyRosterStreaks(ctx context.Context, q Querier, schoolID, date string, entries []models.AttendanceEntry) ([]string, error) {
	var stale []string
	for _, e := range entries {
		res, err := q.ExecContext(ctx, `
			INSERT INTO student_absence_streaks AS s
			       (school_id, student_id, student_name, streak, prior_streak, last_date)
			VALUES ($1, $2, $3, CASE WHEN $4::boolean THEN 1 ELSE 0 END, 0, $5::date)
			ON CONFLICT (school_id, student_id) DO UPDATE SET
			    prior_streak = CASE WHEN EXCLUDED.last_date > s.last_date THEN s.streak ELSE s.prior_streak END,
			    streak = CASE
			        WHEN NOT $4::boolean THEN 0
			        WHEN EXCLUDED.last_date > s.last_date THEN s.streak + 1
			        ELSE s.prior_streak + 1
			    END,
			    student_name = EXCLUDED.student_name,
			    last_date = EXCLUDED.last_date,
			    updated_at = now()
			WHERE EXCLUDED.last_date >= s.last_date
		`, schoolID, e.StudentID, e.StudentName, e.Status == models.StatusAbsent, date)
		if err != nil {
			return nil, fmt.Errorf("streak %s: %w", e.StudentID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			stale = append(stale, e.StudentID)
		}
	}
	return stale, nil
}

// RemovedFromRoster блокирует текущий журнал класса за rec.Date и возвращает учеников,
// которых в нём больше нет после перезаписи. Их счётчики нужно пересчитать по истории.
// Вызывать в той же транзакции до UpsertAttendance.
func RemovedFromRoster(ctx context.Context, q Querier, schoolID string, rec models.AttendanceRecord) ([]string, error) {
	var raw []byte
	err := q.QueryRowContext(ctx, `
		SELECT records
		FROM attendance_records
		WHERE school_id = $1 AND date = $2::date AND grade = $3 AND class_name = $4
		FOR UPDATE
	`, schoolID, rec.Date, rec.Grade, rec.ClassName).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("current roster: %w", err)
	}
	var old []models.AttendanceEntry
	if err := json.Unmarshal(raw, &old); err != nil {
		return nil, fmt.Errorf("current roster: bad records: %w", err)
	}

	kept := make(map[string]struct{}, len(rec.Records))
	for _, e := range rec.Records {
		kept[e.StudentID] = struct{}{}
	}
	var removed []string
	for _, e := range old {
		if _, ok := kept[e.StudentID]; !ok {
			removed = append(removed, e.StudentID)
		}
	}
	return removed, nil
}

// RebuildStreaks пересчитывает счётчики указанных учеников по всей истории школы.
// Нужен при записи задним числом и когда ученика убрали из журнала при перезаписи.
func RebuildStreaks(ctx context.Context, q Querier, schoolID string, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	records, err := ListSchoolAttendance(ctx, q, schoolID)
	if err != nil {
		return err
	}
	runs := attendance.RawStreaks(records)

	for _, id := range studentIDs {
		run, ok := runs[id]
		if !ok {
			if _, err := q.ExecContext(ctx, `
				DELETE FROM student_absence_streaks WHERE school_id = $1 AND student_id = $2
			`, schoolID, id); err != nil {
				return err
			}
			continue
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO student_absence_streaks (school_id, student_id, student_name, streak, prior_streak, last_date)
			VALUES ($1, $2, $3, $4, $5, $6::date)
			ON CONFLICT (school_id, student_id) DO UPDATE SET
			    student_name = EXCLUDED.student_name,
			    streak = EXCLUDED.streak,
			    prior_streak = EXCLUDED.prior_streak,
			    last_date = EXCLUDED.last_date,
			    updated_at = now()
		`, schoolID, id, run.StudentName, run.Days, run.Prior, run.LastDate)
		if err != nil {
			return fmt.Errorf("rebuild streak %s: %w", id, err)
		}
	}
	return nil
}

// ListStreaks: серии не короче minDays.
func ListStreaks(ctx context.Context, q Querier, schoolID string, minDays int) ([]attendance.RawRun, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT student_id, student_name, streak, prior_streak, last_date::text
		FROM student_absence_streaks
		WHERE school_id = $1 AND streak >= $2
	`, schoolID, minDays)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []attendance.RawRun{}
	for rows.Next() {
		var r attendance.RawRun
		if err := rows.Scan(&r.StudentID, &r.StudentName, &r.Days, &r.Prior, &r.LastDate); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClearStreaks удаляет все счётчики школы.
func ClearStreaks(ctx context.Context, q Querier, schoolID string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM student_absence_streaks WHERE school_id = $1`, schoolID)
	return err
}
