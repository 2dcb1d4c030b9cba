//go:build testutil
// +build testutil

package db_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/Spok95/school-attendance/internal/db"
	"github.com/Spok95/school-attendance/internal/models"
)

const school = "school-1"

func roster(date string, entries ...models.AttendanceEntry) models.AttendanceRecord {
	return models.AttendanceRecord{
		SchoolID:  school,
		Date:      date,
		Grade:     "7",
		ClassName: "A",
		StaffID:   "teacher-1",
		Records:   entries,
	}
}

func entry(id string, st models.AttendanceStatus) models.AttendanceEntry {
	return models.AttendanceEntry{StudentID: id, StudentName: "Ученик " + id, Status: st}
}

// save повторяет транзакцию сервиса без outbox: журнал и счётчики серий.
func save(t *testing.T, ctx context.Context, database *sql.DB, rec models.AttendanceRecord) int64 {
	t.Helper()
	var id int64
	err := db.InTx(ctx, database, func(tx *sql.Tx) error {
		removed, err := db.RemovedFromRoster(ctx, tx, school, rec)
		if err != nil {
			return err
		}
		if id, err = db.UpsertAttendance(ctx, tx, school, rec); err != nil {
			return err
		}
		stale, err := db.ApplyRosterStreaks(ctx, tx, school, rec.Date, rec.Records)
		if err != nil {
			return err
		}
		return db.RebuildStreaks(ctx, tx, school, append(stale, removed...))
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func streakOf(t *testing.T, ctx context.Context, database *sql.DB, studentID string) int {
	t.Helper()
	runs, err := db.ListStreaks(ctx, database, school, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range runs {
		if r.StudentID == studentID {
			return r.Days
		}
	}
	return -1
}
