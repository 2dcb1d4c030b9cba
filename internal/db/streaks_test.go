//go:build testutil
// +build testutil

package db_test

import (
	"context"
	"testing"

	"github.com/Spok95/school-attendance/internal/attendance"
	"github.com/Spok95/school-attendance/internal/db"
	"github.com/Spok95/school-attendance/internal/models"
	"github.com/Spok95/school-attendance/internal/testutil/testdb"
)

func TestStreaks_Incremental(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	save(t, ctx, h.DB, roster("2024-09-02", entry("st-1", models.StatusAbsent)))
	save(t, ctx, h.DB, roster("2024-09-03", entry("st-1", models.StatusAbsent)))
	save(t, ctx, h.DB, roster("2024-09-04", entry("st-1", models.StatusAbsent)))
	if got := streakOf(t, ctx, h.DB, "st-1"); got != 3 {
		t.Fatalf("ожидали серию 3, получили %d", got)
	}

	// перезапись последнего дня пересчитывает его от предыдущей серии
	save(t, ctx, h.DB, roster("2024-09-04", entry("st-1", models.StatusPresent)))
	if got := streakOf(t, ctx, h.DB, "st-1"); got != 0 {
		t.Fatalf("после исправления на PRESENT ожидали 0, получили %d", got)
	}
	save(t, ctx, h.DB, roster("2024-09-04", entry("st-1", models.StatusAbsent)))
	if got := streakOf(t, ctx, h.DB, "st-1"); got != 3 {
		t.Fatalf("после возврата ABSENT ожидали 3, получили %d", got)
	}

	runs, err := db.ListStreaks(ctx, h.DB, school, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].LastDate != "2024-09-04" || runs[0].StudentName != "Ученик st-1" {
		t.Fatalf("получили %#v", runs)
	}
}

func TestStreaks_BackfillRebuilds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	save(t, ctx, h.DB, roster("2024-09-03", entry("st-1", models.StatusAbsent)))
	save(t, ctx, h.DB, roster("2024-09-04", entry("st-1", models.StatusAbsent)))
	if got := streakOf(t, ctx, h.DB, "st-1"); got != 2 {
		t.Fatalf("ожидали 2, получили %d", got)
	}

	// журнал задним числом продлевает серию
	save(t, ctx, h.DB, roster("2024-09-02", entry("st-1", models.StatusAbsent)))
	if got := streakOf(t, ctx, h.DB, "st-1"); got != 3 {
		t.Fatalf("после записи задним числом ожидали 3, получили %d", got)
	}

	runs, err := db.ListStreaks(ctx, h.DB, school, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].LastDate != "2024-09-04" {
		t.Fatalf("дата последней записи не должна сдвигаться назад: %#v", runs)
	}

	if err := db.ClearStreaks(ctx, h.DB, school); err != nil {
		t.Fatal(err)
	}
	if got := streakOf(t, ctx, h.DB, "st-1"); got != -1 {
		t.Fatalf("после очистки счётчиков не должно быть, получили %d", got)
	}
}

func TestStreaks_RemovedFromRosterRebuilds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	for _, d := range []string{"2024-09-02", "2024-09-03", "2024-09-04"} {
		save(t, ctx, h.DB, roster(d, entry("st-1", models.StatusAbsent), entry("st-2", models.StatusAbsent)))
	}
	if got := streakOf(t, ctx, h.DB, "st-1"); got != 3 {
		t.Fatalf("ожидали 3, получили %d", got)
	}

	// ученика ошибочно внесли в журнал за 04.09: перезапись без него
	save(t, ctx, h.DB, roster("2024-09-04", entry("st-2", models.StatusAbsent)))
	if got := streakOf(t, ctx, h.DB, "st-1"); got != 2 {
		t.Fatalf("после удаления из журнала ожидали 2, получили %d", got)
	}
	if got := streakOf(t, ctx, h.DB, "st-2"); got != 3 {
		t.Fatalf("серия оставшегося ученика не должна меняться: %d", got)
	}

	// ученик без единой записи теряет счётчик совсем
	save(t, ctx, h.DB, models.AttendanceRecord{
		SchoolID: school, Date: "2024-09-05", Grade: "8", ClassName: "B", StaffID: "teacher-2",
		Records: []models.AttendanceEntry{entry("st-3", models.StatusAbsent)},
	})
	save(t, ctx, h.DB, models.AttendanceRecord{
		SchoolID: school, Date: "2024-09-05", Grade: "8", ClassName: "B", StaffID: "teacher-2",
		Records: []models.AttendanceEntry{entry("st-4", models.StatusPresent)},
	})
	if got := streakOf(t, ctx, h.DB, "st-3"); got != -1 {
		t.Fatalf("счётчик ученика без записей должен удаляться, получили %d", got)
	}

	// инкрементальные счётчики совпадают с пересчётом по всей истории
	records, err := db.ListSchoolAttendance(ctx, h.DB, school)
	if err != nil {
		t.Fatal(err)
	}
	want := attendance.RawStreaks(records)
	runs, err := db.ListStreaks(ctx, h.DB, school, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != len(want) {
		t.Fatalf("счётчиков %d, по истории %d: %#v", len(runs), len(want), runs)
	}
	for _, r := range runs {
		w, ok := want[r.StudentID]
		if !ok || w.Days != r.Days || w.Prior != r.Prior || w.LastDate != r.LastDate {
			t.Fatalf("%s: счётчик %#v, по истории %#v", r.StudentID, r, w)
		}
	}
}
