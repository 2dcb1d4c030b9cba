//go:build testutil
// +build testutil

package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Spok95/school-attendance/internal/db"
	"github.com/Spok95/school-attendance/internal/models"
	"github.com/Spok95/school-attendance/internal/testutil/testdb"
)

func TestAttendance_UpsertKeepsSingleRow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	first := roster("2024-09-02", entry("st-1", models.StatusAbsent), entry("st-2", models.StatusPresent))
	id1, err := db.UpsertAttendance(ctx, h.DB, school, first)
	if err != nil {
		t.Fatal(err)
	}

	second := roster("2024-09-02", entry("st-1", models.StatusPresent))
	second.StaffID = "teacher-2"
	id2, err := db.UpsertAttendance(ctx, h.DB, school, second)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatalf("повторное сохранение создало новую строку: %d != %d", id1, id2)
	}

	var n int
	if err := h.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_records`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("ожидали 1 журнал, получили %d", n)
	}

	got, err := db.GetAttendance(ctx, h.DB, school, "2024-09-02", "7", "A")
	if err != nil {
		t.Fatal(err)
	}
	if got.StaffID != "teacher-2" || len(got.Records) != 1 || got.Records[0].Status != models.StatusPresent {
		t.Fatalf("список учеников должен замениться целиком, получили %#v", got)
	}
}

func TestAttendance_ReadPaths(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	for _, rec := range []models.AttendanceRecord{
		roster("2024-09-02", entry("st-1", models.StatusPresent)),
		roster("2024-09-04", entry("st-1", models.StatusLate)),
		roster("2024-09-03", entry("st-1", models.StatusAbsent)),
	} {
		if _, err := db.UpsertAttendance(ctx, h.DB, school, rec); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("нет журнала: ErrNotFound", func(t *testing.T) {
		_, err := db.GetAttendance(ctx, h.DB, school, "2024-09-05", "7", "A")
		if !errors.Is(err, db.ErrNotFound) {
			t.Fatalf("ожидали ErrNotFound, получили %v", err)
		}
	})

	t.Run("чужая школа не видна", func(t *testing.T) {
		_, err := db.GetAttendance(ctx, h.DB, "school-2", "2024-09-02", "7", "A")
		if !errors.Is(err, db.ErrNotFound) {
			t.Fatalf("ожидали ErrNotFound, получили %v", err)
		}
		list, err := db.ListClassAttendance(ctx, h.DB, "school-2", "7", "A")
		if err != nil {
			t.Fatal(err)
		}
		if list == nil || len(list) != 0 {
			t.Fatalf("ожидали пустой не-nil список, получили %#v", list)
		}
	})

	t.Run("история класса от новых к старым", func(t *testing.T) {
		list, err := db.ListClassAttendance(ctx, h.DB, school, "7", "A")
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"2024-09-04", "2024-09-03", "2024-09-02"}
		if len(list) != len(want) {
			t.Fatalf("ожидали %d журналов, получили %d", len(want), len(list))
		}
		for i, d := range want {
			if list[i].Date != d {
				t.Fatalf("позиция %d: ожидали %s, получили %s", i, d, list[i].Date)
			}
		}
	})

	t.Run("окно истории ограничено датой и лимитом", func(t *testing.T) {
		list, err := db.ListClassAttendanceUpTo(ctx, h.DB, school, "7", "A", "2024-09-03", 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 || list[0].Date != "2024-09-03" {
			t.Fatalf("получили %#v", list)
		}
	})

	t.Run("личная история", func(t *testing.T) {
		days, err := db.StudentAttendance(ctx, h.DB, school, "st-1", "", "")
		if err != nil {
			t.Fatal(err)
		}
		if len(days) != 3 || days[0].Status != models.StatusLate || days[1].Status != models.StatusAbsent {
			t.Fatalf("получили %#v", days)
		}
		other, err := db.StudentAttendance(ctx, h.DB, school, "st-1", "8", "")
		if err != nil {
			t.Fatal(err)
		}
		if len(other) != 0 {
			t.Fatalf("фильтр по параллели не сработал: %#v", other)
		}
	})

	t.Run("выгрузка по окну дат", func(t *testing.T) {
		list, err := db.ListSchoolAttendanceRange(ctx, h.DB, school, "2024-09-03", "2024-09-04")
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 || list[0].Date != "2024-09-03" {
			t.Fatalf("получили %#v", list)
		}
	})
}
