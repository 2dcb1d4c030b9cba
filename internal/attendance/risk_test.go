package attendance

import (
	"testing"

	"github.com/Spok95/school-attendance/internal/models"
)

func TestRawStreaks(t *testing.T) {
	// порядок на входе перемешан специально
	records := []models.AttendanceRecord{
		day("2026-10-15", absent(st1), present(st2)),
		day("2026-10-19", absent(st1), absent(st2)),
		day("2026-10-14", present(st1), absent(st2)),
		day("2026-10-16", absent(st1), absent(st2)),
	}
	runs := RawStreaks(records)

	r1 := runs[st1]
	if r1.Days != 3 || r1.Prior != 2 || r1.LastDate != "2026-10-19" {
		t.Fatalf("st-1: %#v", r1)
	}
	r2 := runs[st2]
	if r2.Days != 2 || r2.Prior != 1 {
		t.Fatalf("st-2: %#v", r2)
	}
}

func TestRawStreaks_IgnoresExcuses(t *testing.T) {
	records := []models.AttendanceRecord{
		day("2026-10-14", absent(st1)),
		day("2026-10-15", absent(st1)),
		day("2026-10-16", absent(st1)),
	}
	runs := RawStreaks(records)
	got := AtRisk([]RawRun{runs[st1]}, nil, DefaultThreshold)
	if len(got) != 1 || got[0].Days != 3 {
		t.Fatalf("ученик с одобренными объяснительными остаётся в сырой серии: %#v", got)
	}

	// та же история по строгой политике даёт 0
	idx := IndexExcuses([]models.ExcuseRequest{
		excuse(st1, "2026-10-14", models.ExcuseApproved),
		excuse(st1, "2026-10-15", models.ExcuseApproved),
		excuse(st1, "2026-10-16", models.ExcuseApproved),
	})
	sorted := append([]models.AttendanceRecord(nil), records...)
	SortNewestFirst(sorted)
	if s := UnexcusedStreak(sorted, st1, "", idx, PolicyStrict); s != 0 {
		t.Fatalf("строгая серия должна быть 0, получили %d", s)
	}
}

func TestAtRisk(t *testing.T) {
	runs := []RawRun{
		{StudentID: "a", StudentName: "Борис", Days: 3, LastDate: "2026-10-19"},
		{StudentID: "b", StudentName: "Анна", Days: 5, LastDate: "2026-10-19"},
		{StudentID: "c", StudentName: "Вера", Days: 2, LastDate: "2026-10-19"},
		{StudentID: "d", StudentName: "Глеб", Days: 4, LastDate: "2026-10-19"},
	}
	got := AtRisk(runs, map[string]struct{}{"d": {}}, 3)
	if len(got) != 2 {
		t.Fatalf("ожидали 2 ученика, получили %#v", got)
	}
	if got[0].StudentID != "b" || got[1].StudentID != "a" {
		t.Fatalf("неверный порядок: %#v", got)
	}
}

func TestAtRisk_EmptyIsNotNil(t *testing.T) {
	if got := AtRisk(nil, nil, 3); got == nil {
		t.Fatal("пустой результат должен быть [] для JSON")
	}
}
