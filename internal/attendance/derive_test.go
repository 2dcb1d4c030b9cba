package attendance

import (
	"testing"

	"github.com/Spok95/school-attendance/internal/models"
)

var audience = []models.StaffUser{
	{ID: "deputy-1", Permissions: []string{models.PermDeputy}},
	{ID: "counselor-1", Permissions: []string{models.PermStudents}},
}

func TestDeriveNotifications_PerStatus(t *testing.T) {
	roster := day("2026-10-19", absent(st1), late(st2), present("st-3"))
	ns := DeriveNotifications(DeriveInput{Roster: roster, Audience: audience}).Notifications

	if len(ns) != 2 {
		t.Fatalf("ожидали 2 уведомления, получили %d: %#v", len(ns), ns)
	}
	if countByTarget(ns, st1, models.NotificationAlert) != 1 {
		t.Fatal("ожидали alert о пропуске для st-1")
	}
	if countByTarget(ns, st2, models.NotificationInfo) != 1 {
		t.Fatal("ожидали info об опоздании для st-2")
	}
}

func TestDeriveNotifications_PresentBreaksHistory(t *testing.T) {
	roster := day("2026-10-19", absent(st1))
	history := []models.AttendanceRecord{
		roster,
		day("2026-10-16", present(st1)),
		day("2026-10-15", absent(st1)),
		day("2026-10-14", absent(st1)),
	}
	ns := DeriveNotifications(DeriveInput{Roster: roster, History: history, Audience: audience}).Notifications
	if len(ns) != 1 {
		t.Fatalf("ожидали только ежедневное уведомление, получили %d", len(ns))
	}
}

func TestDeriveNotifications_ApprovedExcuseBreaksStreak(t *testing.T) {
	roster := day("2026-10-19", absent(st1))
	history := []models.AttendanceRecord{
		day("2026-10-14", absent(st1)),
		day("2026-10-16", absent(st1)),
	}
	ns := DeriveNotifications(DeriveInput{
		Roster:   roster,
		History:  history,
		Excuses:  []models.ExcuseRequest{excuse(st1, "2026-10-14", models.ExcuseApproved)},
		Audience: audience,
	}).Notifications
	if len(ns) != 1 {
		t.Fatalf("серия 2 не должна эскалироваться, получили %d уведомлений", len(ns))
	}
}

func TestDeriveNotifications_PendingExcuseBreaksStreak(t *testing.T) {
	roster := day("2026-10-19", absent(st1))
	history := []models.AttendanceRecord{
		day("2026-10-16", absent(st1)),
		day("2026-10-15", absent(st1)),
	}
	ns := DeriveNotifications(DeriveInput{
		Roster:   roster,
		History:  history,
		Excuses:  []models.ExcuseRequest{excuse(st1, "2026-10-16", models.ExcusePending)},
		Audience: audience,
	}).Notifications
	if len(ns) != 1 {
		t.Fatalf("PENDING прерывает серию при рассылке, получили %d уведомлений", len(ns))
	}
}

func TestDeriveNotifications_ExactThreshold(t *testing.T) {
	d1 := day("2026-10-14", absent(st1))
	d2 := day("2026-10-15", absent(st1))
	d3 := day("2026-10-16", absent(st1))
	d4 := day("2026-10-19", absent(st1))

	t.Run("third_day_escalates", func(t *testing.T) {
		ns := DeriveNotifications(DeriveInput{
			Roster:   d3,
			History:  []models.AttendanceRecord{d3, d2, d1},
			Audience: audience,
		}).Notifications
		if got := countByTarget(ns, st1, models.NotificationAlert); got != 2 {
			t.Fatalf("родителю: ожидали 2 alert (пропуск + эскалация), получили %d", got)
		}
		for _, s := range audience {
			if got := countByTarget(ns, s.ID, models.NotificationAlert); got != 1 {
				t.Fatalf("%s: ожидали 1 эскалацию, получили %d", s.ID, got)
			}
		}
		if len(ns) != 2+len(audience) {
			t.Fatalf("ожидали %d уведомлений, получили %d", 2+len(audience), len(ns))
		}
	})

	t.Run("fourth_day_does_not_refire", func(t *testing.T) {
		ns := DeriveNotifications(DeriveInput{
			Roster:   d4,
			History:  []models.AttendanceRecord{d4, d3, d2, d1},
			Audience: audience,
		}).Notifications
		if len(ns) != 1 {
			t.Fatalf("на 4-й день только ежедневное уведомление, получили %d", len(ns))
		}
	})

	t.Run("custom_threshold", func(t *testing.T) {
		ns := DeriveNotifications(DeriveInput{
			Roster:    d2,
			History:   []models.AttendanceRecord{d2, d1},
			Audience:  audience,
			Threshold: 2,
		}).Notifications
		if len(ns) != 2+len(audience) {
			t.Fatalf("ожидали эскалацию на пороге 2, получили %d", len(ns))
		}
	})
}

func TestDeriveNotifications_RosterMissingFromHistory(t *testing.T) {
	roster := day("2026-10-16", absent(st1))
	stale := day("2026-10-16", present(st1))
	ns := DeriveNotifications(DeriveInput{
		Roster:   roster,
		History:  []models.AttendanceRecord{stale, day("2026-10-15", absent(st1)), day("2026-10-14", absent(st1))},
		Audience: audience,
	}).Notifications
	if len(ns) != 2+len(audience) {
		t.Fatalf("сохранённый журнал должен заменить устаревшую запись, получили %d", len(ns))
	}
}

func TestDeriveNotifications_SingleBatch(t *testing.T) {
	roster := day("2026-10-19", absent(st1), absent(st2), present("st-3"), present("st-4"))
	ns := DeriveNotifications(DeriveInput{Roster: roster, Audience: audience}).Notifications
	if len(ns) != 2 {
		t.Fatalf("ожидали ровно M=2 уведомления о пропуске, получили %d", len(ns))
	}
}

func TestDeriveNotifications_ReportsEscalated(t *testing.T) {
	roster := day("2026-10-16", absent(st1), absent(st2))
	history := []models.AttendanceRecord{
		roster,
		day("2026-10-15", absent(st1), present(st2)),
		day("2026-10-14", absent(st1), absent(st2)),
	}
	got := DeriveNotifications(DeriveInput{Roster: roster, History: history, Audience: audience})
	if len(got.Escalated) != 1 || got.Escalated[0] != st1 {
		t.Fatalf("ожидали эскалацию только по st-1, получили %v", got.Escalated)
	}
}
