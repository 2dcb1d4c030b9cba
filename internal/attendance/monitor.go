package attendance

import (
	"sort"

	"github.com/Spok95/school-attendance/internal/models"
)

// Monitor считает сводку посещаемости по ученикам класса.
// Уважительным считается только пропуск с одобренной объяснительной (PolicyStrict).
func Monitor(history []models.AttendanceRecord, excuses []models.ExcuseRequest) []models.StudentTally {
	sorted := make([]models.AttendanceRecord, len(history))
	copy(sorted, history)
	SortNewestFirst(sorted)
	idx := IndexExcuses(excuses)

	byStudent := make(map[string]*models.StudentTally)
	for _, rec := range sorted {
		for _, e := range rec.Records {
			t, ok := byStudent[e.StudentID]
			if !ok {
				t = &models.StudentTally{StudentID: e.StudentID, StudentName: e.StudentName}
				byStudent[e.StudentID] = t
			}
			switch e.Status {
			case models.StatusPresent:
				t.Present++
			case models.StatusLate:
				t.Late++
			case models.StatusAbsent:
				t.Absent++
				if idx.Excused(PolicyStrict, e.StudentID, rec.Date) {
					t.Excused++
				} else {
					t.Unexcused++
				}
			}
		}
	}

	out := make([]models.StudentTally, 0, len(byStudent))
	for id, t := range byStudent {
		t.ConsecutiveAbsence = UnexcusedStreak(sorted, id, "", idx, PolicyStrict)
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StudentName != out[j].StudentName {
			return out[i].StudentName < out[j].StudentName
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out
}
