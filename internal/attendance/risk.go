package attendance

import (
	"sort"

	"github.com/Spok95/school-attendance/internal/models"
)

// RawRun: «сырая» серия пропусков ученика (PolicyRaw, объяснительные не учитываются).
type RawRun struct {
	StudentID   string
	StudentName string
	Days        int    // ведущая серия ABSENT
	Prior       int    // серия без учёта последнего дня
	LastDate    string // дата последней записи ученика
}

// RawStreaks проходит по всем журналам школы и строит серию для каждого ученика.
// Порядок журналов на входе не важен: сортировка от новых к старым делается здесь.
// Ученик может встречаться в нескольких классах, ключ: только studentID.
func RawStreaks(records []models.AttendanceRecord) map[string]RawRun {
	sorted := make([]models.AttendanceRecord, len(records))
	copy(sorted, records)
	SortNewestFirst(sorted)

	type hist struct {
		name     string
		lastDate string
		statuses []models.AttendanceStatus
	}
	byStudent := make(map[string]*hist)
	for _, rec := range sorted {
		for _, e := range rec.Records {
			h, ok := byStudent[e.StudentID]
			if !ok {
				h = &hist{name: e.StudentName, lastDate: rec.Date}
				byStudent[e.StudentID] = h
			}
			h.statuses = append(h.statuses, e.Status)
		}
	}

	out := make(map[string]RawRun, len(byStudent))
	for id, h := range byStudent {
		run := RawRun{StudentID: id, StudentName: h.name, LastDate: h.lastDate}
		run.Days = leadingAbsent(h.statuses)
		if len(h.statuses) > 1 {
			run.Prior = leadingAbsent(h.statuses[1:])
		}
		out[id] = run
	}
	return out
}

func leadingAbsent(statuses []models.AttendanceStatus) int {
	n := 0
	for _, st := range statuses {
		if st != models.StatusAbsent {
			break
		}
		n++
	}
	return n
}

// AtRisk отбирает учеников с серией не короче threshold, исключая resolved.
// Результат отсортирован по длине серии (убывание), затем по имени.
func AtRisk(runs []RawRun, resolved map[string]struct{}, threshold int) []models.AtRiskStudent {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	out := make([]models.AtRiskStudent, 0)
	for _, r := range runs {
		if r.Days < threshold {
			continue
		}
		if _, ok := resolved[r.StudentID]; ok {
			continue
		}
		out = append(out, models.AtRiskStudent{
			StudentID:   r.StudentID,
			StudentName: r.StudentName,
			Days:        r.Days,
			LastDate:    r.LastDate,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Days != out[j].Days {
			return out[i].Days > out[j].Days
		}
		if out[i].StudentName != out[j].StudentName {
			return out[i].StudentName < out[j].StudentName
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out
}
