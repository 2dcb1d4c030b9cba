package attendance

import (
	"sort"

	"github.com/Spok95/school-attendance/internal/models"
)

// StreakPolicy определяет, какая объяснительная прерывает серию пропусков.
// В системе три разных определения «неуважительной серии», и каждое место
// вызова называет своё явно.
type StreakPolicy int

const (
	// PolicyLenient: пропуск прощён, если есть объяснительная не в статусе REJECTED
	// (PENDING тоже считается). Используется при рассылке уведомлений.
	PolicyLenient StreakPolicy = iota
	// PolicyRaw: объяснительные не учитываются. Используется списком «группы риска».
	PolicyRaw
	// PolicyStrict: пропуск прощён только одобренной (APPROVED) объяснительной.
	// Используется экраном мониторинга.
	PolicyStrict
)

func (p StreakPolicy) String() string {
	switch p {
	case PolicyLenient:
		return "lenient"
	case PolicyRaw:
		return "raw"
	case PolicyStrict:
		return "strict"
	default:
		return "unknown"
	}
}

type excuseKey struct {
	studentID string
	date      string
}

// Excuses: индекс объяснительных по (ученик, дата).
type Excuses map[excuseKey][]models.ExcuseStatus

func IndexExcuses(list []models.ExcuseRequest) Excuses {
	idx := make(Excuses, len(list))
	for _, e := range list {
		k := excuseKey{studentID: e.StudentID, date: e.Date}
		idx[k] = append(idx[k], e.Status)
	}
	return idx
}

// Excused сообщает, прощён ли пропуск ученика в дату date по правилам policy.
func (x Excuses) Excused(policy StreakPolicy, studentID, date string) bool {
	if policy == PolicyRaw {
		return false
	}
	for _, st := range x[excuseKey{studentID: studentID, date: date}] {
		switch policy {
		case PolicyLenient:
			if st != models.ExcuseRejected {
				return true
			}
		case PolicyStrict:
			if st == models.ExcuseApproved {
				return true
			}
		}
	}
	return false
}

// SortNewestFirst упорядочивает журналы по дате, от новых к старым.
// Даты в формате YYYY-MM-DD сравниваются как строки.
func SortNewestFirst(records []models.AttendanceRecord) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].Date > records[j].Date })
}

// UnexcusedStreak считает подряд идущие неуважительные пропуски ученика,
// начиная с даты asOf и двигаясь в прошлое. history должна быть отсортирована
// от новых к старым. Пустой asOf: от самой новой записи.
//
// Серию прерывает день, когда ученик присутствовал, опоздал, отсутствует в журнале
// или его пропуск прощён по policy.
func UnexcusedStreak(history []models.AttendanceRecord, studentID, asOf string, x Excuses, policy StreakPolicy) int {
	streak := 0
	for _, day := range history {
		if asOf != "" && day.Date > asOf {
			continue
		}
		e, ok := day.Entry(studentID)
		if !ok || e.Status != models.StatusAbsent {
			break
		}
		if x.Excused(policy, studentID, day.Date) {
			break
		}
		streak++
	}
	return streak
}
