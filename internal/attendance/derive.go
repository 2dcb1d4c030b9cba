package attendance

import (
	"fmt"

	"github.com/Spok95/school-attendance/internal/models"
)

// DefaultThreshold: длина серии, на которой срабатывает эскалация.
const DefaultThreshold = 3

// DeriveInput собирается один раз на журнал, а не на каждого ученика.
type DeriveInput struct {
	Roster    models.AttendanceRecord
	History   []models.AttendanceRecord // от новых к старым
	Excuses   []models.ExcuseRequest
	Audience  []models.StaffUser
	Threshold int
}

// Derived содержит результат разбора журнала: пачку уведомлений и учеников, по которым сработала эскалация.
type Derived struct {
	Notifications []models.Notification
	Escalated     []string
}

// DeriveNotifications превращает сохранённый журнал в пачку уведомлений.
//
// ABSENT: уведомление родителю и, если неуважительная серия (PolicyLenient)
// ровно равна порогу, эскалация родителю и каждому сотруднику из audience.
// LATE: информационное уведомление. PRESENT: ничего.
// Серия сравнивается на равенство, поэтому эскалация не повторяется на 4-й, 5-й… день.
func DeriveNotifications(in DeriveInput) Derived {
	threshold := in.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	history := withRoster(in.History, in.Roster)
	excuses := IndexExcuses(in.Excuses)

	var out []models.Notification
	var escalated []string
	for _, e := range in.Roster.Records {
		name := e.StudentName
		if name == "" {
			name = e.StudentID
		}
		switch e.Status {
		case models.StatusAbsent:
			out = append(out, models.Notification{
				Target: e.StudentID,
				Type:   models.NotificationAlert,
				Title:  "Пропуск занятий",
				Message: fmt.Sprintf("%s отсутствовал(а) на занятиях %s. Пожалуйста, подайте объяснительную через портал.",
					name, in.Roster.Date),
			})

			streak := UnexcusedStreak(history, e.StudentID, in.Roster.Date, excuses, PolicyLenient)
			if streak != threshold {
				continue
			}
			escalated = append(escalated, e.StudentID)
			out = append(out, models.Notification{
				Target: e.StudentID,
				Type:   models.NotificationAlert,
				Title:  "Серия пропусков",
				Message: fmt.Sprintf("%s пропустил(а) %d дня подряд без уважительной причины. Срочно свяжитесь со школой.",
					name, streak),
			})
			for _, s := range in.Audience {
				out = append(out, models.Notification{
					Target: s.ID,
					Type:   models.NotificationAlert,
					Title:  "Ученик в группе риска",
					Message: fmt.Sprintf("%s (%s %s) пропустил(а) %d дня подряд без уважительной причины.",
						name, in.Roster.Grade, in.Roster.ClassName, streak),
				})
			}
		case models.StatusLate:
			out = append(out, models.Notification{
				Target:  e.StudentID,
				Type:    models.NotificationInfo,
				Title:   "Опоздание",
				Message: fmt.Sprintf("%s опоздал(а) на занятия %s.", name, in.Roster.Date),
			})
		}
	}
	return Derived{Notifications: out, Escalated: escalated}
}

// withRoster гарантирует, что в истории лежит именно только что сохранённый журнал.
func withRoster(history []models.AttendanceRecord, roster models.AttendanceRecord) []models.AttendanceRecord {
	out := make([]models.AttendanceRecord, 0, len(history)+1)
	out = append(out, roster)
	for _, h := range history {
		if h.Date == roster.Date {
			continue
		}
		out = append(out, h)
	}
	SortNewestFirst(out)
	return out
}
