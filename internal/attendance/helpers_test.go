package attendance

import "github.com/Spok95/school-attendance/internal/models"

const (
	st1 = "st-1"
	st2 = "st-2"
)

func day(date string, entries ...models.AttendanceEntry) models.AttendanceRecord {
	return models.AttendanceRecord{
		SchoolID:  "school-1",
		Date:      date,
		Grade:     "7",
		ClassName: "A",
		StaffID:   "teacher-1",
		Records:   entries,
	}
}

func absent(id string) models.AttendanceEntry {
	return models.AttendanceEntry{StudentID: id, StudentName: "Ученик " + id, Status: models.StatusAbsent}
}

func present(id string) models.AttendanceEntry {
	return models.AttendanceEntry{StudentID: id, StudentName: "Ученик " + id, Status: models.StatusPresent}
}

func late(id string) models.AttendanceEntry {
	return models.AttendanceEntry{StudentID: id, StudentName: "Ученик " + id, Status: models.StatusLate}
}

func excuse(id, date string, st models.ExcuseStatus) models.ExcuseRequest {
	return models.ExcuseRequest{StudentID: id, Date: date, Reason: "болезнь", Status: st}
}

func countByTarget(ns []models.Notification, target string, typ models.NotificationType) int {
	n := 0
	for _, x := range ns {
		if x.Target == target && x.Type == typ {
			n++
		}
	}
	return n
}
