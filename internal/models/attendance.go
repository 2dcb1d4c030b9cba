package models

import "time"

// DateLayout: формат календарного дня во всех таблицах и API.
const DateLayout = "2006-01-02"

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "PRESENT"
	StatusAbsent  AttendanceStatus = "ABSENT"
	StatusLate    AttendanceStatus = "LATE"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	default:
		return false
	}
}

// AttendanceEntry: статус одного ученика в журнале класса за день.
type AttendanceEntry struct {
	StudentID   string           `json:"studentId" validate:"required"`
	StudentName string           `json:"studentName"`
	Status      AttendanceStatus `json:"status"`
}

// AttendanceRecord: журнал одного класса за одну дату.
// На (school_id, date, grade, class_name) существует не более одной записи.
type AttendanceRecord struct {
	ID        int64             `json:"id,omitempty"`
	SchoolID  string            `json:"schoolId,omitempty"`
	Date      string            `json:"date" validate:"required,datetime=2006-01-02"`
	Grade     string            `json:"grade" validate:"required"`
	ClassName string            `json:"className" validate:"required"`
	StaffID   string            `json:"staffId" validate:"required"`
	Records   []AttendanceEntry `json:"records" validate:"dive"`
	UpdatedAt time.Time         `json:"updatedAt,omitempty"`
}

// Entry возвращает статус ученика в журнале, если он там есть.
func (r AttendanceRecord) Entry(studentID string) (AttendanceEntry, bool) {
	for _, e := range r.Records {
		if e.StudentID == studentID {
			return e, true
		}
	}
	return AttendanceEntry{}, false
}

// StudentDay: строка личной истории посещаемости.
type StudentDay struct {
	Date   string           `json:"date"`
	Status AttendanceStatus `json:"status"`
}
