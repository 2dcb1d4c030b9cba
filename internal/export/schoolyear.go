package export

import (
	"fmt"
	"time"
)

// SchoolYearStart возвращает начало учебного года для заданного момента (1 сентября, 00:00:00).
func SchoolYearStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	startYear := y
	if m < time.September {
		startYear = y - 1
	}
	return time.Date(startYear, time.September, 1, 0, 0, 0, 0, t.Location())
}

// SchoolYearBounds: границы [from, to) учебного года момента t.
func SchoolYearBounds(t time.Time) (time.Time, time.Time) {
	start := SchoolYearStart(t)
	return start, start.AddDate(1, 0, 0)
}

// SchoolYearLabel форматирует подпись учебного года: "2024–2025".
func SchoolYearLabel(t time.Time) string {
	start := SchoolYearStart(t)
	return fmt.Sprintf("%d–%d", start.Year(), start.Year()+1)
}

// AttendanceFilename: имя файла выгрузки.
func AttendanceFilename(schoolID, from, to string) string {
	return fmt.Sprintf("attendance_%s_%s_%s.xlsx", schoolID, from, to)
}
