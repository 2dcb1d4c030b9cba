package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/Spok95/school-attendance/internal/models"
)

var statusLabels = map[models.AttendanceStatus]string{
	models.StatusPresent: "Присутствовал",
	models.StatusAbsent:  "Отсутствовал",
	models.StatusLate:    "Опоздал",
}

// AttendanceSheets раскладывает журналы по листам: один лист на класс,
// строки: (дата, ученик, статус), по дате и имени.
func AttendanceSheets(records []models.AttendanceRecord) []SheetSpec {
	type classKey struct{ grade, class string }
	byClass := make(map[classKey][]models.AttendanceRecord)
	var keys []classKey
	for _, rec := range records {
		k := classKey{rec.Grade, rec.ClassName}
		if _, ok := byClass[k]; !ok {
			keys = append(keys, k)
		}
		byClass[k] = append(byClass[k], rec)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].grade != keys[j].grade {
			return keys[i].grade < keys[j].grade
		}
		return keys[i].class < keys[j].class
	})

	sheets := make([]SheetSpec, 0, len(keys))
	for _, k := range keys {
		recs := byClass[k]
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Date < recs[j].Date })

		spec := SheetSpec{
			Title:  k.grade + k.class,
			Header: []string{"Дата", "Ученик", "ID ученика", "Статус", "Отметил"},
		}
		for _, rec := range recs {
			entries := append([]models.AttendanceEntry(nil), rec.Records...)
			sort.SliceStable(entries, func(i, j int) bool { return entries[i].StudentName < entries[j].StudentName })
			for _, e := range entries {
				label, ok := statusLabels[e.Status]
				if !ok {
					label = string(e.Status)
				}
				spec.Rows = append(spec.Rows, []string{rec.Date, e.StudentName, e.StudentID, label, rec.StaffID})
			}
		}
		sheets = append(sheets, spec)
	}
	return sheets
}

// WriteAttendanceWorkbook пишет xlsx-выгрузку журналов в w.
func WriteAttendanceWorkbook(w io.Writer, records []models.AttendanceRecord) error {
	f, err := NewWorkbook(AttendanceSheets(records))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
