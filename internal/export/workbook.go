package export

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

type SheetSpec struct {
	Title  string
	Header []string
	Rows   [][]string
}

// NewWorkbook собирает книгу из листов: жирные заголовки, автофильтр в первой строке,
// ширина колонок по содержимому.
func NewWorkbook(sheets []SheetSpec) (*excelize.File, error) {
	f := excelize.NewFile()
	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	if len(sheets) == 0 {
		sheets = []SheetSpec{{Title: "Посещаемость", Header: []string{"Нет данных"}}}
	}
	used := make(map[string]int)
	for i, s := range sheets {
		name := sheetName(s.Title, used)
		if i == 0 {
			// стандартный Sheet1 переименовываем, а не удаляем: в книге должен остаться лист
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("new sheet: %w", err)
		}

		for col, h := range s.Header {
			cell := fmt.Sprintf("%s1", colName(col+1))
			if err := f.SetCellStr(name, cell, h); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
		if len(s.Header) > 0 {
			end := colName(len(s.Header)) + "1"
			_ = f.SetCellStyle(name, "A1", end, bold)
			_ = f.AutoFilter(name, "A1:"+end, nil)
		}

		for r, row := range s.Rows {
			for c, val := range row {
				cell := fmt.Sprintf("%s%d", colName(c+1), r+2)
				if err := f.SetCellStr(name, cell, val); err != nil {
					return nil, fmt.Errorf("set cell %s: %w", cell, err)
				}
			}
		}
		setWidths(f, name, s)
	}
	return f, nil
}

// setWidths: эвристика по длине заголовка и первых 50 строк, от 10 до 40 символов.
func setWidths(f *excelize.File, sheet string, s SheetSpec) {
	for c := 1; c <= len(s.Header); c++ {
		maxim := utf8.RuneCountInString(s.Header[c-1]) + 2
		for r := 0; r < min(50, len(s.Rows)); r++ {
			if c-1 >= len(s.Rows[r]) {
				continue
			}
			if l := utf8.RuneCountInString(s.Rows[r][c-1]); l > maxim {
				maxim = l
			}
		}
		w := float64(maxim) * 1.1
		w = max(10, min(40, w))
		_ = f.SetColWidth(sheet, colName(c), colName(c), w)
	}
}

var invalidSheetRe = regexp.MustCompile(`[\\/:*?\[\]]+`)

// sheetName приводит название к правилам Excel: без []:*?/\, до 31 символа, уникально.
func sheetName(title string, used map[string]int) string {
	name := strings.TrimSpace(invalidSheetRe.ReplaceAllString(title, "_"))
	if name == "" {
		name = "Лист"
	}
	if r := []rune(name); len(r) > 28 {
		name = string(r[:28])
	}
	used[name]++
	if n := used[name]; n > 1 {
		name = fmt.Sprintf("%s_%d", name, n)
	}
	return name
}

func colName(n int) string {
	// 1 -> A; 27 -> AA
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+(n%26))) + s
		n /= 26
	}
	return s
}
