package models

import "time"

// RiskAction: запись журнала реагирования на серию пропусков.
type RiskAction struct {
	ID         int64     `json:"id"`
	SchoolID   string    `json:"schoolId,omitempty"`
	StudentID  string    `json:"studentId"`
	ActionType string    `json:"actionType"`
	StaffID    string    `json:"staffId"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

type AtRiskStudent struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Days        int    `json:"days"`
	LastDate    string `json:"lastDate"`
}

// StudentTally: сводка для экрана мониторинга посещаемости.
type StudentTally struct {
	StudentID          string `json:"studentId"`
	StudentName        string `json:"studentName"`
	Present            int    `json:"present"`
	Absent             int    `json:"absent"`
	Late               int    `json:"late"`
	Excused            int    `json:"excused"`
	Unexcused          int    `json:"unexcused"`
	ConsecutiveAbsence int    `json:"consecutiveUnexcused"`
}
