package models

import "time"

type ExcuseStatus string

const (
	ExcusePending  ExcuseStatus = "PENDING"
	ExcuseApproved ExcuseStatus = "APPROVED"
	ExcuseRejected ExcuseStatus = "REJECTED"
)

func (s ExcuseStatus) Valid() bool {
	switch s {
	case ExcusePending, ExcuseApproved, ExcuseRejected:
		return true
	default:
		return false
	}
}

// ExcuseRequest: объяснительная по пропуску ученика за конкретную дату.
type ExcuseRequest struct {
	ID            string       `json:"id"`
	SchoolID      string       `json:"schoolId,omitempty"`
	StudentID     string       `json:"studentId" validate:"required"`
	StudentName   string       `json:"studentName"`
	Grade         string       `json:"grade"`
	ClassName     string       `json:"className"`
	Date          string       `json:"date" validate:"required,datetime=2006-01-02"`
	Reason        string       `json:"reason" validate:"required"`
	Details       string       `json:"details"`
	AttachmentURL *string      `json:"attachmentUrl,omitempty"`
	Status        ExcuseStatus `json:"status"`
	SubmittedAt   time.Time    `json:"submittedAt"`
}
