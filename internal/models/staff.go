package models

// Права, дающие доступ к эскалациям по пропускам.
const (
	PermDeputy   = "deputy"
	PermStudents = "students"
)

type Assignment struct {
	Grade     string `json:"grade"`
	ClassName string `json:"className"`
}

type StaffUser struct {
	ID          string       `json:"id"`
	SchoolID    string       `json:"schoolId,omitempty"`
	Name        string       `json:"name" validate:"required"`
	Permissions []string     `json:"permissions"`
	Assignments []Assignment `json:"assignments"`
}
