package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError: ошибка конкретного поля запроса.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError: входные данные не прошли проверку; HTTP отвечает 400.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return "validation failed"
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct переводит ошибки validator в ValidationError с именами полей.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError(err)
	}
	flds := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		flds = append(flds, FieldError{
			Field: fieldPath(fe.Namespace()),
			Error: fmt.Sprintf("failed on %q", fe.Tag()),
		})
	}
	return NewValidationError(errors.New("invalid input"), flds...)
}

// fieldPath убирает имя корневой структуры: "AttendanceRecord.Records[0].StudentID" -> "Records[0].StudentID".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
