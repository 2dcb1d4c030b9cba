package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrNotFound: запись отсутствует. Любая другая ошибка означает сбой хранилища.
var ErrNotFound = errors.New("not found")

// ErrConflict: запись с таким ключом принадлежит другой школе.
var ErrConflict = errors.New("conflict")

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// pgCode достаёт SQLSTATE из ошибки любого из двух драйверов (pgx в сервисе, pq в тестах).
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func IsUniqueViolation(err error) bool { return pgCode(err) == pgUniqueViolation }

// IsConstraintViolation сообщает о нарушении CHECK или внешнего ключа, то есть об ошибке входных данных, а не о сбое БД.
func IsConstraintViolation(err error) bool {
	switch pgCode(err) {
	case pgForeignKeyViolation, pgCheckViolation:
		return true
	}
	return false
}
