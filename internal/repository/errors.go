// Package repository holds the MySQL data access layer.  The sentinel
// errors below let higher layers tell store outcomes apart without
// inspecting driver errors.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key, most
// importantly the one-active-reservation-per-user key on reservations.
var ErrDuplicate = errors.New("duplicate")

// ErrConflict is returned when a delete or update cannot be performed
// because of dependent rows, such as deleting an event that still has
// reservations.  Handlers translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

const (
	mysqlDuplicateEntry  = 1062
	mysqlRowIsReferenced = 1451
)

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry:
			return ErrDuplicate
		case mysqlRowIsReferenced:
			return ErrConflict
		}
	}
	return err
}
