package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/intelliod/ems/internal/apperror"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// mapDatabaseError converts driver errors into application errors. Errors it
// does not recognise are returned unchanged and end up as internal errors.
func mapDatabaseError(err error, notFound error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		if notFound != nil {
			return notFound
		}
		return apperror.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.ErrConflict.Wrap(err)
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return apperror.ErrValidation.WithMessage("referenced record does not exist").Wrap(err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return apperror.ErrConflict.Wrap(err)
		case pgForeignKeyViolation:
			return apperror.ErrValidation.WithMessage("referenced record does not exist").Wrap(err)
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperror.ErrConflict.Wrap(err)
		case pgForeignKeyViolation:
			return apperror.ErrValidation.WithMessage("referenced record does not exist").Wrap(err)
		}
	}

	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return apperror.ErrConflict.Wrap(err)
	}

	return err
}

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	return errors.Is(mapDatabaseError(err, nil), apperror.ErrConflict)
}
