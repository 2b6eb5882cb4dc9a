package database

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	domainerrors "github.com/davidleathers/dependable-access-control/internal/domain/errors"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// wrapError maps driver errors onto domain errors. resource names the row
// kind for not-found errors; op describes the failed operation.
func wrapError(err error, resource, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domainerrors.NewNotFoundError(resource).WithCause(err)
	}
	switch pgCode(err) {
	case pgUniqueViolation:
		return domainerrors.NewConflictError(resource + " already exists").WithCause(err)
	case pgForeignKeyViolation:
		return domainerrors.NewValidationError("INVALID_REFERENCE", resource+" references an unknown row").WithCause(err)
	}
	return domainerrors.NewInternalError("failed to " + op).WithCause(err)
}
