package persistence

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/shopkit/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// pgUniqueViolation is the SQLSTATE for unique_violation
const pgUniqueViolation = "23505"

// isDuplicateKey reports whether err is a unique constraint violation.
// Connections opened through NewDatabase translate it to gorm.ErrDuplicatedKey;
// raw driver errors are matched for connections opened elsewhere.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	return false
}

// translateWriteError maps a lost insert race on a natural key to
// shared.ErrConcurrencyConflict so callers can retry and find the winner's row
func translateWriteError(table string, err error) error {
	if err == nil {
		return nil
	}
	if isDuplicateKey(err) {
		return fmt.Errorf("%s: %w", table, shared.ErrConcurrencyConflict)
	}
	return fmt.Errorf("save %s: %w", table, err)
}

// first runs a single-row query and reports found=false instead of an error
// when no row matches
func first[M any](db *gorm.DB, query string, args ...any) (*M, bool, error) {
	var m M
	err := db.Where(query, args...).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &m, true, nil
}
