package tours

import (
	"database/sql"
	"errors"
	"regexp"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

var (
	sqliteUniqueRe = regexp.MustCompile(`UNIQUE constraint failed: ([\w.]+(?:, [\w.]+)*)`)
	pgKeyDetailRe  = regexp.MustCompile(`Key \(([^)]+)\)=\(([^)]*)\)`)
)

// UniqueViolation describes a failed uniqueness constraint
type UniqueViolation struct {
	Field string
	Value string
}

// AsUniqueViolation detects unique constraint errors from sqlite and postgres
func AsUniqueViolation(err error) (UniqueViolation, bool) {
	if err == nil {
		return UniqueViolation{}, false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return UniqueViolation{}, false
		}
		v := UniqueViolation{Field: pgErr.ConstraintName}
		if m := pgKeyDetailRe.FindStringSubmatch(pgErr.Detail); len(m) == 3 {
			v.Field, v.Value = m[1], m[2]
		}
		return v, true
	}

	if m := sqliteUniqueRe.FindStringSubmatch(err.Error()); len(m) == 2 {
		first := strings.Split(m[1], ", ")[0]
		if i := strings.LastIndexByte(first, '.'); i >= 0 {
			first = first[i+1:]
		}
		return UniqueViolation{Field: first}, true
	}

	return UniqueViolation{}, false
}

// IsNoRows reports whether err means a lookup found nothing
func IsNoRows(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}

// translateStoreError turns store errors into the domain taxonomy
func translateStoreError(err error, resource string) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Category != goerrors.CategoryInternal {
		if IsNoRows(err) {
			return NewNotFound(resource)
		}
		return richErr
	}

	if IsNoRows(err) {
		return NewNotFound(resource)
	}

	if v, ok := AsUniqueViolation(err); ok {
		return NewConflict(v.Field, v.Value)
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to access "+resource+" store")
}
