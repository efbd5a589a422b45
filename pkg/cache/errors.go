package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/coldvault/coldvault/pkg/coldvaulterr"
)

// mapErr turns a raw database/sql or SQLite error into coldvault's typed
// error taxonomy, following the teacher's mapPgError convention of
// translating driver-specific errors at the store boundary rather than
// leaking them to callers.
func mapErr(err error, operation string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return coldvaulterr.Wrap(coldvaulterr.CodeNotFound, operation+": not found", err)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint"):
		return coldvaulterr.Wrap(coldvaulterr.CodeContractViolation, operation+": already exists", err)
	case strings.Contains(msg, "FOREIGN KEY constraint"):
		return coldvaulterr.Wrap(coldvaulterr.CodeContractViolation, operation+": referenced row missing", err)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "SQLITE_BUSY"):
		return coldvaulterr.Wrap(coldvaulterr.CodeTransientIO, operation+": database busy", err)
	default:
		return coldvaulterr.Wrap(coldvaulterr.CodeFilesystemTransient, fmt.Sprintf("%s: %v", operation, err), err)
	}
}
