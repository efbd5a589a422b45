package scanner

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/coldvault/coldvault/pkg/coldvaulterr"
)

// isNotADirectory reports whether err is the platform's ENOTDIR, returned
// by Lstat when a path component that used to be a directory has been
// replaced by a file.
func isNotADirectory(err error) bool {
	return strings.Contains(err.Error(), "not a directory")
}

// isUniqueViolation reports whether err came from the path UNIQUE
// constraint on fsentry, the signal the scanner uses to detect that a
// newly discovered path is actually an already-tracked root (the
// nested-root merge case).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

func errNotARoot(path []byte) error {
	return coldvaulterr.New(coldvaulterr.CodeContractViolation,
		fmt.Sprintf("scan: %q is already tracked as a non-root entry, cannot merge", stringReplaceInvalid(path)))
}

// stringReplaceInvalid renders a filesystem path for logs, replacing
// invalid UTF-8 rather than risking a panic or garbled output.
func stringReplaceInvalid(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}
