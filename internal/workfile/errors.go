package workfile

import (
	"errors"
	"io/fs"

	"github.com/mattjoyce/slate/internal/pathutil"
	"github.com/mattjoyce/slate/internal/tracker"
)

// Lookup failures. All of them fall back to creating a first version from
// the template; they are kept distinct so callers and tests can tell
// "absent" from "unreadable".
var (
	ErrNotFound         = errors.New("work file not found")
	ErrPermissionDenied = errors.New("work file directory not readable")
	ErrMalformedVersion = errors.New("work file has no parseable version")
)

// classify maps an underlying error onto one of the lookup failures.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrMalformedVersion):
		return err
	case errors.Is(err, fs.ErrPermission):
		return errors.Join(ErrPermissionDenied, err)
	case errors.Is(err, pathutil.ErrNoVersion):
		return errors.Join(ErrMalformedVersion, err)
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, tracker.ErrNotFound):
		return errors.Join(ErrNotFound, err)
	default:
		return err
	}
}
