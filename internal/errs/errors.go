package errs

import "github.com/cockroachdb/errors"

var (
	ErrOutOfMemory     = errors.New("heap: out of memory")
	ErrBadArgument     = errors.New("heap: bad argument")
	ErrPlacementDenied = errors.New("heap: placement denied")
	ErrCorrupt         = errors.New("heap: corrupt")
	ErrNotSupported    = errors.New("heap: mmap not supported on this platform")
)
