package pipeline

import (
	"errors"
	"os"

	"github.com/vegasq/parslice/internal/query"
)

// Errors returned by Run. Parse and evaluation failures are reported with the
// sentinels of the query package.
var (
	// ErrIO covers failures to open, read or decode the source file, and
	// failures to encode the output.
	ErrIO = errors.New("io error")

	// ErrSchema is returned when the source schema cannot be subset.
	ErrSchema = errors.New("schema error")

	// ErrCanceled is returned when the request context ends before the
	// result is complete.
	ErrCanceled = errors.New("request canceled")
)

// Error kinds reported by Kind.
const (
	KindNotFound        = "not_found"
	KindIO              = "io"
	KindSchema          = "schema"
	KindParse           = "parse"
	KindUnsupportedType = "unsupported_type"
	KindLiteralType     = "literal_type"
	KindCanceled        = "canceled"
	KindInternal        = "internal"
)

// Kind classifies an error returned by Run.
func Kind(err error) string {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return KindNotFound
	case errors.Is(err, ErrCanceled):
		return KindCanceled
	case errors.Is(err, ErrSchema):
		return KindSchema
	case errors.Is(err, ErrIO):
		return KindIO
	case errors.Is(err, query.ErrParse):
		return KindParse
	case errors.Is(err, query.ErrUnsupportedType):
		return KindUnsupportedType
	case errors.Is(err, query.ErrLiteralType):
		return KindLiteralType
	default:
		return KindInternal
	}
}
