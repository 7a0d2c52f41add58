package etl

import "errors"

// Ingestion error taxonomy. Handlers map these to HTTP status classes;
// callers test them with errors.Is. Infra-side failures (provisioning,
// storage) are raised by the repository layer and wrapped here.
var (
	// ErrUnsupportedFormat is returned when the filename suffix is not a
	// recognized tabular format.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrMalformedInput is returned when the bytes cannot be parsed as
	// the claimed format.
	ErrMalformedInput = errors.New("malformed input")

	// ErrEmptyAfterCleaning is returned when no data rows remain once
	// fully-empty rows are dropped.
	ErrEmptyAfterCleaning = errors.New("no data found in file after cleaning")

	// ErrNoValidRows is returned when normalization leaves nothing
	// insertable.
	ErrNoValidRows = errors.New("no valid rows to insert")

	// ErrNoRowsInserted is returned when every batch and every single-row
	// fallback failed.
	ErrNoRowsInserted = errors.New("no rows were successfully inserted")

	// ErrInvalidOwnerID is returned when the owner identifier is not a
	// well-formed UUID.
	ErrInvalidOwnerID = errors.New("invalid owner id")
)

// IsCallerError reports whether err stems from bad caller input rather
// than backend failure. Caller errors are never retried and carry only
// generic detail back to the client.
func IsCallerError(err error) bool {
	for _, sentinel := range []error{
		ErrUnsupportedFormat,
		ErrMalformedInput,
		ErrEmptyAfterCleaning,
		ErrNoValidRows,
		ErrNoRowsInserted,
		ErrInvalidOwnerID,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
