package market

import "fmt"

// DataError reports unusable input: a missing or malformed file, duplicate or
// unparsable dates, or too few valid rows.
type DataError struct {
	Source string // file path or "input"
	Reason string
	Err    error
}

func (e *DataError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func dataErrorf(source string, err error, format string, args ...any) *DataError {
	return &DataError{Source: source, Reason: fmt.Sprintf(format, args...), Err: err}
}
