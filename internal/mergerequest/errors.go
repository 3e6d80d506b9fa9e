package mergerequest

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedData  = errors.New("mergerequest: malformed data")
	ErrTimestampParse = errors.New("mergerequest: unparseable timestamp")
)

// MalformedDataError reports a payload from GitLab that failed shape
// validation. It is fatal for the merge request it belongs to only.
type MalformedDataError struct {
	What string
	Err  error
}

func (e *MalformedDataError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("malformed %s from GitLab", e.What)
	}
	return fmt.Sprintf("malformed %s from GitLab: %v", e.What, e.Err)
}

func (e *MalformedDataError) Unwrap() error { return e.Err }

func (e *MalformedDataError) Is(target error) bool { return target == ErrMalformedData }

func malformed(what string, err error) error {
	return &MalformedDataError{What: what, Err: err}
}

// TimestampParseError is returned by ConvertTime when a timestamp matches
// neither of the encodings GitLab is known to use.
type TimestampParseError struct {
	Raw string
}

func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("couldn't parse GitLab timestamp '%s'", e.Raw)
}

func (e *TimestampParseError) Is(target error) bool { return target == ErrTimestampParse }
