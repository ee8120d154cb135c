package db

import "errors"

var ErrNotFound = errors.New("not found")

func IgnoreErrNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// IsNotFound is a shorthand used by callers that branch on missing records.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
