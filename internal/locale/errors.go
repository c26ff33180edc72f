package locale

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failed catalog request.
type ErrorCode string

const (
	CodeNetworkError ErrorCode = "network-error"
	CodeNotFound     ErrorCode = "not-found"
	CodeInvalid      ErrorCode = "invalid"
)

// ErrSuperseded is returned to a SetLocale call whose request was replaced
// by a newer one before it completed.
var ErrSuperseded = errors.New("locale: request superseded by a newer one")

// FetchError describes a failed catalog request.
type FetchError struct {
	Code    ErrorCode
	Message string
	Locale  string
}

func (e *FetchError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("fetch locale %s: %s", e.Locale, e.Code)
	}
	return fmt.Sprintf("fetch locale %s: %s: %s", e.Locale, e.Code, e.Message)
}
