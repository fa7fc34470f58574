package errs

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	Unauthorized = &ApiErr{StatusCode: http.StatusUnauthorized, err: ErrUnauthorized}
)

// NewValidationError converts ozzo-validation output into a 400. Field names the
// first failing field in alphabetical order; Details lists all of them.
func NewValidationError(err error) *ApiErr {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ApiErr{
			StatusCode: http.StatusBadRequest,
			err:        ErrMissingRequiredField,
			Details:    err.Error(),
			Cause:      err,
		}
	}

	fields := make([]string, 0, len(fieldErrs))
	for field := range fieldErrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	return &ApiErr{
		StatusCode: http.StatusBadRequest,
		err:        ErrMissingRequiredField,
		Details:    fmt.Sprintf("Missing required fields: %s", strings.Join(fields, ", ")),
		Field:      fields[0],
		Cause:      err,
	}
}
