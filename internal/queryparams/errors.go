package queryparams

import (
	"fmt"
	"strings"
)

// InvalidParameterError is returned when a request carries parameter names the endpoint
// does not recognise. All offending names of a request are reported together.
type InvalidParameterError struct {
	Params []string
}

// Error returns the error message
func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("The query parameter(s) '%s' are not recognised by this endpoint.", formatNames(e.Params))
}

// FieldError describes a parameter whose value could not be bound
type FieldError struct {
	Param  string
	Reason string
}

// BindError collects every value error found while binding one request
type BindError struct {
	Fields []FieldError
}

// Error returns the error message
func (e *BindError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Param, f.Reason)
	}
	return "invalid query parameter value(s): " + strings.Join(parts, "; ")
}

func (e *BindError) add(param, reason string) {
	e.Fields = append(e.Fields, FieldError{Param: param, Reason: reason})
}

func (e *BindError) err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
