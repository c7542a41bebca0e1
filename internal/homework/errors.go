package homework

import (
	"errors"
	"fmt"
	"strings"
)

// SchemaError means the payload does not have the expected shape.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string { return "unexpected response shape: " + e.Reason }

// MissingFieldError lists required keys absent from a homework entry.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("response is missing the following keys: [%s]", strings.Join(e.Fields, ", "))
}

// UnknownStatusError carries a status code outside the known set.
type UnknownStatusError struct {
	Status string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown status data: %q", e.Status)
}

// Kinder is implemented by errors that know their own label.
// Transport and delivery errors live in other packages and plug in here.
type Kinder interface {
	Kind() string
}

func (e *SchemaError) Kind() string        { return "schema" }
func (e *MissingFieldError) Kind() string  { return "missing_field" }
func (e *UnknownStatusError) Kind() string { return "unknown_status" }

// Kind maps err to a stable label for logs and metrics.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var k Kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return "internal"
}
