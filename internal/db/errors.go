package db

import (
	"fmt"
	"strings"
)

// ValidationError reports a required field that is missing or empty.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("required field %q is missing or empty", e.Field)
}

// ReferentialError reports a parent id that has no corresponding row.
type ReferentialError struct {
	Kind     string // parent entity kind, e.g. "subject"
	ParentID int64
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("%s %d does not exist", e.Kind, e.ParentID)
}

// isFKViolation recognizes the driver's foreign key constraint message. The
// insert paths check parent existence explicitly first, so this only fires
// on races between the check and the insert.
func isFKViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
