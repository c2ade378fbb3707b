package pipeline

import (
	"errors"
	"fmt"
)

// ErrMissingColumn 必需列缺失
var ErrMissingColumn = errors.New("missing column")

// MissingColumnError names the input table and the column it lacks.
type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: missing column %q", e.Table, e.Column)
}

func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}

func missing(tableName, column string) error {
	return &MissingColumnError{Table: tableName, Column: column}
}
