package model

import "fmt"

type NotFoundError struct{}

func (e NotFoundError) Error() string {
	return "not found"
}

type DuplicateError struct {
	Name string
}

func (e DuplicateError) Error() string {
	if e.Name == "" {
		return "duplicate entry"
	}

	return fmt.Sprintf("duplicate entry %q", e.Name)
}

// InvariantError signals a broken assumption of the scheduler itself. It is
// never caused by a misbehaving test object.
type InvariantError struct {
	Msg string
}

func (e InvariantError) Error() string {
	return "scheduler invariant violated: " + e.Msg
}

// ValidationError is returned when an object configuration does not match
// its schema.
type ValidationError struct {
	Param string
	Msg   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Msg)
}
