package authz

import "errors"

var (
	// ErrPermissionDenied is the single error surfaced for any authorization
	// failure, including operations on resources that do not exist. Callers
	// must not be able to distinguish "forbidden" from "absent".
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotAssociated is returned when a grant removal targets a user who
	// has no grant on the resource
	ErrNotAssociated = errors.New("user is not associated with the resource")

	// ErrInvalidScope is returned when a grant scope does not designate
	// exactly one resource
	ErrInvalidScope = errors.New("grant scope must reference exactly one resource")
)
