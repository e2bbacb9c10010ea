package apply

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when the target resource does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrNamespaceNotFound is returned when the path namespace does not exist.
	ErrNamespaceNotFound = errors.New("namespace not found")
	// ErrUnknownKind is returned for resource types the controller does not manage.
	ErrUnknownKind = errors.New("unknown resource type")
)

// Stage names the step at which an apply was rejected.
type Stage string

const (
	StageValidation Stage = "validation"
	StageOwnership  Stage = "ownership"
	StageQuota      Stage = "quota"
)

// RejectedError carries every reason an apply or delete was refused.
type RejectedError struct {
	Stage   Stage
	Reasons []string
}

func (e *RejectedError) Error() string {
	return string(e.Stage) + " failed: " + strings.Join(e.Reasons, "; ")
}

func rejected(stage Stage, reasons []string) error {
	return &RejectedError{Stage: stage, Reasons: reasons}
}

// AsRejected unwraps a *RejectedError from err.
func AsRejected(err error) (*RejectedError, bool) {
	var r *RejectedError
	ok := errors.As(err, &r)
	return r, ok
}
