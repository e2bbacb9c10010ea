package audit

import "errors"

var errPanicked = errors.New("listener panicked")
