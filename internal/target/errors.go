package target

import "errors"

// ErrSourceUnavailable marks the target-source-cannot-be-opened failure
// kind (models.ErrorSourceUnavailable): fatal for the run, never per-target.
var ErrSourceUnavailable = errors.New("target source unavailable")
