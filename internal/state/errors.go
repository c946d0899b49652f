package state

import "errors"

// ErrStale is returned when flight status has not been updated within the stale threshold.
var ErrStale = errors.New("state: flight status is stale")
