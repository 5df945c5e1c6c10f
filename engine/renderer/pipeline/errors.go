package pipeline

import "errors"

// ErrCapacityExceeded reports that an input-layout or stream-output entry was dropped because its
// auxiliary buffer was full. The pipeline is still built with the entries that fit.
var ErrCapacityExceeded = errors.New("pipeline: auxiliary buffer capacity exceeded")
