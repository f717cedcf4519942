package generations

import "errors"

// ErrNotFound indicates a generation record does not exist.
var ErrNotFound = errors.New("generation not found")
