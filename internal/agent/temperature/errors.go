package temperature

import "errors"

// ErrInvalidConfig is returned when the regulation bands are inconsistent.
var ErrInvalidConfig = errors.New("temperature: invalid configuration")
