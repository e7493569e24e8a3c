package bank

import "errors"

// ErrInvalidMonth is returned for a report month that is not YYYY-MM
var ErrInvalidMonth = errors.New("invalid month")
