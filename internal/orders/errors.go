package orders

import "errors"

// Every error returned by Service wraps one of these; match with errors.Is.
// They are terminal for the request and are surfaced to the user as is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrStock             = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("operation not allowed in current order state")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrMinimumOrder      = errors.New("minimum order amount not reached")
	ErrConflict          = errors.New("draft order already exists")
	ErrMessagingClosed   = errors.New("messaging is closed")
	ErrDuplicateRating   = errors.New("order already rated by this user")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
)
