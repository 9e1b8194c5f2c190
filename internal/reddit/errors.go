package reddit

import (
	"errors"
	"fmt"
)

// error kinds callers classify with errors.Is
var (
	// ErrRateLimited means the platform asked us to slow down; retry next pass.
	ErrRateLimited = errors.New("reddit: rate limited")
	// ErrForbidden means the bot lacks moderator rights for the operation.
	ErrForbidden = errors.New("reddit: forbidden")
	// ErrNotFound means the requested resource does not exist.
	ErrNotFound = errors.New("reddit: not found")
	// ErrTargetGone means the target account no longer exists.
	ErrTargetGone = errors.New("reddit: target user gone")
)

// statusError maps an HTTP status code onto a sentinel error
func statusError(status int, context string) error {
	switch status {
	case 429:
		return fmt.Errorf("%s: %w", context, ErrRateLimited)
	case 403:
		return fmt.Errorf("%s: %w", context, ErrForbidden)
	case 404:
		return fmt.Errorf("%s: %w", context, ErrNotFound)
	default:
		return fmt.Errorf("%s: unexpected status %d", context, status)
	}
}
