package services

import (
	"errors"

	"gota/internal/core"
)

// isUpstream reports whether err is a collaborator failure rather than a
// client mistake. Only those are logged at error level.
func isUpstream(err error) bool {
	if err == nil {
		return false
	}
	var ve *core.ValidationError
	return !errors.Is(err, core.ErrNotFound) &&
		!errors.Is(err, core.ErrUnauthorized) &&
		!errors.As(err, &ve)
}
