package availability

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/table1837/eightysix/pkg/types"
)

const (
	maxItemKeyLen = 255
	maxReasonLen  = 500
)

var scopePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateScope checks that name is usable as a scope identifier.
func ValidateScope(name string) error {
	if !scopePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidScope, name, scopePattern)
	}
	return nil
}

// normalize trims the update's free-text fields and validates it.
func normalize(u types.Update) (types.Update, error) {
	u.ItemKey = strings.TrimSpace(u.ItemKey)
	u.ActorID = strings.TrimSpace(u.ActorID)
	u.Reason = strings.TrimSpace(u.Reason)

	switch {
	case u.ItemKey == "":
		return u, fmt.Errorf("%w: item_key is required", ErrInvalidUpdate)
	case len(u.ItemKey) > maxItemKeyLen:
		return u, fmt.Errorf("%w: item_key longer than %d bytes", ErrInvalidUpdate, maxItemKeyLen)
	case !u.Status.Valid():
		return u, fmt.Errorf("%w: status %q must be %s or %s",
			ErrInvalidUpdate, u.Status, types.StatusUnavailable, types.StatusAvailable)
	case u.ActorID == "":
		return u, fmt.Errorf("%w: actor_id is required", ErrInvalidUpdate)
	case len(u.Reason) > maxReasonLen:
		return u, fmt.Errorf("%w: reason longer than %d bytes", ErrInvalidUpdate, maxReasonLen)
	}
	return u, nil
}
