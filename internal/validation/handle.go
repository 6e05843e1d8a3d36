// Package validation holds format rules for user-chosen identifiers.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var squadHandleRegex = regexp.MustCompile(`^[a-z0-9-]{3,40}$`)

// Handles that would shadow API paths.
var reservedSquadHandles = map[string]struct{}{
	"api":     {},
	"health":  {},
	"metrics": {},
	"posts":   {},
	"users":   {},
	"me":      {},
	"squads":  {},
	"feed":    {},
	"admin":   {},
}

// ValidateSquadHandle validates squad handle format and reserved names.
func ValidateSquadHandle(handle string) error {
	if !squadHandleRegex.MatchString(handle) {
		return fmt.Errorf("handle must be 3-40 characters and contain only lowercase letters, numbers, and hyphens")
	}

	if strings.HasPrefix(handle, "-") || strings.HasSuffix(handle, "-") {
		return fmt.Errorf("handle cannot start or end with a hyphen")
	}

	if _, exists := reservedSquadHandles[handle]; exists {
		return fmt.Errorf("handle is reserved")
	}

	return nil
}
