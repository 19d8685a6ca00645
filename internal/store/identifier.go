package store

import (
	"fmt"
	"regexp"
)

// identifierPattern is the strict allow-list for table and column names
// that end up interpolated into SQL.
var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

func validateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid SQL identifier %q", name)
	}
	return nil
}
