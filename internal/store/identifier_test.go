package store

import (
	"strings"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	valid := []string{
		"users",
		"site_options",
		"post_tags",
		"_hidden",
		"t1",
		"a" + strings.Repeat("b", 62),
	}
	for _, name := range valid {
		if err := validateIdentifier(name); err != nil {
			t.Errorf("validateIdentifier(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{
		"",
		"Users",
		"users-table",
		"users table",
		"1users",
		"users;",
		"users; DROP TABLE users",
		`users"`,
		"usérs",
		"a" + strings.Repeat("b", 63),
	}
	for _, name := range invalid {
		if err := validateIdentifier(name); err == nil {
			t.Errorf("validateIdentifier(%q) = nil, want error", name)
		}
	}
}
