package tokens

import (
	"slices"
	"strings"
	"time"
)

// Claims is the identity envelope carried by an access token.
// Permissions is a sorted, de-duplicated set.
type Claims struct {
	Subject     string
	Email       string
	Role        string
	Permissions []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// HasPermission reports whether p is in the permission set.
func (c Claims) HasPermission(p string) bool {
	_, ok := slices.BinarySearch(c.Permissions, p)
	return ok
}

// NormalizePermissions trims, drops empties, sorts and de-duplicates.
// The result is never nil so an empty set still encodes as an array.
func NormalizePermissions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (c Claims) validShape() bool {
	return strings.TrimSpace(c.Subject) != "" &&
		strings.TrimSpace(c.Email) != "" &&
		strings.TrimSpace(c.Role) != "" &&
		c.Permissions != nil
}
