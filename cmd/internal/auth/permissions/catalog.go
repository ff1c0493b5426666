// Package permissions resolves the capability strings placed in access tokens.
//
// The session layer treats permissions as an opaque set. A Catalog maps an
// account and its role to that set; results are sorted and never nil.
package permissions

import (
	"context"
	"sort"
	"strings"
)

// Catalog resolves effective permissions for an account.
type Catalog interface {
	EffectivePermissions(ctx context.Context, accountID, role string) ([]string, error)
}

// normalize trims, drops blanks and duplicates, and sorts.
func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
