package service

import (
	"strings"
)

// DeriveUsername produces the panel account username for a domain: the
// first 8 characters with everything non-alphanumeric stripped, lowered.
// Deterministic so redelivered jobs hit the same account.
func DeriveUsername(domain string) string {
	prefix := domain
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}

	var b strings.Builder
	for _, r := range strings.ToLower(prefix) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
