package store

import (
	"strings"

	masker "github.com/goliatone/go-masker"
)

const tokenMask = "preserveEnds(2,2)"

// MaskToken returns a copy of token that is safe to log.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if masked, err := masker.Default.String(tokenMask, token); err == nil {
		return masked
	}
	runes := []rune(token)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:2]) + strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-2:])
}
