package agent

import (
	"strings"
	"unicode/utf8"
)

// RewriteThreshold is the minimum trimmed length, in characters, of seller
// notes for the rewrite mode: anything shorter is treated as too thin to
// polish and the copy is composed from facts instead.
const RewriteThreshold = 15

// SelectMode decides between composing listing copy from facts and
// rewriting the seller's free-text notes. Pure; no failure mode.
func SelectMode(freeText string) Mode {
	if utf8.RuneCountInString(strings.TrimSpace(freeText)) >= RewriteThreshold {
		return ModeRewrite
	}
	return ModeCreate
}
