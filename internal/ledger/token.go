package ledger

import "regexp"

// NativeToken is the chain's native asset; it has no issuance suffix.
const NativeToken = "EGLD"

// TICKER-hhhhhh: 3-10 upper-case alphanumerics, a dash, six lower-case hex digits.
var tokenIDRe = regexp.MustCompile(`^[A-Z0-9]{3,10}-[0-9a-f]{6}$`)

// ValidTokenID reports whether id is a well-formed token identifier.
func ValidTokenID(id string) bool {
	return id == NativeToken || tokenIDRe.MatchString(id)
}
