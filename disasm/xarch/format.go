package xarch

import (
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
)

// immText renders an immediate operand: decimal up to 9, hex above,
// with the sign in front of the prefix ("#-0x10").
func immText[I constraints.Integer](v I) string {
	if v < 0 {
		u := uint64(-int64(v))
		if u > 9 {
			return fmt.Sprintf("#-%#x", u)
		}
		return fmt.Sprintf("#-%d", u)
	}
	if u := uint64(v); u > 9 {
		return fmt.Sprintf("#%#x", u)
	}
	return fmt.Sprintf("#%d", uint64(v))
}

// joinOperands joins operand text the way the listing prints it.
func joinOperands(parts []string) string {
	return strings.Join(parts, ", ")
}

// lookupName indexes a dense name table, returning "" out of range.
func lookupName[I constraints.Integer](table []string, id I) string {
	if id < 0 || uint64(id) >= uint64(len(table)) {
		return ""
	}
	return table[id]
}
