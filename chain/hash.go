package chain

import (
	"fmt"
	"unicode/utf16"
)

// GenerateHash returns the 8 character hex digest used for every ledger ID
// and transaction hash. The accumulator runs over UTF-16 code units and is
// folded to a signed 32-bit integer after each step.
func GenerateHash(data string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(data)) {
		h = (h << 5) - h + int32(unit)
	}

	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return fmt.Sprintf("%08x", abs)
}
