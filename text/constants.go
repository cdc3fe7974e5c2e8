package text

import "time"

const (
	// InnerDiffTimeout caps the character-level diff of a single line pair.
	// The remaining line-diff budget is used instead when it is smaller.
	InnerDiffTimeout = 100 * time.Millisecond

	// MaxInnerLineLength is the longest line (in bytes, either side) that gets
	// character-level changes. Longer pairs are reported without inner changes.
	MaxInnerLineLength = 20000

	// firstLineRune is the first rune handed out when encoding lines. Runes in
	// the surrogate block are skipped since they cannot round-trip through a string.
	firstLineRune = 1

	surrogateStart = 0xD800
	surrogateEnd   = 0xDFFF

	// privateUseStart is where graphemes that do not fit a single rune are
	// mapped for the inner diff (supplementary private use areas A and B).
	privateUseStart = 0xF0000
	privateUseEnd   = 0x10FFFD
)
