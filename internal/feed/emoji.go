package feed

import (
	"unicode"

	"github.com/rivo/uniseg"
)

// pictographic covers the emoji blocks the feed accepts: emoticons, misc
// symbols and pictographs (including skin tone modifiers), transport,
// regional indicators, supplemental symbols, extended pictographs, misc
// symbols and dingbats.
var pictographic = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x2600, Hi: 0x26FF, Stride: 1}, // Miscellaneous Symbols
		{Lo: 0x2700, Hi: 0x27BF, Stride: 1}, // Dingbats
	},
	R32: []unicode.Range32{
		{Lo: 0x1F1E6, Hi: 0x1F1FF, Stride: 1}, // Regional Indicators
		{Lo: 0x1F300, Hi: 0x1F5FF, Stride: 1}, // Misc Symbols and Pictographs
		{Lo: 0x1F600, Hi: 0x1F64F, Stride: 1}, // Emoticons
		{Lo: 0x1F680, Hi: 0x1F6FF, Stride: 1}, // Transport and Map
		{Lo: 0x1F900, Hi: 0x1F9FF, Stride: 1}, // Supplemental Symbols and Pictographs
		{Lo: 0x1FA70, Hi: 0x1FAFF, Stride: 1}, // Symbols and Pictographs Extended-A
	},
}

// IsEmojiOnly reports whether content consists of emoji and whitespace
// only, with at least one emoji present. Zero-width joiners and variation
// selectors are ignored, so multi-person and skin-tone sequences count as
// the emoji they render as. Empty and whitespace-only content is rejected:
// a post must actually show an emoji.
//
// Grapheme clusters are walked with uniseg so a composed sequence is judged
// as one unit rather than rune by rune.
func IsEmojiOnly(content string) bool {
	sawEmoji := false

	state := -1
	for remaining := content; len(remaining) > 0; {
		var cluster string
		cluster, remaining, _, state = uniseg.StepString(remaining, state)

		for _, r := range cluster {
			switch {
			case r == 0x200D:
				// zero-width joiner
			case r >= 0xFE00 && r <= 0xFE0F:
				// variation selector
			case unicode.IsSpace(r):
				// whitespace between emoji is fine
			case unicode.Is(pictographic, r):
				sawEmoji = true
			default:
				return false
			}
		}
	}

	return sawEmoji
}
