package pdf

import (
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// replacementGlyph stands in for runes the standard fonts cannot show.
const replacementGlyph = '?'

// SanitizeText prepares s for one of the standard 14 fonts, which only cover
// WinAnsi. Text is NFC-normalized first so composed accents survive; tabs
// become spaces, other control characters are dropped and anything outside
// Windows-1252 is replaced. It returns the number of replaced runes.
func SanitizeText(s string) (string, int) {
	s = norm.NFC.String(strings.ReplaceAll(s, "\r\n", "\n"))

	var b strings.Builder
	b.Grow(len(s))
	replaced := 0
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case r == '\t' || r == '\r':
			b.WriteByte(' ')
		case unicode.IsControl(r):
			// dropped
		default:
			if _, ok := charmap.Windows1252.EncodeRune(r); ok {
				b.WriteRune(r)
			} else {
				b.WriteRune(replacementGlyph)
				replaced++
			}
		}
	}
	return b.String(), replaced
}

// standardFonts are the fonts every PDF reader provides.
var standardFonts = map[string]bool{
	"Courier": true, "Courier-Bold": true, "Courier-Oblique": true, "Courier-BoldOblique": true,
	"Helvetica": true, "Helvetica-Bold": true, "Helvetica-Oblique": true, "Helvetica-BoldOblique": true,
	"Times-Roman": true, "Times-Bold": true, "Times-Italic": true, "Times-BoldItalic": true,
	"Symbol": true, "ZapfDingbats": true,
}

// IsStandardFont reports whether name is one of the standard 14 fonts.
func IsStandardFont(name string) bool {
	return standardFonts[name]
}
