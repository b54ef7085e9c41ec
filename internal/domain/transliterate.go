package domain

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// umlautTable covers the common German/Latin-1 letters that don't survive
// a device's 7-bit character set; every other non-ASCII rune is dropped,
// since its Latin-1 encoding (where charmap has one) is not 7-bit.
var umlautTable = map[rune]string{
	'ä': "ae", 'Ä': "AE",
	'ö': "oe", 'Ö': "OE",
	'ü': "ue", 'Ü': "UE",
	'ß': "ss",
	'é': "e", 'è': "e", 'ê': "e",
	'á': "a", 'à': "a", 'â': "a",
	'ó': "o", 'ò': "o", 'ô': "o",
	'ú': "u", 'ù': "u", 'û': "u",
}

// transliterate rewrites name to 7-bit ASCII, expanding umlauts and
// accented Latin-1 letters the way a Zander/Filser device's character set
// requires; any rune it still can't place is dropped. getAbbreviatedName
// is declared in the reference's tp.hh and used by both the Zander and
// the Filser writers, but no implementation body for it was retrieved in
// original_source/ (tp.cc only defines TurnPoint's plain accessors) — this
// is a from-scratch but reference-consistent rule, grounded in the
// Latin-1 character set the reference otherwise targets.
func transliterate(name string) string {
	enc := charmap.ISO8859_1.NewEncoder()
	var b strings.Builder
	for _, r := range name {
		if r <= 0x7f {
			b.WriteRune(r)
			continue
		}
		if repl, ok := umlautTable[r]; ok {
			b.WriteString(repl)
			continue
		}
		if encoded, err := enc.String(string(r)); err == nil && len(encoded) == 1 && encoded[0] <= 0x7f {
			b.WriteString(encoded)
		}
		// otherwise: drop the rune
	}
	return b.String()
}

// AbbreviatedName returns a turnpoint's name truncated (by byte count,
// matching the reference's fixed-width columns) to maxLength, preferring
// Code over FullName and transliterating non-ASCII letters first so
// truncation counts usable characters rather than UTF-8 continuation
// bytes.
func AbbreviatedName(tp TurnPoint, maxLength int) string {
	name := tp.Code
	if name == "" {
		name = tp.FullName
	}
	name = transliterate(name)
	if len(name) > maxLength {
		name = name[:maxLength]
	}
	return name
}
