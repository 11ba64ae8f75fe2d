package reader

import "strings"

const (
	runeBOM            = '\ufeff'
	runeZeroWidthSpace = '\u200b'
	runeZWNJ           = '\u200c'
	runeZWJ            = '\u200d'
	runeLeftSingle     = '\u2018'
	runeRightSingle    = '\u2019'
	runeLeftDouble     = '\u201c'
	runeRightDouble    = '\u201d'
)

// Sanitize applies the source-text normalization rules from spec.md §4.1,
// run before tokenization and again on every string extracted from an LLM
// response (spec.md §6): strip BOM and zero-width characters, normalize
// smart quotes to their ASCII equivalents.
func Sanitize(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))
	for _, r := range src {
		switch r {
		case runeBOM, runeZeroWidthSpace, runeZWNJ, runeZWJ:
			continue
		case runeLeftSingle, runeRightSingle:
			sb.WriteByte('\'')
		case runeLeftDouble, runeRightDouble:
			sb.WriteByte('"')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
