package report

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"mealcheck/internal/meal"
)

// Filename is report-<from>.xlsx for one day and report-<from>_<to>.xlsx
// for a range.
func Filename(from, to string) string {
	if to == "" || to == from {
		return fmt.Sprintf("report-%s.xlsx", from)
	}
	return fmt.Sprintf("report-%s_%s.xlsx", from, to)
}

// RangeFilename is Filename for a parsed range.
func RangeFilename(r meal.Range) string { return Filename(r.From, r.To) }

// ASCIIFilename strips diacritics and replaces whatever is left outside
// printable ASCII, quotes and path separators with '_'.
func ASCIIFilename(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, name)
	if err != nil {
		out = name
	}
	out = strings.Map(func(r rune) rune {
		switch {
		case r == 'đ':
			return 'd'
		case r == 'Đ':
			return 'D'
		case r < 0x20 || r > 0x7e, r == '"', r == '\\', r == '/':
			return '_'
		}
		return r
	}, out)
	return out
}

// ContentDisposition builds an attachment header carrying both the ASCII
// fallback and the RFC 5987 UTF-8 name.
func ContentDisposition(name string) string {
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, ASCIIFilename(name), url.PathEscape(name))
}
