package common

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	upperTR = cases.Upper(language.Turkish)
	lowerTR = cases.Lower(language.Turkish)
)

// UpperTR upper-cases with Turkish rules (i -> İ, ı -> I)
func UpperTR(s string) string {
	return upperTR.String(s)
}

// LowerTR lower-cases with Turkish rules (İ -> i, I -> ı)
func LowerTR(s string) string {
	return lowerTR.String(s)
}

// FoldTR lower-cases and collapses the dotted/dotless i variants so that
// "İdareler", "IDARELER" and "idareler" compare equal.
func FoldTR(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("\u0307", "", "ı", "i").Replace(s)
	return strings.TrimSpace(s)
}

// PortalQueryName upper-cases a contractor title the way the portal indexes it
// and escapes it for a query string, with '+' for spaces.
func PortalQueryName(title string) string {
	return url.QueryEscape(UpperTR(strings.TrimSpace(title)))
}
