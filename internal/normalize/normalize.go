// Package normalize turns raw carrier-supplied strings (phone, name, city,
// monetary values) into comparable canonical forms. Everything here is pure;
// the matching engine builds on these comparators.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	phoneSuffixLen  = 9 // dominant regional format: last nine digits identify the line
	phoneCompareLen = 8 // bidirectional suffix comparison tolerates one leading digit of drift
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// trailing extension markers accepted by the generic phone family
	extensionRe = regexp.MustCompile(`(?i)(?:ext\.?|ramal|[x#])\s*\d*\s*$`)
)

// Phone strips all non-digits and keeps the last nine digits. Input with fewer
// than nine digits normalizes to "" (unusable for suffix matching).
func Phone(raw string) string {
	digits := digitsOnly(raw)
	if len(digits) < phoneSuffixLen {
		return ""
	}
	return digits[len(digits)-phoneSuffixLen:]
}

// PhoneGeneric normalizes phones for the provider family that allows 7-8 digit
// numbers: trailing extensions are removed, international dial prefixes
// (+, 00, 011) are stripped, and the remaining digits are kept untruncated.
func PhoneGeneric(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = extensionRe.ReplaceAllString(s, "")
	hadPlus := strings.HasPrefix(s, "+")
	digits := digitsOnly(s)
	if !hadPlus {
		// 011 is checked before 00 so "011..." is not half-stripped.
		for _, p := range []string{"011", "00"} {
			if strings.HasPrefix(digits, p) && len(digits) > len(p)+6 {
				digits = digits[len(p):]
				break
			}
		}
	}
	return digits
}

// PhonesMatch reports whether two raw phone numbers identify the same line:
// exact equality on the generic-normalized form, or a bidirectional last-8
// suffix match to tolerate country-code and leading-zero differences.
func PhonesMatch(a, b string) bool {
	na, nb := PhoneGeneric(a), PhoneGeneric(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if len(na) >= phoneCompareLen && strings.HasSuffix(nb, na[len(na)-phoneCompareLen:]) {
		return true
	}
	if len(nb) >= phoneCompareLen && strings.HasSuffix(na, nb[len(nb)-phoneCompareLen:]) {
		return true
	}
	return false
}

// Name lowercases, strips diacritics, collapses whitespace and trims.
func Name(raw string) string {
	return fold(raw)
}

// City applies the same pipeline as Name.
func City(raw string) string {
	return fold(raw)
}

func fold(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return s
	}
	s = stripDiacritics(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// stripDiacritics decomposes to NFD and drops combining marks, so "João"
// compares equal to "Joao".
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParsePrice parses a carrier-reported monetary value. Currency symbols and
// grouping noise are tolerated; a lone comma is accepted as the decimal
// separator.
func ParsePrice(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	s = b.String()
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			// "1.234,56" style: dots are grouping
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// PricesClose reports whether two totals agree within tolerance. Guards
// against currency-rounding and fee noise between carrier-reported and
// order-stored values.
func PricesClose(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
