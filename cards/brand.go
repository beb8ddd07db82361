// Package cards classifies test card numbers and holds the catalog of
// sandbox cards, outcome states and identification document types.
package cards

import (
	"strconv"
	"strings"
	"unicode"
)

// UnknownBrand is returned by Brand for numbers outside the test card table.
const UnknownBrand = "Unknown"

var brandPrefixes = []struct {
	prefix        string
	label         string
	paymentMethod string
}{
	{"5031", "Mastercard Crédito", "master"},
	{"4509", "Visa Crédito", "visa"},
	{"3711", "American Express", "amex"},
	{"5287", "Mastercard Débito", "master"},
	{"4002", "Visa Débito", "visa"},
}

// Brand maps the leading four digits of a test card to its brand and product label.
func Brand(number string) string {
	for _, b := range brandPrefixes {
		if strings.HasPrefix(number, b.prefix) {
			return b.label
		}
	}
	return UnknownBrand
}

// PaymentMethodID returns the vendor payment method id (visa, master or amex)
// for a card number. Test cards resolve through the prefix table, other
// numbers through the IIN ranges; anything unrecognized defaults to visa.
func PaymentMethodID(number string) string {
	n := Normalize(number)

	for _, b := range brandPrefixes {
		if strings.HasPrefix(n, b.prefix) {
			return b.paymentMethod
		}
	}

	if strings.HasPrefix(n, "4") {
		return "visa"
	}
	if p := prefixInt(n, 2); p >= 51 && p <= 55 {
		return "master"
	}
	if p := prefixInt(n, 4); p >= 2221 && p <= 2720 {
		return "master"
	}
	if strings.HasPrefix(n, "34") || strings.HasPrefix(n, "37") {
		return "amex"
	}
	return "visa"
}

// Normalize strips whitespace from a card number.
func Normalize(number string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, number)
}

// FormatDisplay groups a card number in blocks of four digits.
func FormatDisplay(number string) string {
	n := Normalize(number)
	var groups []string
	for len(n) > 4 {
		groups = append(groups, n[:4])
		n = n[4:]
	}
	if n != "" {
		groups = append(groups, n)
	}
	return strings.Join(groups, " ")
}

// Mask keeps the first and last four digits, e.g. 4509****3704.
func Mask(number string) string {
	n := Normalize(number)
	if len(n) <= 8 {
		return strings.Repeat("*", len(n))
	}
	return n[:4] + "****" + n[len(n)-4:]
}

// FirstDigits returns up to count leading characters of the normalized number.
func FirstDigits(number string, count int) string {
	n := Normalize(number)
	if len(n) < count {
		return n
	}
	return n[:count]
}

// LastDigits returns up to count trailing characters of the normalized number.
func LastDigits(number string, count int) string {
	n := Normalize(number)
	if len(n) < count {
		return n
	}
	return n[len(n)-count:]
}

// prefixInt parses the first size characters, returning -1 when that is not possible.
func prefixInt(n string, size int) int {
	if len(n) < size {
		return -1
	}
	v, err := strconv.Atoi(n[:size])
	if err != nil {
		return -1
	}
	return v
}
