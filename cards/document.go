package cards

import (
	"regexp"
	"strings"
)

var sevenToEightDigits = regexp.MustCompile(`^\d{7,8}$`)

// ValidateDocumentNumber applies the sandbox rules for identification numbers:
// DNI and CI take 7 or 8 digits, everything else at least 6 characters.
func ValidateDocumentNumber(number, docType string) bool {
	n := strings.TrimSpace(number)
	if n == "" {
		return false
	}

	switch docType {
	case "DNI", "CI":
		return sevenToEightDigits.MatchString(n)
	default:
		return len(n) >= 6
	}
}
