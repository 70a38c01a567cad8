package domain

import (
	"regexp"
	"strings"
)

var (
	regNumberRegex = regexp.MustCompile(`^[A-Z]{3}-\d{3}-\d{3}/\d{4}$`)
	mobileRegex    = regexp.MustCompile(`^\d{10}$`)
	pinRegex       = regexp.MustCompile(`^\d{4,6}$`)
	phoneRegex     = regexp.MustCompile(`^(\+254|0)[1-9]\d{8}$`)
	nonDigits      = regexp.MustCompile(`\D`)
	whitespace     = regexp.MustCompile(`\s`)
)

// NormalizeRegNumber upper-cases and trims a registration number.
func NormalizeRegNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidRegNumber checks the normalized form, e.g. ENG-219-036/2025.
func ValidRegNumber(s string) bool {
	return regNumberRegex.MatchString(NormalizeRegNumber(s))
}

// ValidMobile accepts exactly 10 digits once every non-digit is stripped.
func ValidMobile(s string) bool {
	return mobileRegex.MatchString(nonDigits.ReplaceAllString(s, ""))
}

func ValidPIN(s string) bool {
	return pinRegex.MatchString(s)
}

// ValidPhone accepts Kenyan numbers such as 0712345678 or +254712345678.
func ValidPhone(s string) bool {
	return phoneRegex.MatchString(StripSpaces(s))
}

func StripSpaces(s string) string {
	return whitespace.ReplaceAllString(s, "")
}
