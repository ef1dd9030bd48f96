package validation

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrLocationEmpty        = errors.New("location is required")
	ErrLocationTooShort     = errors.New("location too short")
	ErrLocationTooLong      = errors.New("location too long")
	ErrLocationInvalidChars = errors.New("location contains invalid characters")
)

var (
	// ErrDaysInvalid is returned when days is not an integer.
	ErrDaysInvalid = errors.New("days must be a whole number")
	// ErrDaysOutOfRange is returned when days is below 1 or above the provider limit.
	ErrDaysOutOfRange = errors.New("days out of range")
)

// ValidateLocation trims the input, enforces length bounds (minLen, maxLen in runes),
// and restricts to characters a place name or "lat,lon" pair needs: letters
// (Unicode), digits, space, comma, hyphen, period.
func ValidateLocation(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrLocationEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrLocationTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrLocationTooLong
	}
	for _, c := range r {
		if !isAllowedLocationRune(c) {
			return "", ErrLocationInvalidChars
		}
	}
	return s, nil
}

func isAllowedLocationRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.':
		return true
	}
	return false
}

// ValidateDays checks 1 <= days <= maxDays. maxDays <= 0 disables the upper bound.
func ValidateDays(days, maxDays int) (int, error) {
	if days < 1 || (maxDays > 0 && days > maxDays) {
		return 0, ErrDaysOutOfRange
	}
	return days, nil
}

// ParseDays parses a query value, using defaultDays when it is blank.
func ParseDays(input string, defaultDays, maxDays int) (int, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return ValidateDays(defaultDays, maxDays)
	}
	d, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrDaysInvalid
	}
	return ValidateDays(d, maxDays)
}
