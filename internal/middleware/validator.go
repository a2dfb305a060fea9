package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

var recordIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateRecordID checks the format of a patient record id from a URL.
func ValidateRecordID(id string) error {
	if id == "" {
		return fmt.Errorf("record id cannot be empty")
	}
	if !recordIDPattern.MatchString(id) {
		return fmt.Errorf("invalid record id format")
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidatePatientName bounds the free-text patient name.
func ValidatePatientName(name string) error {
	if len([]rune(name)) > 120 {
		return fmt.Errorf("patient name too long (max 120 characters)")
	}
	return nil
}
