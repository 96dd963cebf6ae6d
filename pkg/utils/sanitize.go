package utils

import "strings"

// sanitize.go - Input sanitization utilities for security

// EscapeSQLWildcards escapes SQL LIKE/ILIKE wildcard characters to prevent injection
// This is used when user input is used in LIKE/ILIKE queries
func EscapeSQLWildcards(input string) string {
	// Escape backslash first (as it's the escape character)
	input = strings.ReplaceAll(input, "\\", "\\\\")
	// Escape SQL wildcards
	input = strings.ReplaceAll(input, "%", "\\%")
	input = strings.ReplaceAll(input, "_", "\\_")
	return input
}

// SanitizeSearchQuery prepares a search string for safe LIKE usage
// Returns the sanitized term wrapped with % for partial matching
func SanitizeSearchQuery(input string) string {
	input = strings.TrimSpace(input)
	// Limit length to prevent DoS
	if len(input) > 100 {
		input = input[:100]
	}
	input = EscapeSQLWildcards(input)
	return "%" + input + "%"
}
