package handlers

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Message length limits
const (
	MaxMessageLength = 8000 // Characters
	MinMessageLength = 1
)

// Dangerous patterns for XSS prevention
var (
	scriptTagRegex = regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`)
	onEventRegex   = regexp.MustCompile(`(?i)\s+on\w+\s*=`)
)

// SanitizeMessageContent cleans and validates message content
// Returns sanitized content or error if validation fails
func SanitizeMessageContent(content string) (string, error) {
	// 1. Check minimum length
	if strings.TrimSpace(content) == "" {
		return "", errors.New("message cannot be empty")
	}

	// 2. Check maximum length
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return "", errors.New("message exceeds maximum length")
	}

	// 3. Remove script tags
	content = scriptTagRegex.ReplaceAllString(content, "")

	// Remove inline event handlers (onclick, onload, etc.)
	content = onEventRegex.ReplaceAllString(content, " ")

	// Escape HTML entities to prevent XSS
	content = html.EscapeString(content)

	// 4. Trim whitespace
	content = strings.TrimSpace(content)

	if content == "" {
		return "", errors.New("message cannot be empty after sanitization")
	}

	return content, nil
}
