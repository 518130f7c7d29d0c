package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength bounds the text of a user message.
const MaxMessageLength = 100000

// ValidateMessageText validates the text of a user message.
func ValidateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("message cannot be empty")
	}
	if len(text) > MaxMessageLength {
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}

// ValidateRecordID validates the id of a tenant, conversation, document or sheet.
func ValidateRecordID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("id exceeds maximum length")
	}
	if strings.ContainsAny(id, "/?#") {
		return errors.New("id contains invalid characters")
	}
	return nil
}

// ValidateTenantName validates the display name of a new tenant.
func ValidateTenantName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("company name cannot be empty")
	}
	if len(name) > 256 {
		return errors.New("company name exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("company name must be valid UTF-8")
	}
	return nil
}
