package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength bounds agent replies.
const MaxMessageLength = 4000

// ValidateMessageContent validates an agent reply.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content cannot be empty")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return errors.New("content exceeds maximum length")
	}
	return nil
}

// ValidateID validates a conversation or message id taken from a path.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("id exceeds maximum length")
	}
	if strings.ContainsAny(id, "/?# ") {
		return errors.New("invalid id format")
	}
	return nil
}
