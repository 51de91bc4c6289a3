package middleware

import (
	"errors"
	"unicode/utf8"
)

// MaxMessageContentLength bounds a single chat message.
const MaxMessageContentLength = 4000

// ValidateMessageContent validates chat message content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > MaxMessageContentLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// MaxSignalLength bounds each recommendation signal.
const MaxSignalLength = 500

// ValidateSignal validates an optional recommendation signal.
func ValidateSignal(name, value string) error {
	if len(value) > MaxSignalLength {
		return errors.New(name + " exceeds maximum length")
	}
	if !utf8.ValidString(value) {
		return errors.New(name + " must be valid UTF-8")
	}
	return nil
}
