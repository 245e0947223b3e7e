package sms

import (
	"fmt"
	"regexp"
)

var e164 = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// ValidatePhone returns ErrInvalidPhoneNumber unless phone is a valid E.164 number.
func ValidatePhone(phone string) error {
	if !e164.MatchString(phone) {
		return fmt.Errorf("%w: %q", ErrInvalidPhoneNumber, phone)
	}
	return nil
}
