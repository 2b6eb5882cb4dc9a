package values

import (
	"fmt"
	"regexp"
	"strings"
)

// PhoneNumber represents a validated phone number value object
type PhoneNumber struct {
	number string // Stored in E.164 format (+1234567890)
}

var (
	// E.164 format regex: + followed by up to 15 digits
	e164Regex = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

	// US phone number regex for parsing various formats
	usPhoneRegex = regexp.MustCompile(`^(?:\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})$`)

	// Formatted numbers need separators or a leading +; a bare run of digits
	// is treated as an identifier, not a phone number.
	formattedPhoneRegex = regexp.MustCompile(`^(?:\+\d{1,3}[-.\s]?)?\(?\d{2,4}\)?[-.\s]\d{3,4}[-.\s]\d{3,4}$`)
)

const maskedPhonePrefix = "***-***-"

// NewPhoneNumber creates a new PhoneNumber value object with validation
func NewPhoneNumber(number string) (PhoneNumber, error) {
	if number == "" {
		return PhoneNumber{}, fmt.Errorf("phone number cannot be empty")
	}

	cleaned := cleanPhoneNumber(number)

	if e164Regex.MatchString(cleaned) {
		return PhoneNumber{number: cleaned}, nil
	}

	if matches := usPhoneRegex.FindStringSubmatch(number); len(matches) == 4 {
		return PhoneNumber{number: "+1" + matches[1] + matches[2] + matches[3]}, nil
	}

	return PhoneNumber{}, fmt.Errorf("invalid phone number format: %s", number)
}

// MustNewPhoneNumber creates PhoneNumber and panics on error (for constants/tests)
func MustNewPhoneNumber(number string) PhoneNumber {
	phone, err := NewPhoneNumber(number)
	if err != nil {
		panic(err)
	}
	return phone
}

// LooksLikePhoneNumber reports whether s is written like a phone number:
// E.164 or a grouped national format.
func LooksLikePhoneNumber(s string) bool {
	s = strings.TrimSpace(s)
	if e164Regex.MatchString(s) && len(s) >= 11 {
		return true
	}
	return formattedPhoneRegex.MatchString(s) && digitCount(s) >= 10
}

// String returns the phone number in E.164 format
func (p PhoneNumber) String() string {
	return p.number
}

// LastFour returns the subscriber's last four digits
func (p PhoneNumber) LastFour() string {
	if len(p.number) < 4 {
		return p.number
	}
	return p.number[len(p.number)-4:]
}

// Masked returns the number with everything but the last four digits hidden
func (p PhoneNumber) Masked() string {
	return maskedPhonePrefix + p.LastFour()
}

// MaskPhoneNumber masks a raw phone string down to its last four digits.
// Already masked values are returned unchanged.
func MaskPhoneNumber(s string) string {
	if IsMaskedPhoneNumber(s) {
		return s
	}
	digits := cleanPhoneNumber(s)
	digits = strings.TrimPrefix(digits, "+")
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	return maskedPhonePrefix + digits
}

// IsMaskedPhoneNumber reports whether s was produced by MaskPhoneNumber
func IsMaskedPhoneNumber(s string) bool {
	return strings.HasPrefix(s, maskedPhonePrefix)
}

// IsEmpty checks if the phone number is empty
func (p PhoneNumber) IsEmpty() bool {
	return p.number == ""
}

func cleanPhoneNumber(number string) string {
	var b strings.Builder
	for _, char := range number {
		if char >= '0' && char <= '9' || char == '+' {
			b.WriteRune(char)
		}
	}
	return b.String()
}

func digitCount(s string) int {
	n := 0
	for _, char := range s {
		if char >= '0' && char <= '9' {
			n++
		}
	}
	return n
}
