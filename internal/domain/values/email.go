package values

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// Email represents a validated email address value object
type Email struct {
	address string
}

var (
	// RFC 5322 compliant regex for stricter validation
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// maskedLocalPrefix is the number of local-part characters kept when masking.
const maskedLocalPrefix = 2

// NewEmail creates a new Email value object with validation
func NewEmail(address string) (Email, error) {
	if address == "" {
		return Email{}, fmt.Errorf("email address cannot be empty")
	}

	normalized := strings.ToLower(strings.TrimSpace(address))

	parsed, err := mail.ParseAddress(normalized)
	if err != nil {
		return Email{}, fmt.Errorf("invalid email format: %w", err)
	}

	if !emailRegex.MatchString(parsed.Address) {
		return Email{}, fmt.Errorf("email address does not meet format requirements")
	}

	if len(parsed.Address) > 254 {
		return Email{}, fmt.Errorf("email address too long (max 254 characters)")
	}

	return Email{address: parsed.Address}, nil
}

// MustNewEmail creates Email and panics on error (for constants/tests)
func MustNewEmail(address string) Email {
	email, err := NewEmail(address)
	if err != nil {
		panic(err)
	}
	return email
}

// IsEmailAddress reports whether s looks like an email address
func IsEmailAddress(s string) bool {
	return emailRegex.MatchString(strings.TrimSpace(s))
}

// String returns the email address
func (e Email) String() string {
	return e.address
}

// LocalPart returns the local part of the email (before @)
func (e Email) LocalPart() string {
	parts := strings.Split(e.address, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[0]
}

// Domain returns the domain part of the email (after @)
func (e Email) Domain() string {
	parts := strings.Split(e.address, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// Masked returns the address with the local part cut to two characters,
// e.g. john@example.com -> jo***@example.com.
func (e Email) Masked() string {
	return MaskEmailAddress(e.address)
}

// MaskEmailAddress masks any local@domain string. Masking an already masked
// address yields the same value.
func MaskEmailAddress(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return address
	}
	local, domain := address[:at], address[at+1:]
	local = strings.TrimSuffix(local, "***")
	if len(local) > maskedLocalPrefix {
		local = local[:maskedLocalPrefix]
	}
	return local + "***@" + domain
}

// IsEmpty checks if the email is empty
func (e Email) IsEmpty() bool {
	return e.address == ""
}

// MarshalJSON implements JSON marshaling
func (e Email) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.address)
}

// UnmarshalJSON implements JSON unmarshaling
func (e *Email) UnmarshalJSON(data []byte) error {
	var address string
	if err := json.Unmarshal(data, &address); err != nil {
		return err
	}

	email, err := NewEmail(address)
	if err != nil {
		return err
	}
	*e = email
	return nil
}
